package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

type MessageType string

const (
	// Client to Server message types
	MessageTypeSubscribe    MessageType = "subscribe"
	MessageTypeUnsubscribe  MessageType = "unsubscribe"
	MessageTypeGetAuction   MessageType = "get_auction"
	MessageTypeListAuctions MessageType = "list_auctions"
	MessageTypePayDeposit   MessageType = "pay_deposit"
	MessageTypeClaimRefund  MessageType = "claim_refund"
	MessageTypeBid          MessageType = "bid"
	MessageTypeStartAuction MessageType = "start_auction"
	MessageTypeCheckUpkeep  MessageType = "check_upkeep"
	MessageTypePing         MessageType = "ping"

	// Server to Client message types
	MessageTypeAuction      MessageType = "auction"
	MessageTypeAuctionList  MessageType = "auction_list"
	MessageTypeSubscription MessageType = "subscription"
	MessageTypeDeposit      MessageType = "deposit"
	MessageTypeBidResult    MessageType = "bid_result"
	MessageTypeUpkeep       MessageType = "upkeep"
	MessageTypeEvent        MessageType = "event"
	MessageTypeError        MessageType = "error"
	MessageTypePong         MessageType = "pong"
)

type ClientMessage struct {
	Type      MessageType            `json:"type"`
	RequestID string                 `json:"request_id,omitempty"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	RequestID string                 `json:"request_id,omitempty"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Event     auction.EventType      `json:"event,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Code      string                 `json:"code,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func NewServerMessage(msgType MessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now().Unix(),
	}
}

// NewReply answers msg, echoing its request and auction ids
func NewReply(msgType MessageType, msg *ClientMessage) *ServerMessage {
	reply := NewServerMessage(msgType)
	reply.RequestID = msg.RequestID
	reply.AuctionID = msg.AuctionID
	return reply
}

// NewErrorMessage carries err's text and its stable code
func NewErrorMessage(err error, msg *ClientMessage) *ServerMessage {
	text := err.Error()
	reply := &ServerMessage{
		Type:      MessageTypeError,
		Error:     &text,
		Code:      shared.CodeOf(err),
		Timestamp: time.Now().Unix(),
	}
	if msg != nil {
		reply.RequestID = msg.RequestID
		reply.AuctionID = msg.AuctionID
	}
	return reply
}

func (m *ClientMessage) validateAuctionID() error {
	if m.AuctionID == nil || *m.AuctionID == uuid.Nil {
		return shared.ErrAuctionIDRequired
	}
	return nil
}

// ParseClientMessage parses a JSON message from client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidRequest, err)
	}

	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe, MessageTypeGetAuction,
		MessageTypePayDeposit, MessageTypeClaimRefund, MessageTypeBid,
		MessageTypeStartAuction, MessageTypeCheckUpkeep:
		return m.validateAuctionID()

	case MessageTypeListAuctions:
		if status, ok := m.Data["status"]; ok {
			s, isString := status.(string)
			if !isString {
				return shared.ErrInvalidRequest
			}
			if _, known := auction.ParseStatus(s); !known {
				return shared.ErrInvalidRequest
			}
		}

	case MessageTypePing:

	default:
		return shared.ErrUnknownMessageType
	}

	return nil
}

// intField reads a JSON number from Data, falling back to def
func (m *ClientMessage) intField(key string, def int) int {
	if v, ok := m.Data[key].(float64); ok {
		return int(v)
	}
	return def
}
