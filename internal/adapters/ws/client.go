package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dutch-auction-service/internal/config"

	"github.com/alitto/pond"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const maxMessageSize = 64 * 1024

var errClientBusy = errors.New("too many messages in flight")

type WsClient struct {
	id          string
	participant common.Address
	conn        *websocket.Conn
	sendChan    chan *ServerMessage
	ctx         context.Context
	cancel      context.CancelFunc
	handler     *WsHandler
	workerPool  *pond.WorkerPool
	stopped     bool
	mu          sync.Mutex
	logger      zerolog.Logger
}

type WsClientParams struct {
	Participant common.Address
	Conn        *websocket.Conn
	Handler     *WsHandler
	Logger      zerolog.Logger
}

// NewClient creates a new WebSocket client
func NewClient(params WsClientParams) *WsClient {
	ctx, cancel := context.WithCancel(context.Background())

	pool := pond.New(
		config.WSMaxWorkers,
		config.WSMaxCapacity,
		pond.Context(ctx),
		pond.Strategy(pond.Balanced()),
	)
	id := uuid.New().String()
	return &WsClient{
		id:          id,
		participant: params.Participant,
		conn:        params.Conn,
		sendChan:    make(chan *ServerMessage, 100),
		ctx:         ctx,
		cancel:      cancel,
		handler:     params.Handler,
		workerPool:  pool,
		logger: params.Logger.With().
			Str("client_id", id).
			Str("participant", params.Participant.Hex()).
			Logger(),
	}
}

func (client *WsClient) Start() {
	go client.messageSender()
	go client.messageReceiver()
}

func (client *WsClient) Stop() {
	client.mu.Lock()
	defer client.mu.Unlock()

	if client.stopped {
		return
	}
	client.stopped = true

	client.cancel()
	client.conn.Close()
	client.workerPool.Stop()
}

// Send queues a message for the client, waiting briefly when the queue is full
func (client *WsClient) Send(msg *ServerMessage) error {
	client.mu.Lock()
	stopped := client.stopped
	client.mu.Unlock()
	if stopped {
		return fmt.Errorf("client is stopped")
	}

	select {
	case client.sendChan <- msg:
		return nil
	case <-client.ctx.Done():
		return fmt.Errorf("client is stopped")
	case <-time.After(100 * time.Millisecond):
		return fmt.Errorf("client send channel is full")
	}
}

func (client *WsClient) messageSender() {
	for {
		select {
		case msg := <-client.sendChan:
			if err := client.conn.WriteJSON(msg); err != nil {
				client.logger.Error().Err(err).Msg("Failed to send message to client")
				client.cancel()
				return
			}
		case <-client.ctx.Done():
			return
		}
	}
}

func (client *WsClient) messageReceiver() {
	client.conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				client.logger.Error().Err(err).Msg("WebSocket read error for client")
			} else {
				client.logger.Debug().Str("error", err.Error()).Msg("WebSocket connection closed for client")
			}
			client.cancel()
			return
		}

		// TrySubmit never panics on a pool stopped by a concurrent disconnect.
		if !client.workerPool.TrySubmit(func() { client.handleMessage(message) }) {
			if client.ctx.Err() != nil {
				return
			}
			client.logger.Warn().Msg("Client message queue full, rejecting message")
			if err := client.Send(NewErrorMessage(errClientBusy, nil)); err != nil {
				client.logger.Error().Err(err).Msg("Failed to send error to client")
			}
		}
	}
}

// handleMessage answers every message with either a reply or an error
func (client *WsClient) handleMessage(data []byte) {
	msg, err := ParseClientMessage(data)
	if err == nil {
		err = msg.Validate()
	}
	if err == nil {
		if msg.Type == MessageTypePing {
			err = client.Send(NewReply(MessageTypePong, msg))
		} else {
			err = client.handler.HandleClientMessage(client.ctx, client, msg)
		}
	}
	if err == nil {
		return
	}

	client.logger.Warn().Err(err).Msg("Client message rejected")
	if sendErr := client.Send(NewErrorMessage(err, msg)); sendErr != nil {
		client.logger.Error().Err(sendErr).Msg("Failed to send error to client")
	}
}
