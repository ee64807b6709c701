package ws

import (
	"errors"
	"testing"

	"dutch-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestParseClientMessage(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"bid","request_id":"r1","auction_id":"6f1c3c1e-8d52-4d3c-9d7e-0d4f4a8b2c11"}`))
	assert.NoError(t, err)
	check.Equal(t, MessageTypeBid, msg.Type)
	check.Equal(t, "r1", msg.RequestID)
	check.NoError(t, msg.Validate())

	_, err = ParseClientMessage([]byte(`{"auction_id":"6f1c3c1e-8d52-4d3c-9d7e-0d4f4a8b2c11"}`))
	check.True(t, errors.Is(err, shared.ErrMessageTypeRequired))

	_, err = ParseClientMessage([]byte(`not json`))
	check.True(t, errors.Is(err, shared.ErrInvalidRequest))
}

func TestValidateRequiresAuctionID(t *testing.T) {
	for _, typ := range []MessageType{
		MessageTypeSubscribe, MessageTypeUnsubscribe, MessageTypeGetAuction,
		MessageTypePayDeposit, MessageTypeClaimRefund, MessageTypeBid,
		MessageTypeStartAuction, MessageTypeCheckUpkeep,
	} {
		msg := &ClientMessage{Type: typ}
		check.True(t, errors.Is(msg.Validate(), shared.ErrAuctionIDRequired))

		nilID := uuid.Nil
		msg.AuctionID = &nilID
		check.True(t, errors.Is(msg.Validate(), shared.ErrAuctionIDRequired))

		id := uuid.New()
		msg.AuctionID = &id
		check.NoError(t, msg.Validate())
	}
}

func TestValidateListAuctionsStatus(t *testing.T) {
	msg := &ClientMessage{Type: MessageTypeListAuctions}
	check.NoError(t, msg.Validate())

	msg.Data = map[string]interface{}{"status": "started"}
	check.NoError(t, msg.Validate())

	msg.Data = map[string]interface{}{"status": "paused"}
	check.True(t, errors.Is(msg.Validate(), shared.ErrInvalidRequest))

	msg.Data = map[string]interface{}{"status": 3.0}
	check.True(t, errors.Is(msg.Validate(), shared.ErrInvalidRequest))
}

func TestValidateUnknownType(t *testing.T) {
	msg := &ClientMessage{Type: "place_bid"}
	check.True(t, errors.Is(msg.Validate(), shared.ErrUnknownMessageType))

	ping := &ClientMessage{Type: MessageTypePing}
	check.NoError(t, ping.Validate())
}

func TestNewErrorMessageCarriesCode(t *testing.T) {
	id := uuid.New()
	msg := NewErrorMessage(shared.ErrNoDeposit, &ClientMessage{Type: MessageTypeBid, RequestID: "r9", AuctionID: &id})
	check.Equal(t, MessageTypeError, msg.Type)
	check.Equal(t, shared.CodeOf(shared.ErrNoDeposit), msg.Code)
	check.Equal(t, "r9", msg.RequestID)
	check.Equal(t, id, *msg.AuctionID)
	check.NotNil(t, msg.Error)
}
