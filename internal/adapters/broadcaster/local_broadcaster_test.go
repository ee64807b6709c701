package broadcaster

import (
	"context"
	"testing"

	"dutch-auction-service/internal/domain/auction"
	"dutch-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/rs/zerolog"
)

func TestLocalBroadcasterRoutesByAuction(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBroadcaster(zerolog.Nop())
	first, second := uuid.New(), uuid.New()

	ch := make(chan outbound.Event, 4)
	assert.NoError(t, b.Subscribe(ctx, first, "c1", ch))
	check.True(t, b.IsSubscribed(ctx, first, "c1"))
	check.False(t, b.IsSubscribed(ctx, second, "c1"))

	assert.NoError(t, b.Publish(ctx, second, outbound.Event{Type: auction.EventAuctionStarted}))
	assert.NoError(t, b.Publish(ctx, first, outbound.Event{Type: auction.EventPriceDecayed}))

	check.Equal(t, 1, len(ch))
	ev := <-ch
	check.Equal(t, auction.EventPriceDecayed, ev.Type)
	check.Equal(t, first, ev.AuctionID)
	check.True(t, ev.Timestamp > 0)

	subs, err := b.GetSubscribers(ctx, first)
	assert.NoError(t, err)
	check.Equal(t, []string{"c1"}, subs)
}

func TestLocalBroadcasterUnsubscribe(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBroadcaster(zerolog.Nop())
	id := uuid.New()

	ch := make(chan outbound.Event, 1)
	assert.NoError(t, b.Subscribe(ctx, id, "c1", ch))
	assert.NoError(t, b.Unsubscribe(ctx, id, "c1"))
	check.False(t, b.IsSubscribed(ctx, id, "c1"))

	assert.NoError(t, b.Publish(ctx, id, outbound.Event{Type: auction.EventAuctionEnded}))
	check.Equal(t, 0, len(ch))
}

func TestLocalBroadcasterDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBroadcaster(zerolog.Nop())
	id := uuid.New()

	ch := make(chan outbound.Event, 1)
	assert.NoError(t, b.Subscribe(ctx, id, "c1", ch))
	assert.NoError(t, b.Publish(ctx, id, outbound.Event{Type: auction.EventPriceDecayed}))
	assert.NoError(t, b.Publish(ctx, id, outbound.Event{Type: auction.EventAuctionEnded}))

	check.Equal(t, 1, len(ch))
	check.Equal(t, auction.EventPriceDecayed, (<-ch).Type)
}
