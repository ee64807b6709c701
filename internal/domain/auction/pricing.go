package auction

import (
	"time"

	"dutch-auction-service/internal/domain/shared"

	"github.com/shopspring/decimal"
)

// StepsOwed is the number of whole decrement intervals elapsed since start.
func (a *Auction) StepsOwed(now time.Time) int64 {
	if !a.Started || a.DecrementInterval <= 0 {
		return 0
	}
	elapsed := now.Sub(a.StartTime)
	if elapsed < 0 {
		return 0
	}
	return int64(elapsed / a.DecrementInterval)
}

// PriceAt is the scheduled price at now:
// max(endPrice, startPrice - decrement * floor(elapsed / interval)).
func (a *Auction) PriceAt(now time.Time) decimal.Decimal {
	return a.priceAfter(a.StepsOwed(now))
}

func (a *Auction) priceAfter(steps int64) decimal.Decimal {
	price := a.StartPrice.Sub(a.PriceDecrement.Mul(decimal.NewFromInt(steps)))
	if price.LessThan(a.EndPrice) {
		return a.EndPrice
	}
	return price
}

// CanTick reports whether a tick at now would lower the stored price.
func (a *Auction) CanTick(now time.Time) bool {
	return a.Started &&
		!a.Ended &&
		now.Before(a.EndTime) &&
		a.CurrentPrice.GreaterThan(a.EndPrice) &&
		a.StepsOwed(now) > a.DecrementsApplied
}

// Tick applies every decrement owed since the last tick, floored at the end
// price. Missed boundaries are caught up, so the stored price never depends
// on how regularly ticks arrive. It reports false when nothing changed.
func (a *Auction) Tick(now time.Time) (Event, bool) {
	if !a.CanTick(now) {
		return Event{}, false
	}

	owed := a.StepsOwed(now)
	before := a.CurrentPrice
	a.CurrentPrice = a.priceAfter(owed)
	a.DecrementsApplied = owed
	a.UpdatedAt = now

	return newEvent(EventPriceDecayed, a.ID, now, map[string]interface{}{
		"price_before":       before.String(),
		"price_after":        a.CurrentPrice.String(),
		"decrements_applied": decimal.NewFromInt(owed).String(),
	}), true
}

// UpkeepAction decides what an upkeep call at now should do.
func (a *Auction) UpkeepAction(now time.Time) shared.UpkeepAction {
	switch {
	case a.CanTick(now):
		return shared.UpkeepTick
	case a.Started && !a.Ended && a.IsExpired(now):
		return shared.UpkeepForceEnd
	default:
		return shared.UpkeepNone
	}
}
