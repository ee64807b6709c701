package shared

import "errors"

// Kind groups rejected-call errors so transports can map them to a status.
type Kind string

const (
	KindState         Kind = "state"
	KindAuthorization Kind = "authorization"
	KindCollateral    Kind = "collateral"
	KindTransfer      Kind = "transfer"
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindInternal      Kind = "internal"
)

// Error is a rejected-call error with a stable machine readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Domain-specific errors
var (
	// Lifecycle errors
	ErrAlreadyStarted  = newError(KindState, "already_started", "auction already started")
	ErrNotStarted      = newError(KindState, "not_started", "auction not started")
	ErrAuctionExpired  = newError(KindState, "auction_expired", "auction expired")
	ErrAuctionNotEnded = newError(KindState, "auction_not_ended", "auction has not ended")
	ErrAuctionEnded    = newError(KindState, "auction_ended", "auction already ended")

	// Authorization errors
	ErrUnauthorized = newError(KindAuthorization, "unauthorized", "caller lacks the required capability")

	// Collateral errors
	ErrAlreadyDeposited    = newError(KindCollateral, "already_deposited", "participant already has an active deposit")
	ErrNoDeposit           = newError(KindCollateral, "no_deposit", "participant has no active deposit")
	ErrSellerIneligible    = newError(KindCollateral, "seller_ineligible", "seller cannot claim a refund")
	ErrInsufficientBalance = newError(KindCollateral, "insufficient_balance", "insufficient balance of the deposit asset")

	// Transfer errors
	ErrTransferFailed = newError(KindTransfer, "transfer_failed", "asset transfer failed")

	// Validation errors
	ErrInvalidPriceRange      = newError(KindValidation, "invalid_price_range", "end price must not exceed start price")
	ErrInvalidStartPrice      = newError(KindValidation, "invalid_start_price", "start price must be greater than 0")
	ErrInvalidEndPrice        = newError(KindValidation, "invalid_end_price", "end price cannot be negative")
	ErrInvalidDecrement       = newError(KindValidation, "invalid_decrement", "price decrement must be greater than 0")
	ErrInvalidInterval        = newError(KindValidation, "invalid_interval", "decrement interval must be positive")
	ErrInvalidDuration        = newError(KindValidation, "invalid_duration", "duration must be positive")
	ErrInvalidDepositAmount   = newError(KindValidation, "invalid_deposit_amount", "deposit amount cannot be negative")
	ErrInvalidAddress         = newError(KindValidation, "invalid_address", "address must be a non-zero hex address")
	ErrInvalidAmount          = newError(KindValidation, "invalid_amount", "amount must be greater than 0")
	ErrInvalidPrecision       = newError(KindValidation, "invalid_precision", "amounts carry at most 18 decimal places")
	ErrInvalidRequest         = newError(KindValidation, "invalid_request", "invalid request")
	ErrMessageTypeRequired    = newError(KindValidation, "message_type_required", "message type is required")
	ErrAuctionIDRequired      = newError(KindValidation, "auction_id_required", "auction_id is required")
	ErrUnknownMessageType     = newError(KindValidation, "unknown_message_type", "unknown message type")
	ErrInvalidAuctionIDFormat = newError(KindValidation, "invalid_auction_id", "invalid auction_id format")

	// Lookup errors
	ErrAuctionNotFound = newError(KindNotFound, "auction_not_found", "auction not found")

	// Transport errors
	ErrClientEventChannelNotFound = newError(KindInternal, "event_channel_missing", "client event channel not found")
)

// KindOf reports the kind of a rejected-call error, or KindInternal for
// anything outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the stable error code, "internal" for unknown errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
