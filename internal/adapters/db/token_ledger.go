package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dutch-auction-service/internal/domain/shared"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TokenLedger keeps deposit asset balances in the token_balances table
type TokenLedger struct {
	q querier
}

// NewTokenLedger creates a new token ledger
func NewTokenLedger(q querier) *TokenLedger {
	return &TokenLedger{q: q}
}

// BalanceOf returns the balance of owner, zero for unknown accounts
func (l *TokenLedger) BalanceOf(ctx context.Context, token, owner common.Address) (decimal.Decimal, error) {
	query := `SELECT amount FROM token_balances WHERE token = $1 AND owner = $2`

	var amount decimal.Decimal
	err := l.q.QueryRowContext(ctx, query, token.Hex(), owner.Hex()).Scan(&amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return amount, nil
}

// Transfer moves amount between accounts. The debit only applies when the
// source balance covers it.
func (l *TokenLedger) Transfer(ctx context.Context, token, from, to common.Address, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return shared.ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}

	debit := `
		UPDATE token_balances SET amount = amount - $3
		WHERE token = $1 AND owner = $2 AND amount >= $3
	`
	result, err := l.q.ExecContext(ctx, debit, token.Hex(), from.Hex(), amount)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s cannot cover %s", shared.ErrTransferFailed, from.Hex(), amount)
	}

	return l.credit(ctx, token, to, amount)
}

// Credit adds amount to owner's balance
func (l *TokenLedger) Credit(ctx context.Context, token, owner common.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.ErrInvalidAmount
	}
	return l.credit(ctx, token, owner, amount)
}

func (l *TokenLedger) credit(ctx context.Context, token, owner common.Address, amount decimal.Decimal) error {
	query := `
		INSERT INTO token_balances (token, owner, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (token, owner)
		DO UPDATE SET amount = token_balances.amount + EXCLUDED.amount
	`

	if _, err := l.q.ExecContext(ctx, query, token.Hex(), owner.Hex(), amount); err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}
