package wallet

import (
	"context"
	"errors"
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrAuthenticationFailed = errors.New("invalid PIN")
	ErrInsufficientFunds    = errors.New("insufficient wallet balance")
	ErrLimitExceeded        = errors.New("monthly spending limit exceeded")
	ErrAccountNotFound      = errors.New("account not found")
	ErrWalletBusy           = errors.New("wallet is busy, retry shortly")
	ErrLedgerMismatch       = errors.New("ledger does not reproduce balance")
)

// Code is the stable machine-readable name of an engine error.
func Code(err error) string {
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrAuthenticationFailed):
		return "AUTHENTICATION_FAILED"
	case errors.Is(err, ErrInsufficientFunds):
		return "INSUFFICIENT_FUNDS"
	case errors.Is(err, ErrLimitExceeded):
		return "LIMIT_EXCEEDED"
	case errors.Is(err, ErrAccountNotFound):
		return "ACCOUNT_NOT_FOUND"
	case errors.Is(err, ErrWalletBusy), errors.Is(err, context.DeadlineExceeded):
		return "WALLET_BUSY"
	}
	return "INTERNAL_ERROR"
}
