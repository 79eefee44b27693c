package shared

import "errors"

// Error taxonomy shared across the ledger engine. Domain packages wrap these
// sentinels with context so handlers can map failures to HTTP statuses with
// errors.Is.
var (
	// ErrValidation indicates malformed or missing required input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock indicates an outward would drive stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOverpayment indicates a payment exceeding the invoice balance.
	ErrOverpayment = errors.New("payment exceeds balance due")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrConflict indicates the record's current state forbids the operation.
	ErrConflict = errors.New("conflicting state")
)
