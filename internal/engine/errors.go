package engine

import "errors"

// Transition errors. The UI layer is expected to never offer illegal
// transitions, but the engine guards them regardless.
var (
	// ErrInvoiceVoid is returned when an operation targets a void invoice.
	// Void is terminal; nothing leaves it.
	ErrInvoiceVoid = errors.New("invoice is void")

	// ErrInvalidTransition is returned for transitions the state machine
	// forbids, such as voiding a paid invoice.
	ErrInvalidTransition = errors.New("invalid invoice state transition")

	// ErrNegativePayment is returned when a payment amount is negative.
	ErrNegativePayment = errors.New("payment amount cannot be negative")
)
