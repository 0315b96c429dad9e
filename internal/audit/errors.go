package audit

import "errors"

// Validation errors.
var (
	ErrInvalidTransactionID = errors.New("invalid transaction id")
	ErrInvalidDateRange     = errors.New("end_date must not be before start_date")
)
