package domain

import "errors"

// Typed failures crossing the core boundary. Absence of an identifier is
// never fatal during ingestion; these cover genuinely invalid operations.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnknownRulePack  = errors.New("unknown rule pack")
	ErrUnknownFixType   = errors.New("unknown auto-fix type")
	ErrNoAutoFix        = errors.New("no auto-fix suggestion")
	ErrExceptionNotOpen = errors.New("exception is not open")
)
