package models

import "github.com/myrjola/sleuth/internal/errors"

// Failure taxonomy shared by the oracle client, the interview stages, the session store and the presentation
// layers. Callers match with errors.Is; every occurrence is wrapped with context.
var (
	// ErrInvalidInput is returned when the respondent supplied nothing to work with, e.g., an empty report.
	ErrInvalidInput = errors.NewSentinel("invalid input")
	// ErrOracleTransport is returned when the oracle could not be reached after exhausting retries.
	ErrOracleTransport = errors.NewSentinel("oracle transport failure")
	// ErrSchemaViolation is returned when the oracle answered but not in the agreed structure.
	ErrSchemaViolation = errors.NewSentinel("oracle schema violation")
	// ErrSessionNotFound is returned by the session store for unknown identifiers.
	ErrSessionNotFound = errors.NewSentinel("session not found")
	// ErrInvalidTransition is returned when an operation is not allowed in the session's current state.
	ErrInvalidTransition = errors.NewSentinel("invalid transition")
)
