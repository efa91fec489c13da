package services

import (
	"errors"
	"fmt"
)

// Failure taxonomy surfaced to the transport layer. Handlers check these with
// errors.Is and map them to status codes; nothing is retried internally.
var (
	// ErrNotFound: an arena/match/student id does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState: the entity's status forbids the operation (e.g.,
	// declaring a winner on a pending or completed match).
	ErrInvalidState = errors.New("invalid state")
	// ErrValidation: malformed input (too few students, non-positive rounds,
	// winner id that is not a participant).
	ErrValidation = errors.New("validation error")
	// ErrInsufficientCandidates: the scheduler could not find an opponent
	// within constraints.
	ErrInsufficientCandidates = errors.New("insufficient candidates")
)

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func invalidStatef(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidState)...)
}

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}
