package fetch

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrFetchInProgress indicates a fetch for the same console id is
	// already running; callers treat this as a no-op, not a failure
	ErrFetchInProgress = errors.New("fetch already in progress for this console")
	// ErrOrchestratorUsed indicates a second Run on a single-use orchestrator
	ErrOrchestratorUsed = errors.New("orchestrator already used; create a new one")
)

// ItemError records a per-game failure that was skipped rather than
// aborting the whole fetch
type ItemError struct {
	GameID int
	Title  string
	Err    error
}

// Error implements the error interface
func (e *ItemError) Error() string {
	return fmt.Sprintf("game %d (%s): %v", e.GameID, e.Title, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As
func (e *ItemError) Unwrap() error {
	return e.Err
}
