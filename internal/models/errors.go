package models

import (
	"fmt"
	"strings"
)

// AllocationExceededError is returned before any remote call when a
// prospective total allocation would go over the budget.
type AllocationExceededError struct {
	Current   float64 // committed total before the change
	Attempted float64 // total being added (add batch) or the edited total (save)
}

func (e *AllocationExceededError) Error() string {
	return fmt.Sprintf("total allocation would exceed %.0f%%: current %.2f%%, attempted %.2f%%",
		AllocationBudget, e.Current, e.Attempted)
}

// FetchError reports a failed read from the remote store. Local state is left untouched.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PersistError reports a failed write to the remote store. For batch saves
// Failed lists the holding ids whose write did not succeed.
type PersistError struct {
	Op     string
	Failed []string
	Err    error
}

func (e *PersistError) Error() string {
	if len(e.Failed) > 0 {
		return fmt.Sprintf("persist %s (failed holdings: %s): %v", e.Op, strings.Join(e.Failed, ", "), e.Err)
	}
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// ValidationError reports malformed or empty input caught before touching the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
