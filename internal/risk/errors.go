package risk

import (
	"errors"
	"fmt"
)

// ErrLockTimeout means the account's serialization scope could not be
// acquired in time. Nothing was written; the caller may retry the event.
var ErrLockTimeout = errors.New("timed out waiting for account lock")

// RuleDefinitionError marks a stored rule whose parameters cannot be used.
// The rule is skipped; other rules in the batch still run.
type RuleDefinitionError struct {
	RuleID int64
	Err    error
}

func (e *RuleDefinitionError) Error() string {
	return fmt.Sprintf("rule %d: invalid definition: %v", e.RuleID, e.Err)
}

func (e *RuleDefinitionError) Unwrap() error { return e.Err }
