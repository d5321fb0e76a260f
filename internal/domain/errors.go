package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no live version exists for the requested identity.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists means a strict create hit an identity that already
	// has a live version.
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict means concurrent writers raced on the same identity key
	// and bounded retries were exhausted. Callers may retry.
	ErrConflict = errors.New("concurrent write conflict")
	// ErrValidation means the request itself was malformed (empty identity
	// key, bad property map).
	ErrValidation = errors.New("validation failed")
)

// RuleEvaluationError reports that a single ontology rule failed to
// evaluate or materialize. It never aborts the remaining rules.
type RuleEvaluationError struct {
	Rule RuleKey
	Err  error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.Rule, e.Err)
}

func (e *RuleEvaluationError) Unwrap() error {
	return e.Err
}
