package notam

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedInput marks records or codes that cannot be interpreted.
	ErrMalformedInput = errors.New("malformed input")
	// ErrConfiguration marks invalid pipeline or rule construction.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrQuery marks invalid query predicate arguments.
	ErrQuery = errors.New("invalid query")
)

// ConfigurationError is returned when a pipeline or rule set is built or
// mutated into an invalid state.
type ConfigurationError struct {
	Op     string
	Name   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Op, e.Name, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// QueryError is recorded by the query transition that received a bad argument.
type QueryError struct {
	Op     string
	Arg    any
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s(%v): %s", e.Op, e.Arg, e.Reason)
}

func (e *QueryError) Is(target error) bool { return target == ErrQuery }

// CategorizationError describes a categorizer that failed on one NOTAM.
type CategorizationError struct {
	NotamID     string
	Categorizer string
	Cause       any
}

func (e *CategorizationError) Error() string {
	return fmt.Sprintf("categorizer %q failed on NOTAM %s: %v", e.Categorizer, e.NotamID, e.Cause)
}

func (e *CategorizationError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// BatchError collects the per-NOTAM failures of one CategorizeAll call.
type BatchError struct {
	Failures []*CategorizationError
}

func (e *BatchError) Error() string {
	ids := e.NotamIDs()
	return fmt.Sprintf("categorization failed for %d NOTAM(s): %s", len(ids), strings.Join(ids, ", "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// NotamIDs returns the ids of the failed NOTAMs in batch order
func (e *BatchError) NotamIDs() []string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.NotamID
	}
	return ids
}
