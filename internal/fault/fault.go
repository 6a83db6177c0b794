// Package fault defines the error taxonomy shared by the normalizer, the
// event handlers and the reconciliation queue. Handlers classify failures so
// that callers can decide between aborting a single event, halting the
// process, or retrying on the next cycle.
package fault

import (
	"errors"
	"fmt"
)

// SchemaError reports that a raw event payload did not match any known
// protocol version of its schema. It is fatal for the event that carried the
// payload and must be raised before any write happens.
type SchemaError struct {
	Event string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation for %s: %v", e.Event, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Schema wraps err as a SchemaError for the named event.
func Schema(event string, err error) error {
	return &SchemaError{Event: event, Err: err}
}

// Schemaf builds a SchemaError from a format string.
func Schemaf(event, format string, args ...any) error {
	return &SchemaError{Event: event, Err: fmt.Errorf(format, args...)}
}

// IsSchema reports whether err is (or wraps) a SchemaError.
func IsSchema(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// InvariantError reports that an assumed protocol invariant does not hold,
// usually because an upstream event was missed. Fatal; replay after the root
// cause is fixed is expected to succeed.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "invariant violation: " + e.Msg }

// Invariantf builds an InvariantError from a format string.
func Invariantf(format string, args ...any) error {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}

// IsInvariant reports whether err is (or wraps) an InvariantError.
func IsInvariant(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// NotFoundError reports that a required parent entity is missing from the
// store. It indicates out-of-order event delivery and is fatal for the
// handler invocation that raised it.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found in entity store (key %s)", e.Entity, e.Key)
}

// NotFound builds a NotFoundError for the given entity and lookup key.
func NotFound(entity, keyFormat string, args ...any) error {
	return &NotFoundError{Entity: entity, Key: fmt.Sprintf(keyFormat, args...)}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// TransientError reports a failure that is expected to clear on its own,
// such as a network timeout against an external RPC. Callers retry the
// operation on a later cycle instead of halting.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError for the named operation.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// AmbiguousMatchError reports that a lookup which must resolve exactly one
// candidate resolved zero or more than one.
type AmbiguousMatchError struct {
	Subject    string
	Candidates int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous match for %s: %d candidates", e.Subject, e.Candidates)
}

// Ambiguous builds an AmbiguousMatchError.
func Ambiguous(subject string, candidates int) error {
	return &AmbiguousMatchError{Subject: subject, Candidates: candidates}
}

// IsAmbiguous reports whether err is (or wraps) an AmbiguousMatchError.
func IsAmbiguous(err error) bool {
	var ae *AmbiguousMatchError
	return errors.As(err, &ae)
}
