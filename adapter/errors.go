package adapter

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is the cause of a ConnectionError returned when a
	// statement is issued without a session.
	ErrNotConnected = errors.New("not connected")
	// ErrNothingInserted is the cause of an IllegalStateError returned by
	// LastInsertedID.
	ErrNothingInserted = errors.New("nothing was inserted")
)

// ConfigurationError reports a missing or invalid connection parameter.
// It is returned before any connection attempt.
type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing argument: %s", e.Param)
	}
	return fmt.Sprintf("invalid argument %s: %s", e.Param, e.Reason)
}

// ConnectionError reports a failure to establish a session.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Phase is the step of statement execution.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePrepared
	PhaseBound
	PhaseExecuted
	PhaseMaterialized
)

var phaseNames = [...]string{"idle", "prepared", "bound", "executed", "materialized"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// StatementError reports a statement that failed on its way to Phase.
// Prepare failures carry PhasePrepared, bind failures PhaseBound.
type StatementError struct {
	SQL   string
	Phase Phase
	Err   error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement failed before %s: %v: %s", e.Phase, e.Err, e.SQL)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// IllegalStateError signals a call that is invalid in the adapter's
// current state.
type IllegalStateError struct {
	Reason string
	Err    error
}

func (e *IllegalStateError) Error() string {
	return e.Reason
}

func (e *IllegalStateError) Unwrap() error {
	return e.Err
}
