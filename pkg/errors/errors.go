// Unified error handling for the CNC controller
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Operation runner errors
	ErrOpNotAccepted ErrorCode = "OP_NOT_ACCEPTED"
	ErrOpQueueFull   ErrorCode = "OP_QUEUE_FULL"
	ErrOpFailed      ErrorCode = "OP_FAILED"

	// Cycle / feedhold errors
	ErrHoldState   ErrorCode = "HOLD_STATE"
	ErrHoldAborted ErrorCode = "HOLD_ABORTED"

	// Motion errors
	ErrPlannerFull  ErrorCode = "PLANNER_FULL"
	ErrMotionLimit  ErrorCode = "MOTION_LIMIT"
	ErrRuntimeState ErrorCode = "RUNTIME_STATE"

	// Runtime errors
	ErrRuntime     ErrorCode = "RUNTIME"
	ErrRuntimeInit ErrorCode = "RUNTIME_INIT"

	// Front-end errors
	ErrSerialPort ErrorCode = "SERIAL_PORT"
	ErrMonitor    ErrorCode = "MONITOR"
)

// ErrAgain is the sentinel returned by actions and blockers that have not
// finished yet and must be re-invoked on a later tick.
var ErrAgain = stderrors.New("again")

// IsAgain reports whether err (or anything it wraps) is the ErrAgain sentinel.
func IsAgain(err error) bool {
	return stderrors.Is(err, ErrAgain)
}

// ControlError is the unified error type for the controller
type ControlError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Component is the subsystem the error originated in
	Component string

	// Err wraps the underlying error
	Err error

	// Context provides additional context
	Context map[string]interface{}
}

// Error implements the error interface
func (e *ControlError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Component, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ControlError) Unwrap() error {
	return e.Err
}

// SetComponent sets the originating subsystem
func (e *ControlError) SetComponent(component string) *ControlError {
	e.Component = component
	return e
}

// SetContext adds additional context
func (e *ControlError) SetContext(key string, value interface{}) *ControlError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new ControlError
func New(code ErrorCode, message string) *ControlError {
	return &ControlError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *ControlError {
	return &ControlError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Operation runner errors

// OpNotAcceptedError is returned when an action is added while an operation
// is already executing.
func OpNotAcceptedError() *ControlError {
	return New(ErrOpNotAccepted, "operation in progress; action not accepted").
		SetComponent("cycle")
}

// OpQueueFullError is returned when the operation's action array is full.
func OpQueueFullError() *ControlError {
	return New(ErrOpQueueFull, "operation action queue full").
		SetComponent("cycle")
}

// Motion errors

// PlannerFullError is returned when a move cannot be buffered.
func PlannerFullError(planner string) *ControlError {
	return New(ErrPlannerFull, fmt.Sprintf("planner '%s' has no free buffers", planner)).
		SetComponent("motion")
}

// Config errors

// ConfigLoadError creates an error for a config file that cannot be read or parsed
func ConfigLoadError(path string, err error) *ControlError {
	return Wrap(err, ErrConfigLoad, fmt.Sprintf("failed to load config '%s'", path)).
		SetComponent("config")
}

// ConfigValidationError creates an error for config validation failure
func ConfigValidationError(field, reason string) *ControlError {
	return New(ErrConfigValidation, fmt.Sprintf("option '%s': %s", field, reason)).
		SetComponent("config")
}

// Runtime errors

// RuntimeError creates a general runtime error
func RuntimeError(message string) *ControlError {
	return New(ErrRuntime, message)
}

// RuntimeErrorInit creates an error for initialization failure
func RuntimeErrorInit(component string, reason string) *ControlError {
	return New(ErrRuntimeInit, fmt.Sprintf("failed to initialize %s: %s", component, reason)).
		SetComponent(component)
}

// RecoverPanic converts a recovered panic value to an error. Call it with
// recover()'s result from the deferred function itself:
//
//	defer func() {
//		if err := errors.RecoverPanic(recover()); err != nil { ... }
//	}()
func RecoverPanic(r interface{}) *ControlError {
	if r == nil {
		return nil
	}
	switch x := r.(type) {
	case string:
		return RuntimeError(fmt.Sprintf("panic: %s", x))
	case runtime.Error:
		return RuntimeError(x.Error())
	case error:
		return RuntimeError(x.Error())
	default:
		return RuntimeError(fmt.Sprintf("panic: %v", x))
	}
}

// Is checks if error matches given error code
func Is(err error, code ErrorCode) bool {
	var ce *ControlError
	if stderrors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// CodeOf returns the error code carried by err, or the empty code for plain
// errors.
func CodeOf(err error) ErrorCode {
	var ce *ControlError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsConfig checks if error is a config error
func IsConfig(err error) bool {
	return Is(err, ErrConfigLoad) || Is(err, ErrConfigValidation)
}

// IsOperation checks if error came from the operation runner
func IsOperation(err error) bool {
	return Is(err, ErrOpNotAccepted) ||
		Is(err, ErrOpQueueFull) ||
		Is(err, ErrOpFailed)
}
