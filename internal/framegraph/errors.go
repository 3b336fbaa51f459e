package framegraph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes frame graph errors.
type ErrorCode string

const (
	// ErrCodeInvalidDependency indicates a self-edge or an unknown PassID.
	ErrCodeInvalidDependency ErrorCode = "INVALID_DEPENDENCY"

	// ErrCodeEmptyQueueFamily indicates a family registered with zero queues.
	ErrCodeEmptyQueueFamily ErrorCode = "EMPTY_QUEUE_FAMILY"

	// ErrCodeCapabilityMismatch indicates a pass bound to a family lacking its capability.
	ErrCodeCapabilityMismatch ErrorCode = "CAPABILITY_MISMATCH"

	// ErrCodeTypeMismatch indicates setup data fetched with the wrong type.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeCyclicDependency indicates the dependency set contains a cycle.
	ErrCodeCyclicDependency ErrorCode = "CYCLIC_DEPENDENCY"

	// ErrCodeUnsynchronizedAccess indicates two unordered passes touching
	// the same logical resource where at least one writes it.
	ErrCodeUnsynchronizedAccess ErrorCode = "UNSYNCHRONIZED_ACCESS"

	// ErrCodeUnknownResource indicates a logical handle never created by this
	// builder, or a history import that cannot be resolved.
	ErrCodeUnknownResource ErrorCode = "UNKNOWN_RESOURCE_REFERENCE"

	// ErrCodeInvalidQueue indicates a queue index outside its family or an
	// unregistered family.
	ErrCodeInvalidQueue ErrorCode = "INVALID_QUEUE"

	// ErrCodeInvalidSetup indicates a setup value that is not a plain value type.
	ErrCodeInvalidSetup ErrorCode = "INVALID_SETUP"

	// ErrCodeBuilderConsumed indicates use of a builder after Compile.
	ErrCodeBuilderConsumed ErrorCode = "BUILDER_CONSUMED"
)

// Sentinels for errors.Is matching. Only the code is compared.
var (
	ErrInvalidDependency    = &Error{Code: ErrCodeInvalidDependency}
	ErrEmptyQueueFamily     = &Error{Code: ErrCodeEmptyQueueFamily}
	ErrCapabilityMismatch   = &Error{Code: ErrCodeCapabilityMismatch}
	ErrTypeMismatch         = &Error{Code: ErrCodeTypeMismatch}
	ErrCyclicDependency     = &Error{Code: ErrCodeCyclicDependency}
	ErrUnsynchronizedAccess = &Error{Code: ErrCodeUnsynchronizedAccess}
	ErrUnknownResource      = &Error{Code: ErrCodeUnknownResource}
	ErrInvalidQueue         = &Error{Code: ErrCodeInvalidQueue}
	ErrInvalidSetup         = &Error{Code: ErrCodeInvalidSetup}
	ErrBuilderConsumed      = &Error{Code: ErrCodeBuilderConsumed}
)

// Error is returned by every fallible frame graph operation.
//
// Passes lists the passes involved: both ends of a rejected dependency,
// every pass on a cycle, or the two passes racing on Resource.
type Error struct {
	Code     ErrorCode
	Message  string
	Passes   []PassID
	Resource *ResourceID
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Passes) > 0 {
		ids := make([]string, len(e.Passes))
		for i, p := range e.Passes {
			ids[i] = p.String()
		}
		fmt.Fprintf(&b, " (passes=%s)", strings.Join(ids, ","))
	}
	if e.Resource != nil {
		fmt.Fprintf(&b, " (resource=%s)", e.Resource)
	}
	return b.String()
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the ErrorCode from err, or "" when err is not a frame graph error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// IsCycleError returns true if the error is a cyclic dependency error.
func IsCycleError(err error) bool {
	return CodeOf(err) == ErrCodeCyclicDependency
}

// IsTypeMismatch returns true if the error is a setup type mismatch.
func IsTypeMismatch(err error) bool {
	return CodeOf(err) == ErrCodeTypeMismatch
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
