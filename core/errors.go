// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure.
type Kind int

// Failure kinds
const (
	UnknownError Kind = iota
	InitializationError
	NoSuitableDeviceError
	ShaderCompilationError
	ResourceCreationFailure
	RecordingError
	SubmissionError
	SyncTimeoutError
	MissingDependencyError
	ResourceInUseError
)

var kindNames = [...]string{
	"unknown error",
	"initialization error",
	"no suitable device",
	"shader compilation error",
	"resource creation failure",
	"recording error",
	"submission error",
	"sync timeout",
	"missing dependency",
	"resource in use",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return kindNames[0]
	}
	return kindNames[k]
}

// Condition marks failures that may go away after the device is
// initialised again.
type Condition int

// Transient conditions
const (
	NoCondition Condition = iota
	DeviceLost
	OutOfMemory
)

func (c Condition) String() string {
	switch c {
	case DeviceLost:
		return "device lost"
	case OutOfMemory:
		return "out of memory"
	}
	return "none"
}

// Error is the failure returned by every fallible operation in this module.
type Error struct {
	Kind      Kind
	Op        string
	Condition Condition
	Err       error
}

// Errorf builds an *Error from a format string.
func Errorf(kind Kind, op string, format string, args ...interface{}) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  errors.Errorf(format, args...),
	}
}

// Wrap classifies err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  errors.WithStack(err),
	}
}

// WithCondition returns a copy of e marked with c.
func (e *Error) WithCondition(c Condition) *Error {
	cp := *e
	cp.Condition = c
	return &cp
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	if e.Op != "" {
		msg = fmt.Sprintf("%s(): %s", e.Op, msg)
	}
	if e.Condition != NoCondition {
		msg = fmt.Sprintf("%s [%s]", msg, e.Condition)
	}
	return msg
}

// Cause implements the pkg/errors causer.
func (e *Error) Cause() error {
	return e.Err
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth retrying after
// initialising the device again.
func (e *Error) Retryable() bool {
	return e.Condition == DeviceLost || e.Condition == OutOfMemory
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UnknownError
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether err is a device-lost or out-of-memory failure.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

// Retry calls fn until it succeeds, fails with a non retryable error,
// or has been called attempts times.
func Retry(attempts int, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(attempt); err == nil || !IsRetryable(err) {
			return err
		}
	}
	return errors.Wrapf(err, "gave up after %d attempts", attempts)
}
