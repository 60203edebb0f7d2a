// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashset

import (
	"errors"
	"fmt"
)

// Error is returned by Set operations that can fail. Callers normally match
// it with errors.Is against one of the Err* variables below, which compares
// codes only.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // wrapped error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hashset: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("hashset: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// ErrorCode classifies Set failures.
type ErrorCode int

const (
	// CodeAllocation indicates the requested bucket count exceeds the
	// representable maximum, or the Allocator could not provide storage.
	CodeAllocation ErrorCode = iota + 1

	// CodeOverflow indicates the element counter would overflow.
	CodeOverflow

	// CodeInvalidWorkers indicates zero workers were requested.
	CodeInvalidWorkers

	// CodeZeroDivision indicates a bucket index was requested from a set
	// with no buckets.
	CodeZeroDivision

	// CodeInvalidWorker indicates a Pool was handed a worker index it does
	// not have.
	CodeInvalidWorker
)

var errorMessages = map[ErrorCode]string{
	CodeAllocation:     "allocation failure",
	CodeOverflow:       "maximum number of elements reached",
	CodeInvalidWorkers: "the number of workers must be strictly positive",
	CodeZeroDivision:   "cannot calculate bucket index in an empty set",
	CodeInvalidWorker:  "worker index out of range",
}

// NewError creates a new Error with the given code.
func NewError(code ErrorCode) *Error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = fmt.Sprintf("unknown error code %d", code)
	}
	return &Error{Code: code, Message: msg}
}

// WrapError creates a new Error wrapping another error.
func WrapError(code ErrorCode, err error) *Error {
	e := NewError(code)
	e.Err = err
	return e
}

func errorf(code ErrorCode, format string, args ...any) *Error {
	return WrapError(code, fmt.Errorf(format, args...))
}

var (
	ErrAllocation     = NewError(CodeAllocation)
	ErrOverflow       = NewError(CodeOverflow)
	ErrInvalidWorkers = NewError(CodeInvalidWorkers)
	ErrZeroDivision   = NewError(CodeZeroDivision)
	ErrInvalidWorker  = NewError(CodeInvalidWorker)
)
