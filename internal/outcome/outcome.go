// Package outcome defines the failure categories surfaced to board users and
// the discriminated result returned by every submit-style operation.
package outcome

import (
	"errors"
	"fmt"
)

// Category names a user-facing failure class
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryFetch      Category = "fetch"
	CategoryGeneration Category = "generation"
)

// ErrBusy is returned when a panel already has a request in flight
var ErrBusy = errors.New("a request is already in progress")

// ValidationError reports a caller-side precondition violation.
// No boundary call is made when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// FetchError reports an image reference that could not be retrieved
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch image %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// GenerationError reports a failed or unusable text generation
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Failure is the error half of a Result, safe to show to users
type Failure struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

// Result is either a Value or an Error, never both
type Result struct {
	Value string   `json:"value,omitempty"`
	Error *Failure `json:"error,omitempty"`
}

// OK reports whether the result carries a value
func (r Result) OK() bool {
	return r.Error == nil
}

// Success wraps a generated value
func Success(value string) Result {
	return Result{Value: value}
}

// FromError converts any error into a failure result. genericMessage is shown
// for fetch and generation failures so causes never reach the user verbatim.
func FromError(err error, genericMessage string) Result {
	var validation *ValidationError
	var fetch *FetchError
	switch {
	case errors.As(err, &validation):
		return Result{Error: &Failure{Category: CategoryValidation, Message: validation.Message}}
	case errors.As(err, &fetch):
		return Result{Error: &Failure{Category: CategoryFetch, Message: genericMessage}}
	default:
		return Result{Error: &Failure{Category: CategoryGeneration, Message: genericMessage}}
	}
}
