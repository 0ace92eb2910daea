package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Pipeline failure taxonomy. Stage errors wrap one of these sentinels so
// callers can classify with errors.Is.
var (
	// ErrUnsupportedFormat: the detector returned unknown. Fatal, not retried.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrParsingFailure: the external vision parser errored.
	ErrParsingFailure = errors.New("vision parsing failed")

	// ErrNoParserContent: the parser ran but produced no markdown artifact.
	// Distinct from a parser that produced empty content.
	ErrNoParserContent = errors.New("vision parsing produced no content")

	// ErrCompletionFailure: the LLM response was unusable (transport error,
	// malformed JSON, or record-type validation failure).
	ErrCompletionFailure = errors.New("record extraction failed")

	// ErrTemplateWrite: composing or saving the output workbook failed.
	ErrTemplateWrite = errors.New("template write failed")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
)

// NewAppError builds an AppError wrapping cause.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// WrapError annotates err with message, preserving the chain.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
