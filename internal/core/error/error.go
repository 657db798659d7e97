package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// TranscriptErrorMessage describes a failed session transcript read or write.
	TranscriptErrorMessage = "session transcript store failed"
	// TranscriptNotFoundMessage describes an unknown session.
	TranscriptNotFoundMessage = "session not found"
	// TranscriptTimeoutMessage describes a transcript store call that ran out of time.
	TranscriptTimeoutMessage = "session transcript store timed out"
	// TranscriptUnavailableMessage describes a closed transcript store client.
	TranscriptUnavailableMessage = "session transcript store unavailable"
	// PostgresErrorMessage describes vector store failures.
	PostgresErrorMessage = "vector store operation failed"
	// ClassificationErrorMessage describes a failed intent classification.
	ClassificationErrorMessage = "intent classification failed"
	// SynthesisErrorMessage describes a failed response generation.
	SynthesisErrorMessage = "response generation failed"
	// TurnLogErrorMessage describes a failed conversation log append.
	TurnLogErrorMessage = "conversation log append failed"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// WrapClassification marks a failure of the intent classification model call.
func WrapClassification(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, ClassificationErrorMessage)
}

// WrapSynthesis marks a failure of the response generation model call.
func WrapSynthesis(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, SynthesisErrorMessage)
}

// WrapTurnLog marks a failure to persist a completed turn.
func WrapTurnLog(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusInternalServerError, TurnLogErrorMessage)
}

// WrapPostgres wraps a vector store error with a consistent status code and message.
func WrapPostgres(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, PostgresErrorMessage)
}

// StatusOf returns the HTTP status carried by the first AppError in the chain,
// or 500 when there is none.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return errors.As(e.Err, target)
}
