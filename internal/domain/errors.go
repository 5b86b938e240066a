package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the stable machine-readable classification of a pipeline
// failure. Callers branch on Kind, never on message text.
type ErrorKind string

const (
	KindBudgetExceeded      ErrorKind = "budget_exceeded"
	KindGenerationError     ErrorKind = "generation_error"
	KindValidationFailed    ErrorKind = "validation_failed"
	KindInputMissing        ErrorKind = "input_missing"
	KindSpawnError          ErrorKind = "spawn_error"
	KindTimeout             ErrorKind = "timeout"
	KindNonZeroExit         ErrorKind = "non_zero_exit"
	KindBridgeUnavailable   ErrorKind = "bridge_unavailable"
	KindBridgeError         ErrorKind = "bridge_error"
	KindRegistrationWarning ErrorKind = "registration_warning"
)

// PipelineError carries the kind, a human-readable reason, and the attempted
// (sanitized) command when one exists. Details holds the full error list for
// validation failures.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Command []string
	Details []string
	Wrapped error
}

func (e *PipelineError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Details, "; "))
		b.WriteString(")")
	}
	if len(e.Command) > 0 {
		fmt.Fprintf(&b, " [command: %s]", strings.Join(e.Command, " "))
	}
	return b.String()
}

func (e *PipelineError) Unwrap() error {
	return e.Wrapped
}

// NewError builds a PipelineError without an attempted command.
func NewError(kind ErrorKind, format string, args ...interface{}) *PipelineError {
	return &PipelineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err, or an empty kind when err is not a
// PipelineError.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsRecoverable reports whether the pipeline may silently redirect to the
// fallback generator instead of failing the request.
func IsRecoverable(kind ErrorKind) bool {
	return kind == KindBudgetExceeded || kind == KindGenerationError
}
