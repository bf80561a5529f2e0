package disambiguation

import (
	"errors"
	"fmt"
)

// ConfigLoadError is returned when the rules document cannot be compiled.
// It is only produced at startup or on an explicit reload.
type ConfigLoadError struct {
	Path    string
	Field   string
	Message string
	Err     error
}

func (e *ConfigLoadError) Error() string {
	msg := "configLoadError"
	if e.Path != "" {
		msg += " [" + e.Path + "]"
	}
	if e.Field != "" {
		msg += " " + e.Field
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigLoadError) Unwrap() error { return e.Err }

func newConfigError(field, format string, args ...any) error {
	return &ConfigLoadError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RetrievalFailure wraps a catalog store or cache failure, timeouts included.
type RetrievalFailure struct {
	Op   string
	Term string
	Err  error
}

func (e *RetrievalFailure) Error() string {
	return fmt.Sprintf("retrievalFailure: %s %q: %v", e.Op, e.Term, e.Err)
}

func (e *RetrievalFailure) Unwrap() error { return e.Err }

// Error codes carried by results and turn responses.
const (
	CodeInvalidChoice     = "invalid_choice"
	CodeUnconfirmed       = "unconfirmed"
	CodeEmptyInput        = "empty_input"
	CodeAttemptsExhausted = "attempts_exhausted"
	CodeInvalidSession    = "invalid_session"
	CodeRetrieval         = "retrieval_failure"
	CodeInternal          = "internal_error"
	CodeStoreUnavailable  = "session_store_unavailable"
)

// ValidationError reports malformed user input. It is recovered with a re-prompt.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newValidationError(code, msg string) error {
	return &ValidationError{Code: code, Message: msg}
}

// TemplateRenderError reports a placeholder the renderer could not resolve.
// Rendering still succeeds with a visible marker in place of the value.
type TemplateRenderError struct {
	Template    string
	Placeholder string
}

func (e *TemplateRenderError) Error() string {
	return fmt.Sprintf("templateRenderError: template %q has unresolved placeholder %q", e.Template, e.Placeholder)
}

// errorCode maps an error to the code exposed in results.
func errorCode(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	var rf *RetrievalFailure
	if errors.As(err, &rf) {
		return CodeRetrieval
	}
	if err != nil {
		return CodeInternal
	}
	return ""
}
