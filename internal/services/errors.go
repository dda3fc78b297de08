package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalService = errors.New("external service error")
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("timeout")
	ErrTransient       = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsPermanent reports whether retrying the failed operation cannot succeed
// without operator intervention.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConfiguration)
}

// ErrorDetails summarises a failure for persistence and notifications.
type ErrorDetails struct {
	Kind    string
	Message string
	Hint    string
}

// Details classifies err by its marker and returns an operator-facing summary.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Message: strings.TrimSpace(err.Error())}
	switch {
	case errors.Is(err, ErrValidation):
		details.Kind = "validation"
		details.Hint = "inspect the source documents; retrying will not help until they are fixed"
	case errors.Is(err, ErrConfiguration):
		details.Kind = "configuration"
		details.Hint = "check credentials and endpoints in the tipflow config"
	case errors.Is(err, ErrNotFound):
		details.Kind = "not_found"
		details.Hint = "confirm the referenced document exists in the content store"
	case errors.Is(err, ErrTimeout):
		details.Kind = "timeout"
		details.Hint = "the vendor did not answer in time; retry the run"
	case errors.Is(err, ErrExternalService):
		details.Kind = "external"
		details.Hint = "check vendor status and retry the run"
	case errors.Is(err, ErrTransient):
		details.Kind = "transient"
		details.Hint = "retry the run"
	default:
		details.Kind = "unknown"
		details.Hint = "check logs for details"
	}
	return details
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
