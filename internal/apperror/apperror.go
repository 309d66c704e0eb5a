// Package apperror classifies errors into validation, API and network failures and maps them to
// user-facing messages and HTTP statuses.
package apperror

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aura-webinar/portal/pkg/apiclient"
)

// GenericMessage is shown when no better message is available.
const GenericMessage = "Something went wrong. Please try again."

// ValidationError carries field-level messages caught before any network call.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidation returns a ValidationError for a single field.
func NewValidation(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Conflict is a client-side rule violation that is not tied to a form field.
type Conflict struct {
	Message string
}

func (e *Conflict) Error() string { return e.Message }

var tagMessages = map[string]string{
	"required":    "is required",
	"required_if": "is required",
	"email":       "must be a valid email address",
	"eqfield":     "does not match",
	"min":         "is too short",
	"len":         "has the wrong length",
	"gte":         "must not be negative",
	"oneof":       "is not a supported value",
	"numeric":     "must be numeric",
}

// FromValidator converts validator errors into a ValidationError keyed by JSON field name
// (as reported by the validator's tag name func); other errors are returned unchanged.
func FromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		msg, ok := tagMessages[e.Tag()]
		if !ok {
			msg = "is invalid"
		}
		fields[fieldPath(e)] = msg
	}
	return &ValidationError{Fields: fields}
}

// fieldPath drops the root struct name from the namespace (e.g. "WebinarInput.questions[0].type").
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

// UserMessage returns the message to show the viewer for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return "Please fix the highlighted fields."
	}
	var conflict *Conflict
	if errors.As(err, &conflict) {
		return conflict.Message
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return GenericMessage
	}
	var netErr *apiclient.NetworkError
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return "Unable to reach the server. Check your connection and try again."
	}
	return GenericMessage
}

// Status maps err to the HTTP status the gateway replies with.
func Status(err error) int {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	var conflict *Conflict
	if errors.As(err, &conflict) {
		return http.StatusConflict
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status
		}
		return http.StatusBadGateway
	}
	var netErr *apiclient.NetworkError
	if errors.As(err, &netErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Fields returns the field messages of a *ValidationError in err's chain, or nil.
func Fields(err error) map[string]string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidateStruct runs struct tag validation and returns a *ValidationError on failure.
func ValidateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return FromValidator(err)
	}
	return nil
}
