// Package errors is error responses of the operator API.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ErrorMessage is the body of error responses.
type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`

	// ids of files holding the artifact, when deletion is refused by holds.
	HeldBy []string `json:"heldBy,omitempty"`

	// Cause stays in the server.
	Cause error `json:"-"`
}

var errNoReason = errors.New(`required field missing: "reason"`)

func (em *ErrorMessage) UnmarshalJSON(b []byte) error {
	type body ErrorMessage
	raw := struct {
		*body
		Reason *string `json:"reason"`
	}{body: (*body)(em)}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Reason == nil {
		return errNoReason
	}
	em.Reason = *raw.Reason
	return nil
}

func (em ErrorMessage) String() string {
	b := new(strings.Builder)
	b.WriteString(em.Reason)
	if em.Advice != "" {
		b.WriteString("\n" + em.Advice)
	}
	if len(em.HeldBy) != 0 {
		b.WriteString("\nheld by: " + strings.Join(em.HeldBy, ", "))
	}
	if em.Cause != nil {
		b.WriteString("\ncaused by: " + em.Cause.Error())
	}
	return b.String()
}

func (em ErrorMessage) Error() string { return em.String() }

func (em ErrorMessage) Unwrap() error { return em.Cause }

type ErrorMessageOption func(*ErrorMessage) *ErrorMessage

func WithAdvice(advice string) ErrorMessageOption {
	return func(em *ErrorMessage) *ErrorMessage {
		em.Advice = advice
		return em
	}
}

func WithError(err error) ErrorMessageOption {
	return func(em *ErrorMessage) *ErrorMessage {
		em.Cause = err
		return em
	}
}

func WithHeldBy(ids []string) ErrorMessageOption {
	return func(em *ErrorMessage) *ErrorMessage {
		em.HeldBy = ids
		return em
	}
}

// NewErrorMessage returns an echo error responding ErrorMessage as JSON.
//
// The message is also the internal error, so middlewares can log its cause.
func NewErrorMessage(code int, reason string, opts ...ErrorMessageOption) *echo.HTTPError {
	em := &ErrorMessage{Reason: reason}
	for _, opt := range opts {
		em = opt(em)
	}
	return echo.NewHTTPError(code, *em).SetInternal(*em)
}

func Unauthorized(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(http.StatusUnauthorized, "unauthorized", WithAdvice(advice), WithError(err))
}

func BadRequest(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(http.StatusBadRequest, "bad request", WithAdvice(advice), WithError(err))
}

func NotFound() *echo.HTTPError {
	return NewErrorMessage(http.StatusNotFound, "not found")
}

func Conflict(reason string, opts ...ErrorMessageOption) *echo.HTTPError {
	return NewErrorMessage(http.StatusConflict, reason, opts...)
}

func InternalServerError(err error) *echo.HTTPError {
	return NewErrorMessage(http.StatusInternalServerError, "unexpected error", WithError(err))
}
