// SPDX-License-Identifier: Apache-2.0

package suggest

import (
	"errors"
	"net/http"
)

// Kind classifies a failed suggestion request.
type Kind int

const (
	// KindInternal is any failure not covered by another kind.
	KindInternal Kind = iota
	// KindBadRequest is an unparseable request body.
	KindBadRequest
	// KindValidation is a claim that failed boundary validation.
	KindValidation
	// KindUnsupportedProvider is a configured provider this service cannot call.
	KindUnsupportedProvider
	// KindConfiguration is missing completion model configuration.
	KindConfiguration
	// KindUpstream is a failed call to the completion model.
	KindUpstream
	// KindNoContent is a successful call that carried no completion text.
	KindNoContent
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindValidation:
		return "validation"
	case KindUnsupportedProvider:
		return "unsupported_provider"
	case KindConfiguration:
		return "configuration"
	case KindUpstream:
		return "upstream"
	case KindNoContent:
		return "no_content"
	default:
		return "internal"
	}
}

// Error is returned by Service.Suggest and DecodeRequest. Message is safe to
// show to the caller.
type Error struct {
	Kind    Kind
	Message string
	// Status and Details are set for KindUpstream. Status is 0 when the
	// completion model never answered.
	Status  int
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindInternal {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to the response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindBadRequest, KindValidation, KindUnsupportedProvider:
		return http.StatusBadRequest
	case KindUpstream, KindNoContent:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the JSON error response shape.
type ErrorBody struct {
	Error   string `json:"error"`
	Status  int    `json:"status,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Body renders the error for the caller.
func (e *Error) Body() ErrorBody {
	body := ErrorBody{Error: e.Message}
	if e.Kind == KindUpstream {
		body.Status = e.Status
		body.Details = e.Details
	}
	if e.Kind == KindInternal && e.Err != nil {
		body.Error = e.Error()
	}
	return body
}

// AsError returns err as an *Error, wrapping anything else as KindInternal.
func AsError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Kind: KindInternal, Message: "Unexpected error", Err: err}
}
