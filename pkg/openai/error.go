package openai

import (
	"errors"
	"net/http"
)

// Error envelope types as OpenAI clients expect them.
const (
	TypeInvalidRequest = "invalid_request_error"
	TypeAuthentication = "authentication_error"
	TypePermission     = "permission_error"
	TypeServer         = "server_error"
)

// ErrorEnvelope is the wire shape every failure is serialized into,
// regardless of where in the pipeline it originated.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Param   *string     `json:"param"`
	Code    interface{} `json:"code"`
}

// Error is the internal error shape carried through the pipeline.
// Status and the safe Message reach the client; Log stays server-side.
type Error struct {
	Status  int
	Message string
	Type    string
	Param   string
	Code    interface{}
	Log     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Log
}

func (e *Error) Envelope() ErrorEnvelope {
	var param *string
	if e.Param != "" {
		param = &e.Param
	}
	return ErrorEnvelope{Error: ErrorDetail{
		Message: e.Message,
		Type:    e.Type,
		Param:   param,
		Code:    e.Code,
	}}
}

func InvalidRequestError(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg, Type: TypeInvalidRequest}
}

func InvalidParamError(msg, param string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg, Type: TypeInvalidRequest, Param: param}
}

func NotFoundError(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Message: msg, Type: TypeInvalidRequest, Code: "model_not_found"}
}

func UnauthorizedError(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: msg, Type: TypeAuthentication}
}

func ForbiddenError(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Message: msg, Type: TypePermission}
}

func ServerError(msg string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: msg, Type: TypeServer, Log: err}
}

// UpstreamError maps a vendor failure. Client-facing vendor statuses (<500)
// pass through as invalid_request_error; everything else collapses to 500.
func UpstreamError(status int, msg string, err error) *Error {
	if status >= 400 && status < 500 {
		return &Error{Status: status, Message: msg, Type: TypeInvalidRequest, Log: err}
	}
	return &Error{Status: http.StatusInternalServerError, Message: msg, Type: TypeServer, Log: err}
}

// FromError normalizes any error into an *Error. Unknown errors become
// opaque 500s so internals never leak into the envelope.
func FromError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ServerError("An unexpected error occurred.", err)
}
