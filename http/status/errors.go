package status

import "errors"

type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

// CodeOf extracts the status code the error corresponds to. Errors not produced by this
// package are considered to be internal server errors.
func CodeOf(err error) Code {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}

	return InternalServerError
}

var (
	ErrBadRequest              = NewError(BadRequest, "bad request")
	ErrMethodNotImplemented    = NewError(NotImplemented, "request method is not supported")
	ErrBadURL                  = NewError(BadRequest, "invalid character in request target")
	ErrBadVersion              = NewError(HTTPVersionNotSupported, "invalid HTTP version")
	ErrBadStatus               = NewError(BadRequest, "invalid response status")
	ErrBadHeaderToken          = NewError(BadRequest, "invalid character in header field")
	ErrBadHeaderValue          = NewError(BadRequest, "invalid character in header value")
	ErrBadContentLength        = NewError(BadRequest, "invalid Content-Length")
	ErrUnexpectedContentLength = NewError(BadRequest, "Content-Length with Transfer-Encoding: chunked")
	ErrBadChunk                = NewError(BadRequest, "malformed chunk-encoded data")
	ErrHeaderFieldsTooLarge    = NewError(RequestHeaderFieldsTooLarge, "too large headers section")
	ErrLFExpected              = NewError(BadRequest, "LF character expected")
	ErrPrematureEOF            = NewError(BadRequest, "stream ended at an unexpected time")
	ErrClosedConnection        = NewError(BadRequest, "data received after the connection was declared closed")
	ErrCallback                = NewError(InternalServerError, "callback failed")
)
