package client

import (
	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/kv"
)

type Response struct {
	Code        status.Code
	HTTPVersion string
	Headers     *kv.Storage
	// Trailers are also presented among the Headers.
	Trailers  *kv.Storage
	Body      []byte
	KeepAlive bool
	// Upgraded responses carry no body. The connection belongs to the new protocol since.
	Upgraded bool
	complete bool
}

func newResponse(msg *http.IncomingMessage, keepAlive bool) *Response {
	return &Response{
		Code:        msg.StatusCode(),
		HTTPVersion: msg.HTTPVersion(),
		Headers:     msg.Headers(),
		Trailers:    msg.Trailers(),
		KeepAlive:   keepAlive,
	}
}
