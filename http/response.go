package http

import (
	"io"
	"strconv"

	"github.com/indigo-web/h1/http/method"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/kv"
	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
)

const (
	// why 7? There's no theory behind this number, it's just enough for most responses.
	preallocRespHeaders = 7
	protocol            = "HTTP/1.1 "
	crlf                = "\r\n"
)

// ServerResponse is the writable side of an exchange. The body is buffered until either
// End or Flush is called. Responses ended without flushing carry a Content-Length, flushed
// ones are sent in chunked transfer encoding unless the Content-Length was set explicitly.
type ServerResponse struct {
	w         io.Writer
	code      status.Code
	reason    string
	headers   *kv.Storage
	body      []byte
	buff      []byte
	keepAlive bool
	// noBody is set for responses to HEAD requests. The body is still accounted for the
	// Content-Length, but never transmitted.
	noBody   bool
	headSent bool
	chunked  bool
	ended    bool
}

// NewServerResponse returns a response to the req. The req may be nil.
func NewServerResponse(w io.Writer, req *IncomingMessage, keepAlive bool) *ServerResponse {
	return &ServerResponse{
		w:         w,
		code:      status.OK,
		headers:   kv.NewPrealloc(preallocRespHeaders),
		keepAlive: keepAlive,
		noBody:    req != nil && req.Method() == method.HEAD,
	}
}

// WriteHead sets the status code, an optional reason phrase and headers. Passed headers
// override the ones set before with the same names. Empty reason stands for the standard one.
func (r *ServerResponse) WriteHead(code status.Code, reason string, headers *kv.Storage) error {
	if r.headSent {
		return ErrHeadersSent
	}

	r.code, r.reason = code, reason
	if headers == nil {
		return nil
	}

	for _, key := range headers.Keys() {
		r.headers.Delete(key)
	}

	for _, pair := range headers.Expose() {
		r.headers.Add(pair.Key, pair.Value)
	}

	return nil
}

func (r *ServerResponse) StatusCode() status.Code {
	return r.code
}

// SetHeader replaces all the values of the header. Has no effect after headers were sent.
func (r *ServerResponse) SetHeader(name, value string) *ServerResponse {
	if !r.headSent {
		r.headers.Set(name, value)
	}

	return r
}

func (r *ServerResponse) GetHeader(name string) string {
	return r.headers.Value(name)
}

// RemoveHeader has no effect after headers were sent.
func (r *ServerResponse) RemoveHeader(name string) *ServerResponse {
	if !r.headSent {
		r.headers.Delete(name)
	}

	return r
}

func (r *ServerResponse) Headers() *kv.Storage {
	return r.headers
}

// KeepAlive reports whether the connection stays open after the response.
func (r *ServerResponse) KeepAlive() bool {
	return r.keepAlive
}

// HeadersSent reports whether the status line and headers were already transmitted.
func (r *ServerResponse) HeadersSent() bool {
	return r.headSent
}

func (r *ServerResponse) Ended() bool {
	return r.ended
}

// Write implements io.Writer. The data is copied.
func (r *ServerResponse) Write(b []byte) (int, error) {
	if r.ended {
		return 0, ErrEnded
	}

	r.body = append(r.body, b...)
	return len(b), nil
}

// String writes the string as a part of the body.
func (r *ServerResponse) String(body string) error {
	_, err := r.Write(uf.S2B(body))
	return err
}

// JSON serializes the model as a part of the body and sets the Content-Type.
func (r *ServerResponse) JSON(model any) error {
	r.SetHeader("Content-Type", "application/json")
	stream := json.ConfigDefault.BorrowStream(r)
	stream.WriteVal(model)
	err := stream.Flush()
	json.ConfigDefault.ReturnStream(stream)

	return err
}

// Flush sends the headers, if not yet, and everything written so far.
func (r *ServerResponse) Flush() error {
	if r.ended {
		return ErrEnded
	}

	if !r.headSent {
		r.chunked = r.hasBody() && !r.headers.Has("content-length")
		r.appendHead()
	}

	r.appendBody()
	return r.flush()
}

// End finalizes the response. Nothing can be written afterwards.
func (r *ServerResponse) End() error {
	if r.ended {
		return ErrEnded
	}

	if !r.headSent {
		if r.hasBody() && !r.headers.Has("content-length") {
			r.headers.Add("Content-Length", strconv.Itoa(len(r.body)))
		}

		r.appendHead()
	}

	r.appendBody()
	if r.chunked && !r.noBody {
		r.buff = append(r.buff, "0\r\n\r\n"...)
	}

	r.ended = true
	return r.flush()
}

func (r *ServerResponse) hasBody() bool {
	return !status.Bodyless(r.code)
}

func (r *ServerResponse) appendHead() {
	r.buff = append(r.buff, protocol...)
	r.buff = strconv.AppendUint(r.buff, uint64(r.code), 10)
	r.buff = append(r.buff, ' ')
	if len(r.reason) > 0 {
		r.buff = append(r.buff, r.reason...)
	} else {
		r.buff = append(r.buff, status.Text(r.code)...)
	}
	r.buff = append(r.buff, crlf...)

	for _, pair := range r.headers.Expose() {
		r.appendHeader(pair.Key, pair.Value)
	}

	if r.chunked {
		r.appendHeader("Transfer-Encoding", "chunked")
	}

	if !r.keepAlive && !r.headers.Has("connection") {
		r.appendHeader("Connection", "close")
	}

	r.buff = append(r.buff, crlf...)
	r.headSent = true
}

func (r *ServerResponse) appendHeader(key, value string) {
	r.buff = append(r.buff, key...)
	r.buff = append(r.buff, ": "...)
	r.buff = append(r.buff, value...)
	r.buff = append(r.buff, crlf...)
}

func (r *ServerResponse) appendBody() {
	body := r.body
	r.body = r.body[:0]

	if len(body) == 0 || r.noBody || !r.hasBody() {
		return
	}

	if r.chunked {
		r.buff = strconv.AppendUint(r.buff, uint64(len(body)), 16)
		r.buff = append(r.buff, crlf...)
		r.buff = append(r.buff, body...)
		r.buff = append(r.buff, crlf...)
		return
	}

	r.buff = append(r.buff, body...)
}

func (r *ServerResponse) flush() error {
	if len(r.buff) == 0 {
		return nil
	}

	_, err := r.w.Write(r.buff)
	r.buff = r.buff[:0]
	return err
}
