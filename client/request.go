package client

import (
	"strconv"

	"github.com/indigo-web/h1/http/method"
	"github.com/indigo-web/h1/kv"
)

type Request struct {
	Method  method.Method
	Path    string
	Query   Query
	Headers *kv.Storage
	Body    []byte
}

func NewRequest(m method.Method, path string) *Request {
	return &Request{
		Method:  m,
		Path:    path,
		Query:   NewQuery(),
		Headers: kv.New(),
	}
}

func (r *Request) WithHeader(key string, values ...string) *Request {
	for _, value := range values {
		r.Headers.Add(key, value)
	}

	return r
}

func (r *Request) WithQuery(key string, values ...string) *Request {
	r.Query.WithValue(key, values...)
	return r
}

func (r *Request) WithBody(body []byte) *Request {
	r.Body = body
	return r
}

// Render appends the request in the wire format to the buff. Content-Length is added
// automatically, unless set explicitly.
func (r *Request) Render(buff []byte) []byte {
	path := r.Path
	if len(path) == 0 {
		path = "/"
	}

	buff = append(buff, r.Method.String()...)
	buff = append(buff, ' ')
	buff = append(buff, path...)
	if query := r.Query.Encode(); len(query) > 0 {
		buff = append(buff, '?')
		buff = append(buff, query...)
	}
	buff = append(buff, " HTTP/1.1\r\n"...)

	hasLength := false
	if r.Headers != nil {
		hasLength = r.Headers.Has("content-length")

		for _, pair := range r.Headers.Expose() {
			buff = renderHeader(buff, pair.Key, pair.Value)
		}
	}

	if len(r.Body) > 0 && !hasLength {
		buff = renderHeader(buff, "Content-Length", strconv.Itoa(len(r.Body)))
	}

	buff = append(buff, "\r\n"...)
	return append(buff, r.Body...)
}

func renderHeader(buff []byte, key, value string) []byte {
	buff = append(buff, key...)
	buff = append(buff, ": "...)
	buff = append(buff, value...)
	return append(buff, "\r\n"...)
}
