package http

import (
	"github.com/indigo-web/h1/http/method"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/internal/flag"
	"github.com/indigo-web/h1/kv"
)

// Flag is a state bit of an IncomingMessage.
type Flag uint8

const (
	// Readable holds until the end of the body was emitted.
	Readable Flag = 1 << iota
	// Paused is set by the consumer. Body chunks are queued instead of emitted meanwhile.
	Paused
	// Complete is set once the whole message was received.
	Complete
	// Upgrade marks a message switching the connection to another protocol. Such a message
	// carries no body.
	Upgrade
)

// IncomingMessage is either a request received by a server or a response received by a
// client. Its body is a readable stream: chunks are emitted via the OnData listener as they
// arrive, unless the message is paused.
//
// The message is driven by the connection's goroutine. Resume may be called from another
// goroutine only once the connection stopped feeding the message, e.g. while it's blocked
// waiting for the resume.
type IncomingMessage struct {
	socket      Socket
	url         string
	httpVersion string
	method      method.Method
	statusCode  status.Code
	headers     *kv.Storage
	trailers    *kv.Storage
	flags       flag.Set
	pendings    Pendings
	onData      func(data []byte) error
	onEnd       func() error
}

func NewIncomingMessage(socket Socket) *IncomingMessage {
	m := &IncomingMessage{
		socket:   socket,
		headers:  kv.New(),
		trailers: kv.New(),
	}
	m.SetFlag(Readable)

	return m
}

func (m *IncomingMessage) SetURL(url string) {
	m.url = url
}

// URL returns the request target as it was received. Empty for responses.
func (m *IncomingMessage) URL() string {
	return m.url
}

func (m *IncomingMessage) SetHTTPVersion(version string) {
	m.httpVersion = version
}

// HTTPVersion is in the form of "<major>.<minor>", e.g. "1.1".
func (m *IncomingMessage) HTTPVersion() string {
	return m.httpVersion
}

func (m *IncomingMessage) SetMethod(mt method.Method) {
	m.method = mt
}

func (m *IncomingMessage) Method() method.Method {
	return m.method
}

// MethodName returns the string form of the method, which is empty for methods other than
// the ones enumerated in the method package.
func (m *IncomingMessage) MethodName() string {
	return m.method.String()
}

func (m *IncomingMessage) SetStatusCode(code status.Code) {
	m.statusCode = code
}

func (m *IncomingMessage) StatusCode() status.Code {
	return m.statusCode
}

// AddHeaderLine appends a header line. Names are kept as is, duplicates aren't merged.
func (m *IncomingMessage) AddHeaderLine(name, value string) {
	m.headers.Add(name, value)
}

// AddTrailerLine records a header line received after the body.
func (m *IncomingMessage) AddTrailerLine(name, value string) {
	m.trailers.Add(name, value)
}

// Headers contain every header line, including trailers.
func (m *IncomingMessage) Headers() *kv.Storage {
	return m.headers
}

// Trailers contain only the header lines received after a chunked body.
func (m *IncomingMessage) Trailers() *kv.Storage {
	return m.trailers
}

func (m *IncomingMessage) Socket() Socket {
	return m.socket
}

func (m *IncomingMessage) SetFlag(f Flag) {
	m.flags.Set(flag.Set(f))
}

func (m *IncomingMessage) UnsetFlag(f Flag) {
	m.flags.Unset(flag.Set(f))
}

func (m *IncomingMessage) HasFlag(f Flag) bool {
	return m.flags.Has(flag.Set(f))
}

// Pendings returns the queue of body chunks held while paused.
func (m *IncomingMessage) Pendings() *Pendings {
	return &m.pendings
}

// OnData sets the body listener. The passed slice is valid only during the call.
func (m *IncomingMessage) OnData(cb func(data []byte) error) {
	m.onData = cb
}

// OnEnd sets the listener called once the whole body was emitted.
func (m *IncomingMessage) OnEnd(cb func() error) {
	m.onEnd = cb
}

// Collect accumulates the whole body and calls the cb with it at the end.
func (m *IncomingMessage) Collect(cb func(body []byte) error) {
	var body []byte
	m.OnData(func(data []byte) error {
		body = append(body, data...)
		return nil
	})
	m.OnEnd(func() error {
		return cb(body)
	})
}

// EmitData hands the chunk to the body listener. The chunk is discarded if there is none.
func (m *IncomingMessage) EmitData(data []byte) error {
	if m.onData == nil {
		return nil
	}

	return m.onData(data)
}

func (m *IncomingMessage) EmitEnd() error {
	if m.onEnd == nil {
		return nil
	}

	return m.onEnd()
}

// Pause stops the emission. Chunks arriving meanwhile are queued on Pendings.
func (m *IncomingMessage) Pause() {
	m.SetFlag(Paused)
	if m.socket != nil {
		m.socket.Pause()
	}
}

// Resume drains the queued chunks in order and resumes the socket. The draining stops if
// one of the listeners pauses the message again.
func (m *IncomingMessage) Resume() error {
	m.UnsetFlag(Paused)

	for !m.HasFlag(Paused) {
		chunk, ok := m.pendings.Pop()
		if !ok {
			break
		}

		if chunk.EOF {
			m.UnsetFlag(Readable)
			if err := m.EmitEnd(); err != nil {
				return err
			}

			continue
		}

		if err := m.EmitData(chunk.Data); err != nil {
			return err
		}
	}

	if m.socket != nil && !m.HasFlag(Paused) {
		m.socket.Resume()
	}

	return nil
}
