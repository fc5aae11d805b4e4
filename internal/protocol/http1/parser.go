package http1

import (
	"strconv"

	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/http/method"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/internal/flag"
	"github.com/indigo-web/h1/internal/tokenizer"
)

const (
	// HaveFlushed is set once the header lines were handed to the message. Header lines
	// coming afterwards are trailers.
	HaveFlushed flag.Set = 1 << iota
	Upgrade
	ShouldKeepAlive
)

// OnIncoming receives every message as soon as its headers are complete, except the ones
// upgrading the connection. Returning true means the message has no body regardless of its
// headers, which is the case of responses to HEAD requests.
type OnIncoming func(msg *http.IncomingMessage, keepAlive bool) (skipBody bool)

type Option func(p *Parser)

// WithMaxHeaderPairs limits the number of header lines handed to a message. Extra lines
// are silently dropped. Zero means no limit.
func WithMaxHeaderPairs(n int) Option {
	return func(p *Parser) {
		p.maxHeaderPairs = n
	}
}

// Parser turns a byte stream into a sequence of IncomingMessage. It's fed by a single
// connection and must not be re-entered from the callbacks.
type Parser struct {
	tokenizer      *tokenizer.Tokenizer
	flags          flag.Set
	url            []byte
	method         method.Method
	statusCode     status.Code
	major, minor   int
	pairs          pairs
	maxHeaderPairs int
	socket         http.Socket
	incoming       *http.IncomingMessage
	onIncoming     OnIncoming
}

func NewParser(typ tokenizer.Type, socket http.Socket, onIncoming OnIncoming, opts ...Option) *Parser {
	p := &Parser{
		tokenizer:  tokenizer.New(typ),
		socket:     socket,
		onIncoming: onIncoming,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Execute feeds the data, returning the number of consumed bytes. It's less than len(data)
// only if the stream was upgraded: the rest belongs to the new protocol then. On error, -1
// is returned, unless the stream was upgraded. The parser is unusable after an error.
func (p *Parser) Execute(data []byte) (int, error) {
	n, err := p.tokenizer.Execute(p, data)
	if err != nil && !p.flags.Has(Upgrade) {
		return -1, err
	}

	return n, err
}

// Finish signals the end of the stream. Returns an error if it ended in the middle of a
// message.
func (p *Parser) Finish() error {
	_, err := p.tokenizer.Execute(p, nil)
	return err
}

// Reinitialize prepares the parser for another stream.
func (p *Parser) Reinitialize(typ tokenizer.Type) {
	p.tokenizer.Reset(typ)
	p.reset()
	p.incoming = nil
}

// Incoming returns the message currently being received. The message stays available after
// it's complete only if it upgraded the stream.
func (p *Parser) Incoming() *http.IncomingMessage {
	return p.incoming
}

func (p *Parser) Flags() flag.Set {
	return p.flags
}

func (p *Parser) Upgraded() bool {
	return p.flags.Has(Upgrade)
}

func (p *Parser) reset() {
	p.url = p.url[:0]
	p.pairs.Reset()
	p.method = method.Unknown
	p.statusCode = 0
	p.major, p.minor = 0, 0
	p.flags.Clear()
}

func (p *Parser) OnMessageBegin() error {
	p.reset()
	return nil
}

func (p *Parser) OnURL(data []byte) error {
	p.url = append(p.url, data...)
	return nil
}

func (p *Parser) OnHeaderField(data []byte) error {
	p.pairs.Field(data)
	return nil
}

func (p *Parser) OnHeaderValue(data []byte) error {
	p.pairs.Value(data)
	return nil
}

func (p *Parser) OnHeadersComplete() (skipBody bool, err error) {
	t := p.tokenizer
	isRequest := t.Type() == tokenizer.Request
	if isRequest {
		p.method = mapMethod(t.Method())
	} else {
		p.statusCode = status.Code(t.StatusCode())
	}

	p.major, p.minor = t.Major(), t.Minor()
	if t.Upgrade() {
		p.flags.Set(Upgrade)
	}
	if t.ShouldKeepAlive() {
		p.flags.Set(ShouldKeepAlive)
	}

	incoming := http.NewIncomingMessage(p.socket)
	incoming.SetURL(string(p.url))
	incoming.SetHTTPVersion(strconv.Itoa(p.major) + "." + strconv.Itoa(p.minor))

	p.pairs.Close()
	n := p.pairs.Len()
	if p.maxHeaderPairs > 0 && n > p.maxHeaderPairs {
		n = p.maxHeaderPairs
	}

	for i := 0; i < n; i++ {
		incoming.AddHeaderLine(p.pairs.Pair(i))
	}

	p.flags.Set(HaveFlushed)
	p.url = p.url[:0]
	p.pairs.Reset()

	if isRequest {
		incoming.SetMethod(p.method)
	} else {
		incoming.SetStatusCode(p.statusCode)
	}

	p.incoming = incoming
	if p.flags.Has(Upgrade) {
		incoming.SetFlag(http.Upgrade)
		return false, nil
	}

	if p.onIncoming == nil {
		return false, nil
	}

	return p.onIncoming(incoming, p.flags.Has(ShouldKeepAlive)), nil
}

func (p *Parser) OnBody(data []byte) error {
	if p.incoming == nil {
		panic("BUG: http1: body received before headers")
	}

	return deliver(p.incoming, data)
}

func (p *Parser) OnMessageComplete() error {
	incoming := p.incoming
	if incoming == nil {
		panic("BUG: http1: message completed before headers")
	}

	incoming.SetFlag(http.Complete)

	p.pairs.Close()
	if n := p.pairs.Len(); n > 0 {
		for i := 0; i < n; i++ {
			field, value := p.pairs.Pair(i)
			incoming.AddHeaderLine(field, value)
			incoming.AddTrailerLine(field, value)
		}

		p.url = p.url[:0]
		p.pairs.Reset()
	}

	var err error
	if !incoming.HasFlag(http.Upgrade) {
		err = deliverEOF(incoming)
		p.incoming = nil
	}

	if p.socket != nil && p.socket.Readable() && !incoming.HasFlag(http.Paused) {
		p.socket.Resume()
	}

	return err
}

func mapMethod(m tokenizer.Method) method.Method {
	switch m {
	case tokenizer.DELETE:
		return method.DELETE
	case tokenizer.GET:
		return method.GET
	case tokenizer.HEAD:
		return method.HEAD
	case tokenizer.POST:
		return method.POST
	case tokenizer.PUT:
		return method.PUT
	case tokenizer.CONNECT:
		return method.CONNECT
	case tokenizer.OPTIONS:
		return method.OPTIONS
	case tokenizer.TRACE:
		return method.TRACE
	default:
		return method.Unknown
	}
}
