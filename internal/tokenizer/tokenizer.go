// Package tokenizer implements a byte-oriented, resumable HTTP/1.x tokenizer. It never buffers
// token data: the request target, header field names and header values are handed to the
// callbacks as fragments, which end at every token boundary and at every buffer boundary.
// Reassembling the fragments is up to the caller.
package tokenizer

import (
	"fmt"
	"math"

	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	"golang.org/x/net/http/httpguts"
)

// MaxHeaderSize limits the size of the start line together with the header section, and,
// separately, the size of the trailer section.
const MaxHeaderSize = 80 * 1024

type Type uint8

const (
	Request Type = iota + 1
	Response
)

func (t Type) String() string {
	switch t {
	case Request:
		return "request"
	case Response:
		return "response"
	default:
		return "unknown"
	}
}

// Callbacks receive the tokenizer's events. Any returned error stops the tokenizer, which
// becomes unusable afterwards. Data slices are only valid during the call.
type Callbacks interface {
	OnMessageBegin() error
	OnURL(data []byte) error
	OnHeaderField(data []byte) error
	OnHeaderValue(data []byte) error
	// OnHeadersComplete returns whether the message has no body, regardless of its
	// framing headers. This is the case of responses to HEAD requests.
	OnHeadersComplete() (skipBody bool, err error)
	OnBody(data []byte) error
	OnMessageComplete() error
}

type state uint8

const (
	sDead state = iota
	sUpgraded
	sBodyIdentity
	sBodyIdentityEOF
	sChunkSizeStart
	sChunkSize
	sChunkExt
	sChunkSizeLF
	sChunkData
	sChunkDataCR
	sChunkDataLF

	// all the states below are counted against MaxHeaderSize
	sStartReq
	sMethod
	sURLStart
	sURL
	sReqVersion
	sReqMajor
	sReqDot
	sReqMinor
	sReqLineEnd
	sStartRes
	sResVersion
	sResMajor
	sResDot
	sResMinor
	sResSpace
	sStatus
	sReason
	sLineLF
	sHeaderFieldStart
	sHeaderField
	sHeaderValueStart
	sHeaderValue
	sHeaderValueLF
	sHeadersLF
)

type headerKind uint8

const (
	hGeneral headerKind = iota
	hConnection
	hContentLength
	hTransferEncoding
	hUpgrade
)

const (
	fChunked uint8 = 1 << iota
	fConnKeepAlive
	fConnClose
	fConnUpgrade
	fUpgradeHeader
	fSkipBody
	fContentLength
	fTrailing
)

// longest special header name is Transfer-Encoding
const maxSpecialNameLen = len("transfer-encoding")

const httpPrefix = "HTTP/"

type Tokenizer struct {
	typ   Type
	state state
	err   error

	method     Method
	methodBuff [maxMethodLen]byte
	methodLen  int
	statusCode int
	major      int
	minor      int
	upgrade    bool

	flags         uint8
	contentLength int64
	remaining     int64
	nread         int
	index         int

	header   headerKind
	nameBuff [maxSpecialNameLen]byte
	nameLen  int
	value    []byte
}

func New(typ Type) *Tokenizer {
	t := new(Tokenizer)
	t.Reset(typ)
	return t
}

// Reset brings the tokenizer into its initial state, possibly switching the type. It's
// used to reuse a tokenizer for another stream.
func (t *Tokenizer) Reset(typ Type) {
	value := t.value[:0]
	*t = Tokenizer{
		typ:   typ,
		state: startState(typ),
		value: value,
	}
	t.begin()
}

func (t *Tokenizer) Type() Type {
	return t.typ
}

// Method is valid only for requests, after the request line was parsed.
func (t *Tokenizer) Method() Method {
	return t.method
}

// StatusCode is valid only for responses, after the status line was parsed.
func (t *Tokenizer) StatusCode() int {
	return t.statusCode
}

func (t *Tokenizer) Major() int {
	return t.major
}

func (t *Tokenizer) Minor() int {
	return t.minor
}

// Upgrade reports whether the current message switches the stream to another protocol.
// Valid after headers are completed. Once set, the tokenizer doesn't consume bytes
// anymore.
func (t *Tokenizer) Upgrade() bool {
	return t.upgrade
}

// ShouldKeepAlive reports whether the stream may carry another message after the
// current one. Valid after headers are completed.
func (t *Tokenizer) ShouldKeepAlive() bool {
	if t.major > 0 && t.minor > 0 {
		if t.flags&fConnClose != 0 {
			return false
		}
	} else if t.flags&fConnKeepAlive == 0 {
		return false
	}

	return !t.needsEOF()
}

func (t *Tokenizer) needsEOF() bool {
	if t.typ == Request {
		return false
	}

	if status.Bodyless(status.Code(t.statusCode)) || t.flags&fSkipBody != 0 {
		return false
	}

	return t.flags&(fChunked|fContentLength) == 0
}

// Execute feeds the data to the tokenizer, returning how many bytes were consumed. Zero-length
// data signals EOF. The number of consumed bytes is less than len(data) either on error or
// when the stream was upgraded: the rest belongs to the new protocol then.
func (t *Tokenizer) Execute(cb Callbacks, data []byte) (int, error) {
	if t.err != nil {
		return 0, t.err
	}

	if len(data) == 0 {
		return 0, t.eof(cb)
	}

	mark := -1
	switch t.state {
	case sURL, sHeaderField, sHeaderValue:
		mark = 0
	}

	for i := 0; i < len(data); i++ {
		c := data[i]

		if t.state >= sStartReq {
			if t.nread++; t.nread > MaxHeaderSize {
				return i, t.fail(status.ErrHeaderFieldsTooLarge)
			}
		}

		switch t.state {
		case sDead:
			if c == '\r' || c == '\n' {
				continue
			}

			return i, t.fail(status.ErrClosedConnection)

		case sUpgraded:
			return i, nil

		case sStartReq:
			if c == '\r' || c == '\n' {
				continue
			}

			if err := t.messageBegin(cb); err != nil {
				return i, err
			}

			t.state = sMethod
			fallthrough

		case sMethod:
			if c == ' ' {
				if t.method = lookupMethod(t.methodBuff[:t.methodLen]); t.method == Unknown {
					return i, t.fail(status.ErrMethodNotImplemented)
				}

				t.state = sURLStart
				continue
			}

			if !isMethodChar(c) {
				return i, t.fail(status.ErrBadRequest)
			}

			if t.methodLen >= maxMethodLen {
				return i, t.fail(status.ErrMethodNotImplemented)
			}

			t.methodBuff[t.methodLen] = c
			t.methodLen++

		case sURLStart:
			if !isURLChar(c) {
				return i, t.fail(status.ErrBadURL)
			}

			mark = i
			t.state = sURL

		case sURL:
			switch {
			case c == ' ':
				if err := t.call("on_url", cb.OnURL, data[mark:i]); err != nil {
					return i, err
				}

				mark = -1
				t.index = 0
				t.state = sReqVersion
			case c == '\r' || c == '\n':
				// HTTP/0.9 simple requests aren't supported
				return i, t.fail(status.ErrBadVersion)
			case !isURLChar(c):
				return i, t.fail(status.ErrBadURL)
			}

		case sReqVersion:
			if c != httpPrefix[t.index] {
				return i, t.fail(status.ErrBadVersion)
			}

			if t.index++; t.index == len(httpPrefix) {
				t.state = sReqMajor
			}

		case sReqMajor, sResMajor:
			if c != '1' {
				return i, t.fail(status.ErrBadVersion)
			}

			t.major = int(c - '0')
			t.state++

		case sReqDot, sResDot:
			if c != '.' {
				return i, t.fail(status.ErrBadVersion)
			}

			t.state++

		case sReqMinor, sResMinor:
			if !isDigit(c) {
				return i, t.fail(status.ErrBadVersion)
			}

			t.minor = int(c - '0')
			t.state++

		case sReqLineEnd:
			switch c {
			case '\r':
				t.state = sLineLF
			case '\n':
				t.state = sHeaderFieldStart
			default:
				return i, t.fail(status.ErrBadVersion)
			}

		case sStartRes:
			if c == '\r' || c == '\n' {
				continue
			}

			if err := t.messageBegin(cb); err != nil {
				return i, err
			}

			t.state = sResVersion
			fallthrough

		case sResVersion:
			if c != httpPrefix[t.index] {
				return i, t.fail(status.ErrBadVersion)
			}

			if t.index++; t.index == len(httpPrefix) {
				t.state = sResMajor
			}

		case sResSpace:
			if c != ' ' {
				return i, t.fail(status.ErrBadVersion)
			}

			t.index = 0
			t.state = sStatus

		case sStatus:
			if t.index < 3 {
				if !isDigit(c) {
					return i, t.fail(status.ErrBadStatus)
				}

				t.statusCode = t.statusCode*10 + int(c-'0')
				t.index++
				continue
			}

			if t.statusCode < 100 {
				return i, t.fail(status.ErrBadStatus)
			}

			switch c {
			case ' ':
				t.state = sReason
			case '\r':
				t.state = sLineLF
			case '\n':
				t.state = sHeaderFieldStart
			default:
				return i, t.fail(status.ErrBadStatus)
			}

		case sReason:
			switch {
			case c == '\r':
				t.state = sLineLF
			case c == '\n':
				t.state = sHeaderFieldStart
			case isCTL(c):
				return i, t.fail(status.ErrBadStatus)
			}

		case sLineLF:
			if c != '\n' {
				return i, t.fail(status.ErrLFExpected)
			}

			t.state = sHeaderFieldStart

		case sHeaderFieldStart:
			switch c {
			case '\r':
				t.state = sHeadersLF
				continue
			case '\n':
				n, stop, err := t.headersDone(cb, i)
				if stop || err != nil {
					return n, err
				}

				continue
			}

			if !httpguts.IsTokenRune(rune(c)) {
				return i, t.fail(status.ErrBadHeaderToken)
			}

			mark = i
			t.nameLen = 0
			t.state = sHeaderField
			fallthrough

		case sHeaderField:
			if c == ':' {
				if err := t.call("on_header_field", cb.OnHeaderField, data[mark:i]); err != nil {
					return i, err
				}

				mark = -1
				t.header = t.classify()
				t.value = t.value[:0]
				t.state = sHeaderValueStart
				continue
			}

			if !httpguts.IsTokenRune(rune(c)) {
				return i, t.fail(status.ErrBadHeaderToken)
			}

			if t.nameLen < len(t.nameBuff) {
				t.nameBuff[t.nameLen] = c
			}

			t.nameLen++

		case sHeaderValueStart:
			switch {
			case c == ' ' || c == '\t':
				continue
			case c == '\r' || c == '\n':
				// empty value
				if err := t.call("on_header_value", cb.OnHeaderValue, data[i:i]); err != nil {
					return i, err
				}

				if err := t.valueDone(); err != nil {
					return i, err
				}

				t.state = sHeaderValueLF
				if c == '\n' {
					t.state = sHeaderFieldStart
				}

				continue
			case isCTL(c):
				return i, t.fail(status.ErrBadHeaderValue)
			}

			mark = i
			t.state = sHeaderValue

		case sHeaderValue:
			if c == '\r' || c == '\n' {
				fragment := data[mark:i]
				if err := t.call("on_header_value", cb.OnHeaderValue, fragment); err != nil {
					return i, err
				}

				mark = -1
				t.collect(fragment)
				if err := t.valueDone(); err != nil {
					return i, err
				}

				t.state = sHeaderValueLF
				if c == '\n' {
					t.state = sHeaderFieldStart
				}

				continue
			}

			if isCTL(c) {
				return i, t.fail(status.ErrBadHeaderValue)
			}

		case sHeaderValueLF:
			if c != '\n' {
				return i, t.fail(status.ErrLFExpected)
			}

			t.state = sHeaderFieldStart

		case sHeadersLF:
			if c != '\n' {
				return i, t.fail(status.ErrLFExpected)
			}

			n, stop, err := t.headersDone(cb, i)
			if stop || err != nil {
				return n, err
			}

		case sBodyIdentity:
			n := available(t.remaining, len(data)-i)
			if err := t.call("on_body", cb.OnBody, data[i:i+n]); err != nil {
				return i, err
			}

			i += n - 1
			if t.remaining -= int64(n); t.remaining == 0 {
				if err := t.messageComplete(cb); err != nil {
					return i, err
				}
			}

		case sBodyIdentityEOF:
			if err := t.call("on_body", cb.OnBody, data[i:]); err != nil {
				return i, err
			}

			return len(data), nil

		case sChunkSizeStart:
			if !isHex(c) {
				return i, t.fail(status.ErrBadChunk)
			}

			t.remaining = int64(unhex(c))
			t.state = sChunkSize

		case sChunkSize:
			switch {
			case isHex(c):
				if t.remaining > math.MaxInt64>>4 {
					return i, t.fail(status.ErrBadChunk)
				}

				t.remaining = t.remaining<<4 | int64(unhex(c))
			case c == ';' || c == ' ' || c == '\t':
				t.state = sChunkExt
			case c == '\r':
				t.state = sChunkSizeLF
			case c == '\n':
				t.chunkSizeDone()
			default:
				return i, t.fail(status.ErrBadChunk)
			}

		case sChunkExt:
			// chunk extensions are ignored
			switch c {
			case '\r':
				t.state = sChunkSizeLF
			case '\n':
				t.chunkSizeDone()
			}

		case sChunkSizeLF:
			if c != '\n' {
				return i, t.fail(status.ErrLFExpected)
			}

			t.chunkSizeDone()

		case sChunkData:
			n := available(t.remaining, len(data)-i)
			if err := t.call("on_body", cb.OnBody, data[i:i+n]); err != nil {
				return i, err
			}

			i += n - 1
			if t.remaining -= int64(n); t.remaining == 0 {
				t.state = sChunkDataCR
			}

		case sChunkDataCR:
			switch c {
			case '\r':
				t.state = sChunkDataLF
			case '\n':
				t.state = sChunkSizeStart
			default:
				return i, t.fail(status.ErrBadChunk)
			}

		case sChunkDataLF:
			if c != '\n' {
				return i, t.fail(status.ErrLFExpected)
			}

			t.state = sChunkSizeStart

		default:
			panic(fmt.Sprintf("BUG: tokenizer: unexpected state: %d", t.state))
		}
	}

	if mark != -1 {
		if err := t.flush(cb, data[mark:]); err != nil {
			return len(data), err
		}
	}

	return len(data), nil
}

// flush hands the pending fragment of a token interrupted by the buffer boundary.
func (t *Tokenizer) flush(cb Callbacks, fragment []byte) error {
	if len(fragment) == 0 {
		return nil
	}

	switch t.state {
	case sURL:
		return t.call("on_url", cb.OnURL, fragment)
	case sHeaderField:
		return t.call("on_header_field", cb.OnHeaderField, fragment)
	case sHeaderValue:
		t.collect(fragment)
		return t.call("on_header_value", cb.OnHeaderValue, fragment)
	default:
		return nil
	}
}

func (t *Tokenizer) eof(cb Callbacks) error {
	switch t.state {
	case sBodyIdentityEOF:
		if err := t.notify("on_message_complete", cb.OnMessageComplete); err != nil {
			return err
		}

		t.state = sDead
		return nil
	case sStartReq, sStartRes, sDead, sUpgraded:
		return nil
	default:
		return t.fail(status.ErrPrematureEOF)
	}
}

func (t *Tokenizer) begin() {
	t.method = Unknown
	t.methodLen = 0
	t.statusCode = 0
	t.major, t.minor = 0, 0
	t.upgrade = false
	t.flags = 0
	t.contentLength = -1
	t.remaining = 0
	t.nread = 0
	t.index = 0
	t.header = hGeneral
	t.nameLen = 0
	t.value = t.value[:0]
}

func (t *Tokenizer) messageBegin(cb Callbacks) error {
	t.begin()
	// the byte that started the message was already counted
	t.nread = 1
	return t.notify("on_message_begin", cb.OnMessageBegin)
}

// headersDone is called on the empty line terminating either the header section or the
// trailer section. Returns whether Execute must return immediately with the returned
// number of consumed bytes.
func (t *Tokenizer) headersDone(cb Callbacks, i int) (n int, stop bool, err error) {
	if t.flags&fTrailing != 0 {
		return i, false, t.messageComplete(cb)
	}

	if t.flags&fChunked != 0 && t.flags&fContentLength != 0 {
		return i, true, t.fail(status.ErrUnexpectedContentLength)
	}

	if t.typ == Request {
		t.upgrade = (t.flags&fUpgradeHeader != 0 && t.flags&fConnUpgrade != 0) || t.method == CONNECT
	} else {
		t.upgrade = t.statusCode == int(status.SwitchingProtocols)
	}

	var skipBody bool
	skipBody, err = cb.OnHeadersComplete()
	if err != nil {
		return i, true, t.fail(callbackError("on_headers_complete", err))
	}

	if t.upgrade {
		if err = t.notify("on_message_complete", cb.OnMessageComplete); err != nil {
			return i, true, err
		}

		t.state = sUpgraded
		return i + 1, true, nil
	}

	if skipBody {
		t.flags |= fSkipBody
	}

	switch {
	case skipBody || (t.typ == Response && status.Bodyless(status.Code(t.statusCode))):
		err = t.messageComplete(cb)
	case t.flags&fChunked != 0:
		t.state = sChunkSizeStart
	case t.contentLength > 0:
		t.remaining = t.contentLength
		t.state = sBodyIdentity
	case t.contentLength == 0 || t.typ == Request:
		err = t.messageComplete(cb)
	default:
		t.state = sBodyIdentityEOF
	}

	return i, err != nil, err
}

func (t *Tokenizer) messageComplete(cb Callbacks) error {
	keepAlive := t.ShouldKeepAlive()
	if err := t.notify("on_message_complete", cb.OnMessageComplete); err != nil {
		return err
	}

	if keepAlive {
		t.state = startState(t.typ)
	} else {
		t.state = sDead
	}

	return nil
}

func (t *Tokenizer) chunkSizeDone() {
	if t.remaining == 0 {
		t.flags |= fTrailing
		t.nread = 0
		t.state = sHeaderFieldStart
		return
	}

	t.state = sChunkData
}

func (t *Tokenizer) classify() headerKind {
	if t.flags&fTrailing != 0 || t.nameLen > len(t.nameBuff) {
		return hGeneral
	}

	name := uf.B2S(t.nameBuff[:t.nameLen])
	switch len(name) {
	case len("upgrade"):
		if strcomp.EqualFold(name, "upgrade") {
			return hUpgrade
		}
	case len("connection"):
		if strcomp.EqualFold(name, "connection") {
			return hConnection
		}
	case len("content-length"):
		if strcomp.EqualFold(name, "content-length") {
			return hContentLength
		}
	case len("transfer-encoding"):
		if strcomp.EqualFold(name, "transfer-encoding") {
			return hTransferEncoding
		}
	}

	return hGeneral
}

// collect keeps the value of headers affecting the framing or the connection.
func (t *Tokenizer) collect(fragment []byte) {
	if t.header != hGeneral {
		t.value = append(t.value, fragment...)
	}
}

func (t *Tokenizer) valueDone() error {
	value := uf.B2S(trimOWS(t.value))

	switch t.header {
	case hConnection:
		values := []string{value}
		if httpguts.HeaderValuesContainsToken(values, "close") {
			t.flags |= fConnClose
		}
		if httpguts.HeaderValuesContainsToken(values, "keep-alive") {
			t.flags |= fConnKeepAlive
		}
		if httpguts.HeaderValuesContainsToken(values, "upgrade") {
			t.flags |= fConnUpgrade
		}
	case hUpgrade:
		t.flags |= fUpgradeHeader
	case hContentLength:
		length, ok := parseContentLength(value)
		if !ok || (t.flags&fContentLength != 0 && length != t.contentLength) {
			return t.fail(status.ErrBadContentLength)
		}

		t.contentLength = length
		t.flags |= fContentLength
	case hTransferEncoding:
		if lastTokenIsChunked(value) {
			t.flags |= fChunked
		} else if t.typ == Request {
			// the body length of such a request can't be determined reliably
			return t.fail(status.ErrBadRequest)
		} else {
			t.flags &^= fChunked
		}
	}

	t.header = hGeneral
	t.value = t.value[:0]
	return nil
}

func (t *Tokenizer) call(name string, fn func([]byte) error, data []byte) error {
	if err := fn(data); err != nil {
		return t.fail(callbackError(name, err))
	}

	return nil
}

func (t *Tokenizer) notify(name string, fn func() error) error {
	if err := fn(); err != nil {
		return t.fail(callbackError(name, err))
	}

	return nil
}

func (t *Tokenizer) fail(err error) error {
	t.err = err
	t.state = sDead
	return err
}

func callbackError(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", status.ErrCallback, name, err)
}

func startState(typ Type) state {
	if typ == Response {
		return sStartRes
	}

	return sStartReq
}
