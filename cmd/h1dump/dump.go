package main

import (
	"errors"
	"io"
	"net"

	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/internal/protocol/http1"
	"github.com/indigo-web/h1/internal/tokenizer"
	"github.com/indigo-web/h1/kv"
	json "github.com/json-iterator/go"
)

type message struct {
	Method    string     `json:"method,omitempty"`
	URL       string     `json:"url,omitempty"`
	Status    int        `json:"status,omitempty"`
	Version   string     `json:"version"`
	Headers   [][]string `json:"headers"`
	Trailers  [][]string `json:"trailers,omitempty"`
	Body      string     `json:"body"`
	KeepAlive bool       `json:"keep_alive"`
	Upgrade   bool       `json:"upgrade,omitempty"`
	// Rest is the number of bytes following an upgrading message.
	Rest int `json:"rest,omitempty"`
}

// stream never pauses, as every message is collected in full.
type stream struct{}

func (stream) Readable() bool { return true }
func (stream) Pause() {}
func (stream) Resume() {}
func (stream) Remote() net.Addr { return nil }

type dumper struct {
	enc    *json.Encoder
	parser *http1.Parser
	err    error
}

// dump parses every message out of the r and writes each of them to the w as a JSON line.
// The input is fed to the parser by pieces of chunkSize bytes.
func dump(r io.Reader, w io.Writer, typ tokenizer.Type, chunkSize, maxPairs int) error {
	d := &dumper{
		enc: json.ConfigCompatibleWithStandardLibrary.NewEncoder(w),
	}
	d.parser = http1.NewParser(typ, stream{}, d.onIncoming, http1.WithMaxHeaderPairs(maxPairs))

	buff := make([]byte, chunkSize)
	for {
		n, err := r.Read(buff)
		if n > 0 {
			consumed, perr := d.parser.Execute(buff[:n])
			if perr != nil {
				return perr
			}

			if d.err != nil {
				return d.err
			}

			if d.parser.Upgraded() {
				return d.upgrade(n-consumed, r)
			}
		}

		if errors.Is(err, io.EOF) {
			if err = d.parser.Finish(); err != nil {
				return err
			}

			return d.err
		}

		if err != nil {
			return err
		}
	}
}

func (d *dumper) onIncoming(msg *http.IncomingMessage, keepAlive bool) (skipBody bool) {
	msg.Collect(func(body []byte) error {
		m := newMessage(msg, keepAlive)
		m.Body = string(body)
		m.Trailers = pairs(msg.Trailers())

		if err := d.enc.Encode(m); err != nil {
			d.err = err
		}

		return d.err
	})

	return false
}

func (d *dumper) upgrade(rest int, r io.Reader) error {
	remaining, err := io.Copy(io.Discard, r)
	if err != nil {
		return err
	}

	m := newMessage(d.parser.Incoming(), false)
	m.Upgrade = true
	m.Rest = rest + int(remaining)

	return d.enc.Encode(m)
}

func newMessage(msg *http.IncomingMessage, keepAlive bool) message {
	return message{
		Method:    msg.MethodName(),
		URL:       msg.URL(),
		Status:    int(msg.StatusCode()),
		Version:   msg.HTTPVersion(),
		Headers:   pairs(msg.Headers()),
		KeepAlive: keepAlive,
	}
}

func pairs(storage *kv.Storage) [][]string {
	if storage.Empty() {
		return nil
	}

	result := make([][]string, 0, storage.Len())
	for _, pair := range storage.Expose() {
		result = append(result, []string{pair.Key, pair.Value})
	}

	return result
}
