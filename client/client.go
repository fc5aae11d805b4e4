// Package client implements a minimal HTTP/1.1 client on top of the same parser the server
// uses. Requests are sent one at a time, responses are buffered in full.
package client

import (
	"errors"
	"io"
	"net"

	"github.com/indigo-web/h1/config"
	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/http/method"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/internal/protocol/http1"
	"github.com/indigo-web/h1/internal/tokenizer"
	"github.com/indigo-web/h1/transport"
)

var ErrClosed = errors.New("client: connection is closed")

var _ http.Socket = new(Client)

type Client struct {
	conn     transport.Client
	parser   *http1.Parser
	buff     []byte
	method   method.Method
	resp     *Response
	closed   bool
	upgraded bool
}

func New(conn transport.Client, cfg *config.Config) *Client {
	c := &Client{conn: conn}
	c.parser = http1.NewParser(
		tokenizer.Response, c, c.onIncoming,
		http1.WithMaxHeaderPairs(cfg.Headers.MaxPairs),
	)

	return c
}

// Dial connects to the addr over TCP.
func Dial(addr string, cfg *config.Config) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	buff := make([]byte, cfg.NET.ReadBufferSize)
	return New(transport.NewClient(conn, cfg.NET.ReadTimeout, buff), cfg), nil
}

// Do sends the request and waits for the response. Interim 1xx responses are skipped. If
// the response upgrades the connection, it's returned immediately and the connection must
// be taken over via Transport.
func (c *Client) Do(req *Request) (*Response, error) {
	if c.closed {
		return nil, ErrClosed
	}

	c.buff = req.Render(c.buff[:0])
	if _, err := c.conn.Write(c.buff); err != nil {
		_ = c.Close()
		return nil, err
	}

	c.method, c.resp = req.Method, nil

	for {
		data, err := c.conn.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return c.finish()
			}

			_ = c.Close()
			return nil, err
		}

		n, err := c.parser.Execute(data)
		if err != nil {
			_ = c.Close()
			return nil, err
		}

		if c.parser.Upgraded() {
			return c.upgrade(data[n:]), nil
		}

		if c.resp != nil && c.resp.complete {
			if !c.resp.KeepAlive {
				_ = c.Close()
			}

			return c.resp, nil
		}
	}
}

func (c *Client) onIncoming(msg *http.IncomingMessage, keepAlive bool) (skipBody bool) {
	if code := msg.StatusCode(); code >= 100 && code < 200 {
		return false
	}

	resp := newResponse(msg, keepAlive)
	msg.Collect(func(body []byte) error {
		resp.Body, resp.complete = body, true
		return nil
	})
	c.resp = resp

	return c.method == method.HEAD
}

func (c *Client) finish() (*Response, error) {
	err := c.parser.Finish()
	_ = c.Close()
	if err != nil {
		return nil, err
	}

	if c.resp == nil || !c.resp.complete {
		return nil, status.ErrPrematureEOF
	}

	return c.resp, nil
}

func (c *Client) upgrade(rest []byte) *Response {
	resp := newResponse(c.parser.Incoming(), false)
	resp.Upgraded = true

	if len(rest) > 0 {
		c.conn.Pushback(rest)
	}

	c.closed, c.upgraded = true, true
	return resp
}

// Transport returns the underlying connection. After an upgrade, data following the
// response goes first.
func (c *Client) Transport() transport.Client {
	return c.conn
}

// Close closes the connection, unless it was upgraded.
func (c *Client) Close() error {
	c.closed = true
	if c.upgraded {
		return nil
	}

	return c.conn.Close()
}

func (c *Client) Readable() bool {
	return !c.closed
}

// Pause has no effect: responses are always collected in full.
func (c *Client) Pause() {}

func (c *Client) Resume() {}

func (c *Client) Remote() net.Addr {
	return c.conn.Remote()
}
