package dummy

import (
	"io"
	"net"

	"github.com/indigo-web/h1/transport"
)

var _ transport.Client = new(Client)

// Client replays the scripted reads one by one and records everything written to it. Once
// the script is over, reads return io.EOF unless the client loops.
type Client struct {
	script  [][]byte
	next    int
	loop    bool
	unread  []byte
	journal []byte
	closed  bool
}

func NewMockClient(reads ...[]byte) *Client {
	return &Client{script: reads}
}

// LoopReads makes the client replay the script endlessly.
func (c *Client) LoopReads() *Client {
	c.loop = true
	return c
}

func (c *Client) Read() ([]byte, error) {
	switch {
	case c.closed:
		return nil, io.EOF
	case len(c.unread) > 0:
		data := c.unread
		c.unread = nil
		return data, nil
	case len(c.script) == 0:
		return nil, io.EOF
	case c.next == len(c.script):
		if !c.loop {
			return nil, io.EOF
		}

		c.next = 0
	}

	c.next++
	return c.script[c.next-1], nil
}

func (c *Client) Pushback(b []byte) {
	c.unread = b
}

func (c *Client) Write(b []byte) (int, error) {
	if c.closed {
		return 0, net.ErrClosed
	}

	c.journal = append(c.journal, b...)
	return len(b), nil
}

func (c *Client) Conn() net.Conn {
	return &Conn{Data: c.journal}
}

func (*Client) Remote() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 54321}
}

func (c *Client) Close() error {
	c.closed = true
	return nil
}

func (c *Client) Closed() bool {
	return c.closed
}

// Written returns everything written so far.
func (c *Client) Written() string {
	return string(c.journal)
}
