package transport

import (
	"net"
	"time"
)

// Client is a connection as the HTTP layer sees it: a source of chunks, which can be
// partially returned back, and a sink for the responses.
type Client interface {
	Read() ([]byte, error)
	Pushback([]byte)
	Write([]byte) (int, error)
	Conn() net.Conn
	Remote() net.Addr
	Close() error
}

var _ Client = new(connClient)

type connClient struct {
	conn     net.Conn
	readBuff []byte
	unread   []byte
	idle     time.Duration
}

// NewClient wraps the conn. Every read must complete within the idle period, zero disables
// the deadline. The buff is reused by every read.
func NewClient(conn net.Conn, idle time.Duration, buff []byte) Client {
	return &connClient{
		conn:     conn,
		readBuff: buff,
		idle:     idle,
	}
}

// Read returns the pushed back data, if any, otherwise reads into the buffer. The returned
// slice is valid only until the next call.
func (c *connClient) Read() ([]byte, error) {
	if unread := c.unread; len(unread) > 0 {
		c.unread = nil
		return unread, nil
	}

	if c.idle > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.idle)); err != nil {
			return nil, err
		}
	}

	n, err := c.conn.Read(c.readBuff)
	return c.readBuff[:n], err
}

// Pushback makes the next Read return b. Typically, it's the tail of the last read that
// belongs to something else, e.g. to the protocol the connection was upgraded to.
func (c *connClient) Pushback(b []byte) {
	c.unread = b
}

// Conn unwraps the underlying connection. Pushed back data isn't seen through it.
func (c *connClient) Conn() net.Conn {
	return c.conn
}

func (c *connClient) Write(b []byte) (int, error) {
	return c.conn.Write(b)
}

func (c *connClient) Remote() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *connClient) Close() error {
	return c.conn.Close()
}
