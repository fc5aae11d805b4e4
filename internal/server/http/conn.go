package http

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/internal/protocol/http1"
	"github.com/indigo-web/h1/internal/tokenizer"
	"github.com/indigo-web/h1/transport"
)

var (
	_ http.Socket = new(conn)
	_ Waiter      = new(conn)
)

// conn drives the parser with the data read from a client. It's also the socket of the
// messages, pausing the reads while a message is paused.
type conn struct {
	srv    *Server
	client transport.Client
	parser *http1.Parser
	logger *slog.Logger

	req       *http.IncomingMessage
	resp      *http.ServerResponse
	keepAlive bool
	broken    bool

	mu     sync.Mutex
	paused bool
	closed bool
	resume chan struct{}

	// waiting is set while the connection is blocked until a resume. The messages are not
	// touched by the connection meanwhile.
	waiting bool
}

func newConn(srv *Server, client transport.Client) *conn {
	c := &conn{
		srv:    srv,
		client: client,
		resume: make(chan struct{}, 1),
	}

	c.logger = srv.logger.With(
		slog.String("conn_id", uuid.NewString()),
		slog.Any("remote", client.Remote()),
	)
	c.parser = http1.NewParser(
		tokenizer.Request, c, c.onIncoming,
		http1.WithMaxHeaderPairs(srv.cfg.Headers.MaxPairs),
	)

	return c
}

func (c *conn) serve() {
	c.logger.Debug("connection accepted")
	defer c.close()

	for {
		if !c.wait() {
			c.logger.Warn("message stayed paused for too long")
			return
		}

		data, err := c.client.Read()
		if err != nil {
			c.onReadError(err)
			return
		}

		c.srv.metrics.BytesRead.Add(float64(len(data)))

		n, err := c.parser.Execute(data)
		if err != nil {
			// requests received in full before the malformed one are still answered
			if c.req != nil && c.req.HasFlag(http.Complete) && !c.finish() {
				return
			}

			c.fail(err)
			return
		}

		if c.parser.Upgraded() {
			c.upgrade(data[n:])
			return
		}

		if c.broken {
			return
		}

		if c.req != nil && c.req.HasFlag(http.Complete) {
			if !c.finish() || !c.keepAlive {
				return
			}
		}
	}
}

func (c *conn) onReadError(err error) {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		c.logger.Debug("connection timed out")
		return
	}

	if !errors.Is(err, io.EOF) {
		c.logger.Debug("read failed", slog.Any("err", err))
		return
	}

	if err = c.parser.Finish(); err != nil {
		c.logger.Debug("peer closed the connection in the middle of a message", slog.Any("err", err))
		return
	}

	// the response may be still pending if the message was delimited by the EOF
	if c.req != nil && c.req.HasFlag(http.Complete) {
		c.finish()
	}
}

func (c *conn) onIncoming(msg *http.IncomingMessage, keepAlive bool) (skipBody bool) {
	if c.req != nil && !c.finish() {
		c.broken = true
		return false
	}

	c.req, c.keepAlive = msg, keepAlive
	c.resp = http.NewServerResponse(c.client, msg, keepAlive)
	c.srv.metrics.Messages.WithLabelValues(msg.MethodName()).Inc()
	c.logger.Debug("request",
		slog.String("method", msg.MethodName()),
		slog.String("url", msg.URL()),
		slog.String("version", msg.HTTPVersion()),
	)

	c.srv.handler(msg, c.resp)
	return false
}

// finish waits until the current request is drained and ends the response, unless the
// handler did. Returns false if the connection must be closed.
func (c *conn) finish() bool {
	if !c.wait() {
		return false
	}

	resp := c.resp
	c.req, c.resp = nil, nil
	if resp.Ended() {
		return true
	}

	if err := resp.End(); err != nil {
		c.logger.Debug("failed to write the response", slog.Any("err", err))
		return false
	}

	return true
}

// fail responds with an error, unless a response is being transmitted already.
func (c *conn) fail(err error) {
	code := status.CodeOf(err)
	c.srv.metrics.ParseErrors.WithLabelValues(strconv.Itoa(int(code))).Inc()
	c.logger.Debug("rejecting the stream", slog.Any("err", err), slog.Int("code", int(code)))

	if errors.Is(err, status.ErrClosedConnection) || (c.resp != nil && c.resp.HeadersSent()) {
		return
	}

	resp := http.NewServerResponse(c.client, nil, false)
	_ = resp.WriteHead(code, "", nil)
	resp.SetHeader("Content-Type", "text/plain")
	_ = resp.String(status.Text(code))
	_ = resp.End()
}

func (c *conn) upgrade(rest []byte) {
	c.srv.metrics.Upgrades.Inc()

	if c.req != nil && !c.finish() {
		return
	}

	msg := c.parser.Incoming()
	if c.srv.onUpgrade == nil {
		c.logger.Debug("no upgrade handler, closing", slog.String("upgrade", msg.Headers().Value("upgrade")))
		return
	}

	if len(rest) > 0 {
		c.client.Pushback(rest)
	}

	c.logger.Debug("handing the connection off", slog.String("upgrade", msg.Headers().Value("upgrade")))
	c.srv.onUpgrade(msg, c.client)
}

// wait blocks while the reads are paused, but no longer than the read timeout. Returns
// false if the timeout was hit.
func (c *conn) wait() bool {
	if !c.isPaused() {
		return true
	}

	timeout := time.NewTimer(c.srv.cfg.NET.ReadTimeout)
	defer timeout.Stop()

	c.setWaiting(true)
	defer c.setWaiting(false)

	for c.isPaused() {
		select {
		case <-c.resume:
		case <-timeout.C:
			return false
		}
	}

	return true
}

func (c *conn) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *conn) setWaiting(waiting bool) {
	c.mu.Lock()
	c.waiting = waiting
	c.mu.Unlock()
}

// Waiting reports whether the connection is blocked until the paused message is resumed.
// Once it's true, the message may be resumed from any goroutine.
func (c *conn) Waiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting
}

func (c *conn) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	_ = c.client.Close()
	c.logger.Debug("connection closed")
}

func (c *conn) Readable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *conn) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

func (c *conn) Resume() {
	c.mu.Lock()
	wasPaused := c.paused
	c.paused = false
	c.mu.Unlock()

	if wasPaused {
		select {
		case c.resume <- struct{}{}:
		default:
		}
	}
}

func (c *conn) Remote() net.Addr {
	return c.client.Remote()
}
