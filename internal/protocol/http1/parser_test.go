package http1

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/h1/http"
	"github.com/indigo-web/h1/http/method"
	"github.com/indigo-web/h1/http/status"
	"github.com/indigo-web/h1/internal/tokenizer"
	"github.com/indigo-web/h1/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type socket struct {
	readable bool
	paused   bool
	resumes  int
}

func (s *socket) Readable() bool {
	return s.readable
}

func (s *socket) Pause() {
	s.paused = true
}

func (s *socket) Resume() {
	s.paused = false
	s.resumes++
}

func (s *socket) Remote() net.Addr {
	return nil
}

type exchange struct {
	msg       *http.IncomingMessage
	keepAlive bool
	events    []string
}

type harness struct {
	exchanges []*exchange
	skipBody  bool
	pause     bool
	dataErr   error
}

func (h *harness) onIncoming(msg *http.IncomingMessage, keepAlive bool) bool {
	ex := &exchange{msg: msg, keepAlive: keepAlive}
	msg.OnData(func(data []byte) error {
		ex.events = append(ex.events, "data:"+string(data))
		return h.dataErr
	})
	msg.OnEnd(func() error {
		ex.events = append(ex.events, "end")
		return nil
	})

	if h.pause {
		msg.Pause()
	}

	h.exchanges = append(h.exchanges, ex)
	return h.skipBody
}

func newParser(typ tokenizer.Type, opts ...Option) (*Parser, *harness, *socket) {
	h, s := new(harness), &socket{readable: true}
	return NewParser(typ, s, h.onIncoming, opts...), h, s
}

// snapshot is what an exchange looks like regardless of how the body was split.
type snapshot struct {
	Method    string
	URL       string
	Version   string
	Status    status.Code
	Headers   []kv.Pair
	Trailers  []kv.Pair
	Body      string
	Ends      int
	KeepAlive bool
}

func snapshotOf(ex *exchange) snapshot {
	s := snapshot{
		Method:    ex.msg.MethodName(),
		URL:       ex.msg.URL(),
		Version:   ex.msg.HTTPVersion(),
		Status:    ex.msg.StatusCode(),
		Headers:   ex.msg.Headers().Expose(),
		Trailers:  ex.msg.Trailers().Expose(),
		KeepAlive: ex.keepAlive,
	}

	for _, e := range ex.events {
		if data, ok := strings.CutPrefix(e, "data:"); ok {
			s.Body += data
		} else {
			s.Ends++
		}
	}

	return s
}

func snapshots(h *harness) (s []snapshot) {
	for _, ex := range h.exchanges {
		s = append(s, snapshotOf(ex))
	}

	return s
}

func splitIntoParts(req []byte, n int) (parts [][]byte) {
	for i := 0; i < len(req); i += n {
		end := i + n
		if end > len(req) {
			end = len(req)
		}

		parts = append(parts, req[i:end])
	}

	return parts
}

func feedPartially(t *testing.T, p *Parser, raw []byte, n int) {
	for _, part := range splitIntoParts(raw, n) {
		consumed, err := p.Execute(part)
		require.NoError(t, err)
		require.Equal(t, len(part), consumed)
	}
}

func feed(t *testing.T, p *Parser, chunks ...string) {
	for _, chunk := range chunks {
		n, err := p.Execute([]byte(chunk))
		require.NoError(t, err)
		require.Equal(t, len(chunk), n)
	}
}

func TestScenarios(t *testing.T) {
	t.Run("simple GET", func(t *testing.T) {
		p, h, _ := newParser(tokenizer.Request)
		feed(t, p, "GET /hello HTTP/1.1\r\nHost: x\r\n\r\n")

		require.Len(t, h.exchanges, 1)
		ex := h.exchanges[0]
		require.Equal(t, method.GET, ex.msg.Method())
		require.Equal(t, "GET", ex.msg.MethodName())
		require.Equal(t, "/hello", ex.msg.URL())
		require.Equal(t, "1.1", ex.msg.HTTPVersion())
		require.Equal(t, []kv.Pair{{Key: "Host", Value: "x"}}, ex.msg.Headers().Expose())
		require.Equal(t, []string{"end"}, ex.events)
		require.True(t, ex.keepAlive)
		require.True(t, p.Flags().Has(ShouldKeepAlive))
		require.True(t, ex.msg.HasFlag(http.Complete))
		require.False(t, ex.msg.HasFlag(http.Readable))
		require.Nil(t, p.Incoming())
	})

	t.Run("header split across buffers", func(t *testing.T) {
		split, h1, _ := newParser(tokenizer.Request)
		feed(t, split, "GET / HTTP/1.1\r\nHo", "st: exa", "mple.com\r\n\r\n")

		whole, h2, _ := newParser(tokenizer.Request)
		feed(t, whole, "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")

		require.Equal(t, snapshots(h2), snapshots(h1))
		require.Equal(t, "example.com", h1.exchanges[0].msg.Headers().Value("host"))
	})

	t.Run("POST fragmented mid-body", func(t *testing.T) {
		p, h, _ := newParser(tokenizer.Request)
		feed(t, p, "POST /u HTTP/1.1\r\nContent-Length: 5\r\n\r\nhe", "llo")

		require.Len(t, h.exchanges, 1)
		require.Equal(t, method.POST, h.exchanges[0].msg.Method())
		require.Equal(t, []string{"data:he", "data:llo", "end"}, h.exchanges[0].events)
	})

	t.Run("HEAD response body skipped", func(t *testing.T) {
		p, h, _ := newParser(tokenizer.Response)
		h.skipBody = true
		feed(t, p, "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\n")

		require.Len(t, h.exchanges, 1)
		require.Equal(t, status.OK, h.exchanges[0].msg.StatusCode())
		require.Equal(t, []string{"end"}, h.exchanges[0].events)

		// the bytes aren't taken for the body, so they must start the next response
		n, err := p.Execute([]byte("0123456789"))
		require.Equal(t, -1, n)
		require.ErrorIs(t, err, status.ErrBadVersion)
		require.Len(t, h.exchanges, 1)
	})

	t.Run("upgrade", func(t *testing.T) {
		const head = "GET /chat HTTP/1.1\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n"
		p, h, _ := newParser(tokenizer.Request)
		n, err := p.Execute([]byte(head + "EXTRA_BYTES"))
		require.NoError(t, err)
		require.Equal(t, len(head), n)
		require.Empty(t, h.exchanges)
		require.True(t, p.Upgraded())

		msg := p.Incoming()
		require.NotNil(t, msg)
		require.True(t, msg.HasFlag(http.Upgrade))
		require.True(t, msg.HasFlag(http.Complete))
		require.True(t, msg.HasFlag(http.Readable))
		require.Equal(t, "/chat", msg.URL())
		require.Equal(t, "websocket", msg.Headers().Value("upgrade"))
		require.Zero(t, msg.Pendings().Len())

		n, err = p.Execute([]byte("EXTRA_BYTES"))
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("paused consumer", func(t *testing.T) {
		p, h, s := newParser(tokenizer.Request)
		h.pause = true
		feed(t, p, "POST / HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc")

		require.Len(t, h.exchanges, 1)
		ex := h.exchanges[0]
		require.Empty(t, ex.events)
		require.Equal(t, []http.Chunk{{Data: []byte("abc")}, {EOF: true}}, ex.msg.Pendings().Chunks())
		require.True(t, ex.msg.HasFlag(http.Readable))
		require.True(t, s.paused)

		require.NoError(t, ex.msg.Resume())
		require.Equal(t, []string{"data:abc", "end"}, ex.events)
		require.Zero(t, ex.msg.Pendings().Len())
		require.False(t, ex.msg.HasFlag(http.Readable))
		require.False(t, s.paused)
	})
}

func TestFragmentationTransparency(t *testing.T) {
	raw := "POST /upload?x=1 HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"5\r\nhello\r\n" +
		"7\r\n, world\r\n" +
		"0\r\n" +
		"X-Checksum: abc\r\n" +
		"\r\n" +
		"GET /second HTTP/1.1\r\n" +
		"Accept: */*\r\n" +
		"Accept: text/html\r\n" +
		"X-Empty:\r\n" +
		"\r\n" +
		"PUT /third HTTP/1.1\r\n" +
		"Content-Length: 11\r\n" +
		"\r\n" +
		"hello world"

	whole, want, _ := newParser(tokenizer.Request)
	feed(t, whole, raw)
	require.Len(t, want.exchanges, 3)

	for n := 1; n < len(raw); n++ {
		p, got, _ := newParser(tokenizer.Request)
		feedPartially(t, p, []byte(raw), n)
		require.Equal(t, snapshots(want), snapshots(got), "split size %d", n)
	}
}

func TestOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString("GET / HTTP/1.1\r\n")
	var wantHeaders []kv.Pair
	for i := 0; i < 30; i++ {
		pair := kv.Pair{Key: uniuri.NewLen(1 + i%10), Value: uniuri.NewLen(i % 7)}
		wantHeaders = append(wantHeaders, pair)
		b.WriteString(pair.Key + ": " + pair.Value + "\r\n")
	}
	b.WriteString("\r\n")

	for _, n := range []int{1, 3, 16, b.Len()} {
		p, h, _ := newParser(tokenizer.Request)
		feedPartially(t, p, []byte(b.String()), n)
		require.Len(t, h.exchanges, 1)
		require.Equal(t, wantHeaders, h.exchanges[0].msg.Headers().Expose())
	}
}

func TestUpgradeNonEmission(t *testing.T) {
	t.Run("CONNECT", func(t *testing.T) {
		const head = "CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"
		p, h, _ := newParser(tokenizer.Request)
		n, err := p.Execute([]byte(head + "\x16\x03\x01\x02\x00"))
		require.NoError(t, err)
		require.Equal(t, len(head), n)
		require.Empty(t, h.exchanges)
		require.Equal(t, method.CONNECT, p.Incoming().Method())
	})

	t.Run("switching protocols", func(t *testing.T) {
		const head = "HTTP/1.1 101 Switching Protocols\r\nUpgrade: h2c\r\nConnection: Upgrade\r\n\r\n"
		p, h, _ := newParser(tokenizer.Response)
		n, err := p.Execute([]byte(head + "PRI * HTTP/2.0"))
		require.NoError(t, err)
		require.Equal(t, len(head), n)
		require.Empty(t, h.exchanges)
		require.Equal(t, status.SwitchingProtocols, p.Incoming().StatusCode())
	})
}

func TestPauseBuffering(t *testing.T) {
	t.Run("paused throughout a chunked message", func(t *testing.T) {
		p, h, _ := newParser(tokenizer.Request)
		h.pause = true
		feed(t, p,
			"POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n",
			"3\r\nabc\r\n", "2\r\nde\r\n", "0\r\n\r\n",
		)

		ex := h.exchanges[0]
		require.Empty(t, ex.events)
		require.Equal(t, []http.Chunk{
			{Data: []byte("abc")},
			{Data: []byte("de")},
			{EOF: true},
		}, ex.msg.Pendings().Chunks())
	})

	t.Run("paused in the middle", func(t *testing.T) {
		p, h, _ := newParser(tokenizer.Request)
		feed(t, p, "POST / HTTP/1.1\r\nContent-Length: 6\r\n\r\nab")

		ex := h.exchanges[0]
		ex.msg.Pause()
		feed(t, p, "cd")
		require.Equal(t, []string{"data:ab"}, ex.events)

		require.NoError(t, ex.msg.Resume())
		require.Equal(t, []string{"data:ab", "data:cd"}, ex.events)

		feed(t, p, "ef")
		require.Equal(t, []string{"data:ab", "data:cd", "data:ef", "end"}, ex.events)
	})

	t.Run("queued data is copied", func(t *testing.T) {
		p, h, _ := newParser(tokenizer.Request)
		h.pause = true
		buff := []byte("POST / HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc")
		n, err := p.Execute(buff)
		require.NoError(t, err)
		require.Equal(t, len(buff), n)
		copy(buff[len(buff)-3:], "xyz")

		require.Equal(t, "abc", string(h.exchanges[0].msg.Pendings().Chunks()[0].Data))
	})
}

func TestMaxHeaderPairs(t *testing.T) {
	const raw = "GET / HTTP/1.1\r\nA: 1\r\nB: 2\r\nC: 3\r\nD: 4\r\n\r\n"

	t.Run("capped", func(t *testing.T) {
		p, h, _ := newParser(tokenizer.Request, WithMaxHeaderPairs(2))
		feed(t, p, raw)
		require.Equal(t, []kv.Pair{{Key: "A", Value: "1"}, {Key: "B", Value: "2"}},
			h.exchanges[0].msg.Headers().Expose())
	})

	t.Run("zero means no limit", func(t *testing.T) {
		p, h, _ := newParser(tokenizer.Request, WithMaxHeaderPairs(0))
		feed(t, p, raw)
		require.Equal(t, 4, h.exchanges[0].msg.Headers().Len())
	})

	t.Run("cap above the count", func(t *testing.T) {
		p, h, _ := newParser(tokenizer.Request, WithMaxHeaderPairs(10))
		feed(t, p, raw)
		require.Equal(t, 4, h.exchanges[0].msg.Headers().Len())
	})
}

func TestTrailers(t *testing.T) {
	p, h, _ := newParser(tokenizer.Request)
	feed(t, p, "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n"+
		"2\r\nhi\r\n0\r\nX-Sum: 1\r\nX-Sig: 2\r\n\r\n")

	msg := h.exchanges[0].msg
	require.Equal(t, []kv.Pair{
		{Key: "Transfer-Encoding", Value: "chunked"},
		{Key: "X-Sum", Value: "1"},
		{Key: "X-Sig", Value: "2"},
	}, msg.Headers().Expose())
	require.Equal(t, []kv.Pair{
		{Key: "X-Sum", Value: "1"},
		{Key: "X-Sig", Value: "2"},
	}, msg.Trailers().Expose())
	require.True(t, p.Flags().Has(HaveFlushed))
}

func TestMethods(t *testing.T) {
	for _, m := range method.List {
		if m == method.CONNECT {
			// upgrades the connection, so never reaches the callback
			continue
		}

		p, h, _ := newParser(tokenizer.Request)
		feed(t, p, m.String()+" * HTTP/1.1\r\n\r\n")
		assert.Equal(t, m, h.exchanges[0].msg.Method())
	}

	t.Run("outside of the known set", func(t *testing.T) {
		for _, name := range []string{"PATCH", "PROPFIND", "M-SEARCH", "PURGE"} {
			p, h, _ := newParser(tokenizer.Request)
			feed(t, p, name+" / HTTP/1.1\r\n\r\n")
			require.Equal(t, method.Unknown, h.exchanges[0].msg.Method())
			require.Empty(t, h.exchanges[0].msg.MethodName())
		}
	})
}

func TestReset(t *testing.T) {
	t.Run("per message", func(t *testing.T) {
		p, h, _ := newParser(tokenizer.Request)
		feed(t, p, "GET /a HTTP/1.1\r\nA: 1\r\n\r\n", "POST /b HTTP/1.0\r\nContent-Length: 0\r\n\r\n")

		require.Len(t, h.exchanges, 2)
		second := snapshotOf(h.exchanges[1])
		require.Equal(t, "POST", second.Method)
		require.Equal(t, "/b", second.URL)
		require.Equal(t, "1.0", second.Version)
		require.Equal(t, []kv.Pair{{Key: "Content-Length", Value: "0"}}, second.Headers)
		require.False(t, second.KeepAlive)
		require.False(t, p.Flags().Has(ShouldKeepAlive))
	})

	t.Run("reinitialize", func(t *testing.T) {
		p, h, _ := newParser(tokenizer.Request)
		feed(t, p, "GET / HTTP/1.1\r\n\r\n")
		require.True(t, p.Flags().Has(ShouldKeepAlive))

		p.Reinitialize(tokenizer.Response)
		require.Zero(t, p.Flags())
		feed(t, p, "HTTP/1.0 404 Not Found\r\nContent-Length: 0\r\n\r\n")

		require.Len(t, h.exchanges, 2)
		msg := h.exchanges[1].msg
		require.Equal(t, status.NotFound, msg.StatusCode())
		require.Equal(t, method.Unknown, msg.Method())
		require.Equal(t, "1.0", msg.HTTPVersion())
		require.Empty(t, msg.URL())
	})
}

func TestErrors(t *testing.T) {
	t.Run("parse error", func(t *testing.T) {
		p, _, _ := newParser(tokenizer.Request)
		n, err := p.Execute([]byte("GET / HTTP/1.1\r\nBad Header: x\r\n\r\n"))
		require.Equal(t, -1, n)
		require.ErrorIs(t, err, status.ErrBadHeaderToken)

		n, err = p.Execute([]byte("GET / HTTP/1.1\r\n\r\n"))
		require.Equal(t, -1, n)
		require.Error(t, err)
	})

	t.Run("premature EOF", func(t *testing.T) {
		p, _, _ := newParser(tokenizer.Request)
		feed(t, p, "POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhe")
		require.ErrorIs(t, p.Finish(), status.ErrPrematureEOF)
	})

	t.Run("EOF as a terminus", func(t *testing.T) {
		p, _, _ := newParser(tokenizer.Request)
		feed(t, p, "GET / HTTP/1.1\r\n\r\n")
		require.NoError(t, p.Finish())
	})

	t.Run("EOF-delimited response", func(t *testing.T) {
		p, h, _ := newParser(tokenizer.Response)
		feed(t, p, "HTTP/1.1 200 OK\r\n\r\nstreamed")
		require.Equal(t, []string{"data:streamed"}, h.exchanges[0].events)
		require.False(t, h.exchanges[0].keepAlive)

		require.NoError(t, p.Finish())
		require.Equal(t, []string{"data:streamed", "end"}, h.exchanges[0].events)
	})

	t.Run("emission error", func(t *testing.T) {
		boom := errors.New("boom")
		p, h, _ := newParser(tokenizer.Request)
		h.dataErr = boom
		n, err := p.Execute([]byte("POST / HTTP/1.1\r\nContent-Length: 1\r\n\r\nx"))
		require.Equal(t, -1, n)
		require.ErrorIs(t, err, boom)
	})
}

func TestSocketResume(t *testing.T) {
	t.Run("readable", func(t *testing.T) {
		p, _, s := newParser(tokenizer.Request)
		feed(t, p, "GET / HTTP/1.1\r\n\r\nGET / HTTP/1.1\r\n\r\n")
		require.Equal(t, 2, s.resumes)
	})

	t.Run("not readable", func(t *testing.T) {
		p, _, s := newParser(tokenizer.Request)
		s.readable = false
		feed(t, p, "GET / HTTP/1.1\r\n\r\n")
		require.Zero(t, s.resumes)
	})

	t.Run("paused", func(t *testing.T) {
		p, h, s := newParser(tokenizer.Request)
		h.pause = true
		feed(t, p, "GET / HTTP/1.1\r\n\r\n")
		require.Zero(t, s.resumes)
		require.True(t, s.paused)
	})
}

func BenchmarkParser(b *testing.B) {
	var headers strings.Builder
	for i := 0; i < 10; i++ {
		headers.WriteString("X-Header-" + uniuri.NewLen(5) + ": " + uniuri.NewLen(20) + "\r\n")
	}

	data := []byte("GET /" + strings.Repeat("a", 500) + " HTTP/1.1\r\n" + headers.String() + "\r\n")
	p := NewParser(tokenizer.Request, nil, func(*http.IncomingMessage, bool) bool {
		return false
	})

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = p.Execute(data)
	}
}
