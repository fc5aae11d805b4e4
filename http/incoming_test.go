package http

import (
	"errors"
	"net"
	"testing"

	"github.com/indigo-web/h1/http/method"
	"github.com/stretchr/testify/require"
)

type socket struct {
	paused  bool
	resumes int
}

func (s *socket) Readable() bool {
	return true
}

func (s *socket) Pause() {
	s.paused = true
}

func (s *socket) Resume() {
	s.paused = false
	s.resumes++
}

func (s *socket) Remote() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080}
}

func TestIncomingMessage(t *testing.T) {
	t.Run("fields", func(t *testing.T) {
		s := new(socket)
		msg := NewIncomingMessage(s)
		msg.SetURL("/hello")
		msg.SetHTTPVersion("1.1")
		msg.SetMethod(method.PUT)
		msg.AddHeaderLine("Host", "x")
		msg.AddHeaderLine("host", "y")

		require.Equal(t, "/hello", msg.URL())
		require.Equal(t, "1.1", msg.HTTPVersion())
		require.Equal(t, "PUT", msg.MethodName())
		require.Equal(t, []string{"x", "y"}, msg.Headers().Values("HOST"))
		require.True(t, msg.Trailers().Empty())
		require.Equal(t, "127.0.0.1:8080", msg.Socket().Remote().String())
	})

	t.Run("flags", func(t *testing.T) {
		msg := NewIncomingMessage(nil)
		require.True(t, msg.HasFlag(Readable))
		require.False(t, msg.HasFlag(Complete))

		msg.SetFlag(Complete | Upgrade)
		require.True(t, msg.HasFlag(Complete))
		require.True(t, msg.HasFlag(Upgrade|Readable))

		msg.UnsetFlag(Readable)
		require.False(t, msg.HasFlag(Upgrade|Readable))
	})

	t.Run("pause and resume", func(t *testing.T) {
		s := new(socket)
		msg := NewIncomingMessage(s)

		var body []byte
		msg.Collect(func(b []byte) error {
			body = b
			return nil
		})

		msg.Pause()
		require.True(t, s.paused)
		require.True(t, msg.HasFlag(Paused))

		msg.Pendings().Push(Chunk{Data: []byte("Hello, ")})
		msg.Pendings().Push(Chunk{Data: []byte("world!")})
		msg.Pendings().Push(Chunk{EOF: true})

		require.NoError(t, msg.Resume())
		require.Equal(t, "Hello, world!", string(body))
		require.False(t, msg.HasFlag(Readable))
		require.False(t, s.paused)
		require.Equal(t, 1, s.resumes)
	})

	t.Run("listener error stops draining", func(t *testing.T) {
		boom := errors.New("boom")
		msg := NewIncomingMessage(nil)
		msg.OnData(func([]byte) error {
			return boom
		})

		msg.Pause()
		msg.Pendings().Push(Chunk{Data: []byte("a")})
		msg.Pendings().Push(Chunk{EOF: true})

		require.ErrorIs(t, msg.Resume(), boom)
		require.Equal(t, 1, msg.Pendings().Len())
		require.True(t, msg.HasFlag(Readable))
	})

	t.Run("no listeners", func(t *testing.T) {
		msg := NewIncomingMessage(nil)
		require.NoError(t, msg.EmitData([]byte("dropped")))
		require.NoError(t, msg.EmitEnd())
	})
}

func TestPendings(t *testing.T) {
	var p Pendings
	_, ok := p.Pop()
	require.False(t, ok)

	p.Push(Chunk{Data: []byte("a")})
	p.Push(Chunk{EOF: true})
	require.Equal(t, 2, p.Len())

	chunk, ok := p.Pop()
	require.True(t, ok)
	require.Equal(t, "a", string(chunk.Data))

	chunk, ok = p.Pop()
	require.True(t, ok)
	require.True(t, chunk.EOF)
	require.Zero(t, p.Len())
}
