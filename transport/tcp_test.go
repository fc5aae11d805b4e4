package transport

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/indigo-web/h1/config"
	"github.com/stretchr/testify/require"
)

func TestTCP(t *testing.T) {
	cfg := config.Default().NET
	cfg.AcceptLoopInterruptPeriod = 20 * time.Millisecond

	tcp := NewTCP()
	require.NoError(t, tcp.Bind("127.0.0.1:0"))

	errch := make(chan error, 1)
	go func() {
		errch <- tcp.Listen(cfg, func(conn net.Conn) {
			client := NewClient(conn, time.Second, make([]byte, 64))
			data, err := client.Read()
			if err != nil {
				return
			}

			client.Pushback(data[1:])
			rest, _ := client.Read()
			_, _ = client.Write(append(rest, '\n'))
		})
	}()

	conn, err := net.Dial("tcp", tcp.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "ello\n", line)
	require.NoError(t, conn.Close())

	tcp.Stop()
	select {
	case err = <-errch:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.Fail(t, "accept loop wasn't interrupted")
	}

	tcp.Wait()
	tcp.Close()
}
