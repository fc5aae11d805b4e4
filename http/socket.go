package http

import "net"

// Socket is the byte source messages are read from. Pause and Resume control whether the
// connection keeps feeding the parser.
type Socket interface {
	Readable() bool
	Pause()
	Resume()
	Remote() net.Addr
}
