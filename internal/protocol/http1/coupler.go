package http1

import (
	"bytes"

	"github.com/indigo-web/h1/http"
)

// deliver either emits the chunk right away or queues it, if the message is paused or
// there are chunks queued already. Queued data is copied, as the read buffer is reused.
func deliver(msg *http.IncomingMessage, data []byte) error {
	pendings := msg.Pendings()
	if msg.HasFlag(http.Paused) || pendings.Len() > 0 {
		pendings.Push(http.Chunk{Data: bytes.Clone(data)})
		return nil
	}

	return msg.EmitData(data)
}

// deliverEOF is deliver for the end of the body.
func deliverEOF(msg *http.IncomingMessage) error {
	pendings := msg.Pendings()
	if msg.HasFlag(http.Paused) || pendings.Len() > 0 {
		pendings.Push(http.Chunk{EOF: true})
		return nil
	}

	msg.UnsetFlag(http.Readable)
	return msg.EmitEnd()
}
