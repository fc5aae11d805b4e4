package http

// Chunk is a piece of the body held back while the message is paused. A chunk with EOF
// set marks the end of the body and carries no data.
type Chunk struct {
	Data []byte
	EOF  bool
}

// Pendings is a FIFO of chunks, kept in the arrival order.
type Pendings struct {
	chunks []Chunk
}

func (p *Pendings) Push(chunk Chunk) {
	p.chunks = append(p.chunks, chunk)
}

func (p *Pendings) Pop() (chunk Chunk, ok bool) {
	if len(p.chunks) == 0 {
		return chunk, false
	}

	chunk = p.chunks[0]
	p.chunks[0] = Chunk{}
	p.chunks = p.chunks[1:]
	if len(p.chunks) == 0 {
		p.chunks = nil
	}

	return chunk, true
}

func (p *Pendings) Len() int {
	return len(p.chunks)
}

// Chunks exposes the queued chunks without copying. The slice must not be retained.
func (p *Pendings) Chunks() []Chunk {
	return p.chunks
}
