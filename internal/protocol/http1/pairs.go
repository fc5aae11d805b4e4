package http1

// slot tells which of the sequences the fragment buffer currently extends.
type slot uint8

const (
	slotNone slot = iota
	slotField
	slotValue
)

// pairs reassembles header lines from the fragments. Fields and values are kept in two
// parallel sequences, where the last slot of either of them may still be open: the open
// slot lives in the buffer and turns into a string only once it's closed. This happens
// either when the opposite sequence receives a fragment or when the header block ends.
type pairs struct {
	fields, values []string
	buff           []byte
	open           slot
}

func (p *pairs) Field(fragment []byte) {
	switch p.open {
	case slotField:
	case slotValue:
		p.closeValue()
		fallthrough
	default:
		if len(p.fields) != len(p.values) {
			panic("BUG: http1: header field started while the previous one has no value")
		}

		p.open = slotField
	}

	p.buff = append(p.buff, fragment...)
}

func (p *pairs) Value(fragment []byte) {
	switch p.open {
	case slotValue:
	case slotField:
		p.closeField()
		p.open = slotValue
	default:
		panic("BUG: http1: header value without a field")
	}

	p.buff = append(p.buff, fragment...)
}

// Close finalizes the open slot. Every field must have its value by then.
func (p *pairs) Close() {
	switch p.open {
	case slotField:
		panic("BUG: http1: header block ended on a field without a value")
	case slotValue:
		p.closeValue()
	}

	if len(p.fields) != len(p.values) {
		panic("BUG: http1: header fields and values are out of balance")
	}
}

// Len returns the number of completed pairs. Valid only after Close.
func (p *pairs) Len() int {
	return len(p.values)
}

func (p *pairs) Pair(i int) (field, value string) {
	return p.fields[i], p.values[i]
}

// Balance returns |fields| - |values|, counting the open slot.
func (p *pairs) Balance() int {
	fields, values := len(p.fields), len(p.values)
	switch p.open {
	case slotField:
		fields++
	case slotValue:
		values++
	}

	return fields - values
}

func (p *pairs) Reset() {
	p.fields = p.fields[:0]
	p.values = p.values[:0]
	p.buff = p.buff[:0]
	p.open = slotNone
}

func (p *pairs) closeField() {
	p.fields = append(p.fields, string(p.buff))
	p.buff = p.buff[:0]
	p.open = slotNone
}

func (p *pairs) closeValue() {
	p.values = append(p.values, string(p.buff))
	p.buff = p.buff[:0]
	p.open = slotNone
}
