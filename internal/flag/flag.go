// Package flag implements a compact bitfield for per-object state bits.
package flag

type Set uint8

func (s *Set) Set(f Set) {
	*s |= f
}

func (s *Set) Unset(f Set) {
	*s &^= f
}

// Has reports whether every bit of f is set.
func (s Set) Has(f Set) bool {
	return s&f == f
}

func (s *Set) Clear() {
	*s = 0
}
