// Package kv holds an ordered, case-insensitive storage of string pairs. Header lines of an
// IncomingMessage and headers of a ServerResponse live in it.
package kv

import (
	"github.com/indigo-web/iter"
	"github.com/indigo-web/utils/strcomp"
)

type Pair struct {
	Key, Value string
}

// Storage keeps pairs in the order they were added, duplicate keys included, exactly as
// header lines arrive on the wire. Keys are compared case-insensitively. Lookups are linear:
// a message rarely carries more than a couple dozen lines.
type Storage struct {
	pairs  []Pair
	keys   []string
	values []string
}

func New() *Storage {
	return new(Storage)
}

// NewPrealloc reserves space for n pairs.
func NewPrealloc(n int) *Storage {
	return &Storage{pairs: make([]Pair, 0, n)}
}

func (s *Storage) Add(key, value string) *Storage {
	s.pairs = append(s.pairs, Pair{Key: key, Value: value})
	return s
}

// Set leaves a single pair with the key. It takes the place of the first one, if any.
func (s *Storage) Set(key, value string) *Storage {
	i := s.index(key, 0)
	if i == -1 {
		return s.Add(key, value)
	}

	s.pairs[i].Value = value
	s.remove(key, i+1)

	return s
}

func (s *Storage) Delete(key string) *Storage {
	s.remove(key, 0)
	return s
}

// Get returns the value of the first pair with the key.
func (s *Storage) Get(key string) (value string, found bool) {
	if i := s.index(key, 0); i != -1 {
		return s.pairs[i].Value, true
	}

	return "", false
}

// Value is Get without the presence flag.
func (s *Storage) Value(key string) string {
	value, _ := s.Get(key)
	return value
}

// ValueOr returns the fallback if there's no such key.
func (s *Storage) ValueOr(key, fallback string) string {
	if value, found := s.Get(key); found {
		return value
	}

	return fallback
}

func (s *Storage) Has(key string) bool {
	return s.index(key, 0) != -1
}

// Values returns every value of the key in order, or nil. The slice is reused by the next
// call.
func (s *Storage) Values(key string) []string {
	s.values = s.values[:0]
	for i := s.index(key, 0); i != -1; i = s.index(key, i+1) {
		s.values = append(s.values, s.pairs[i].Value)
	}

	if len(s.values) == 0 {
		return nil
	}

	return s.values
}

// Keys returns every distinct key, spelled as it was first added. The slice is reused by
// the next call.
func (s *Storage) Keys() []string {
	s.keys = s.keys[:0]

outer:
	for _, pair := range s.pairs {
		for _, key := range s.keys {
			if strcomp.EqualFold(key, pair.Key) {
				continue outer
			}
		}

		s.keys = append(s.keys, pair.Key)
	}

	return s.keys
}

func (s *Storage) Iter() iter.Iterator[Pair] {
	return iter.Slice(s.pairs)
}

// Expose returns the underlying pairs. They must not be modified.
func (s *Storage) Expose() []Pair {
	return s.pairs
}

func (s *Storage) Len() int {
	return len(s.pairs)
}

func (s *Storage) Empty() bool {
	return len(s.pairs) == 0
}

// Clone returns a copy sharing nothing with the original.
func (s *Storage) Clone() *Storage {
	if len(s.pairs) == 0 {
		return New()
	}

	return &Storage{pairs: append(make([]Pair, 0, len(s.pairs)), s.pairs...)}
}

// Clear drops all the pairs, keeping the allocated space.
func (s *Storage) Clear() *Storage {
	s.pairs = s.pairs[:0]
	return s
}

func (s *Storage) index(key string, from int) int {
	for i := from; i < len(s.pairs); i++ {
		if strcomp.EqualFold(key, s.pairs[i].Key) {
			return i
		}
	}

	return -1
}

// remove drops the pairs with the key, starting at the offset.
func (s *Storage) remove(key string, offset int) {
	kept := s.pairs[:offset]
	for _, pair := range s.pairs[offset:] {
		if !strcomp.EqualFold(key, pair.Key) {
			kept = append(kept, pair)
		}
	}

	s.pairs = kept
}
