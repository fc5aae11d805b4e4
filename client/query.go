package client

import "net/url"

// Query holds the parameters of a request target, rendered percent-encoded and sorted by key.
type Query map[string][]string

func NewQuery() Query {
	return make(Query)
}

func (q Query) WithValue(key string, values ...string) Query {
	q[key] = append(q[key], values...)
	return q
}

func (q Query) Encode() string {
	return url.Values(q).Encode()
}
