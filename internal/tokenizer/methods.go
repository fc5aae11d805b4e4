package tokenizer

import "github.com/indigo-web/utils/uf"

// Method enumerates every request method the tokenizer accepts. It's wider than the set
// exposed to the applications.
type Method uint8

const (
	Unknown Method = iota
	DELETE
	GET
	HEAD
	POST
	PUT
	CONNECT
	OPTIONS
	TRACE
	COPY
	LOCK
	MKCOL
	MOVE
	PROPFIND
	PROPPATCH
	SEARCH
	UNLOCK
	REPORT
	MKACTIVITY
	CHECKOUT
	MERGE
	MSEARCH
	NOTIFY
	SUBSCRIBE
	UNSUBSCRIBE
	PATCH
	PURGE
)

var methodNames = [...]string{
	Unknown:     "",
	DELETE:      "DELETE",
	GET:         "GET",
	HEAD:        "HEAD",
	POST:        "POST",
	PUT:         "PUT",
	CONNECT:     "CONNECT",
	OPTIONS:     "OPTIONS",
	TRACE:       "TRACE",
	COPY:        "COPY",
	LOCK:        "LOCK",
	MKCOL:       "MKCOL",
	MOVE:        "MOVE",
	PROPFIND:    "PROPFIND",
	PROPPATCH:   "PROPPATCH",
	SEARCH:      "SEARCH",
	UNLOCK:      "UNLOCK",
	REPORT:      "REPORT",
	MKACTIVITY:  "MKACTIVITY",
	CHECKOUT:    "CHECKOUT",
	MERGE:       "MERGE",
	MSEARCH:     "M-SEARCH",
	NOTIFY:      "NOTIFY",
	SUBSCRIBE:   "SUBSCRIBE",
	UNSUBSCRIBE: "UNSUBSCRIBE",
	PATCH:       "PATCH",
	PURGE:       "PURGE",
}

// maxMethodLen is the length of the longest known method, UNSUBSCRIBE.
const maxMethodLen = 11

var methodsByName = func() map[string]Method {
	m := make(map[string]Method, len(methodNames))
	for i, name := range methodNames {
		if len(name) > 0 {
			m[name] = Method(i)
		}
	}

	return m
}()

func (m Method) String() string {
	if int(m) >= len(methodNames) {
		return ""
	}

	return methodNames[m]
}

func lookupMethod(name []byte) Method {
	// the compiler optimizes the conversion away for map lookups, so B2S is not even
	// necessary here, but it makes the intention explicit.
	return methodsByName[uf.B2S(name)]
}
