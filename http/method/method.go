package method

// Method is the set of request methods an IncomingMessage exposes. Requests with any
// other method the tokenizer accepts carry Unknown, whose string form is empty.
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

	// Count is the last one enum, so contains the greatest integer value of all the
	// methods.
	Count = iota - 1
)

// List contains all the known methods, sorted by their integer value. Unknown is not included.
var List = []Method{DELETE, GET, HEAD, POST, PUT, CONNECT, OPTIONS, TRACE}

var names = [...]string{
	Unknown: "",
	DELETE:  "DELETE",
	GET:     "GET",
	HEAD:    "HEAD",
	POST:    "POST",
	PUT:     "PUT",
	CONNECT: "CONNECT",
	OPTIONS: "OPTIONS",
	TRACE:   "TRACE",
}

func (m Method) String() string {
	if int(m) >= len(names) {
		return ""
	}

	return names[m]
}

// Parse is case-sensitive, as method names are.
func Parse(str string) Method {
	for i, name := range names[1:] {
		if name == str {
			return Method(i + 1)
		}
	}

	return Unknown
}
