package status

type Code uint16

// HTTP status codes as registered with IANA. Only those the server and the client
// deal with are named.
const (
	Continue           Code = 100
	SwitchingProtocols Code = 101
	Processing         Code = 102
	EarlyHints         Code = 103

	OK             Code = 200
	Created        Code = 201
	Accepted       Code = 202
	NoContent      Code = 204
	PartialContent Code = 206

	MovedPermanently Code = 301
	Found            Code = 302
	NotModified      Code = 304

	BadRequest                  Code = 400
	Unauthorized                Code = 401
	Forbidden                   Code = 403
	NotFound                    Code = 404
	MethodNotAllowed            Code = 405
	RequestTimeout              Code = 408
	LengthRequired              Code = 411
	RequestEntityTooLarge       Code = 413
	RequestURITooLong           Code = 414
	UpgradeRequired             Code = 426
	RequestHeaderFieldsTooLarge Code = 431

	InternalServerError     Code = 500
	NotImplemented          Code = 501
	BadGateway              Code = 502
	ServiceUnavailable      Code = 503
	HTTPVersionNotSupported Code = 505
)

var texts = map[Code]string{
	Continue:                    "Continue",
	SwitchingProtocols:          "Switching Protocols",
	Processing:                  "Processing",
	EarlyHints:                  "Early Hints",
	OK:                          "OK",
	Created:                     "Created",
	Accepted:                    "Accepted",
	NoContent:                   "No Content",
	PartialContent:              "Partial Content",
	MovedPermanently:            "Moved Permanently",
	Found:                       "Found",
	NotModified:                 "Not Modified",
	BadRequest:                  "Bad Request",
	Unauthorized:                "Unauthorized",
	Forbidden:                   "Forbidden",
	NotFound:                    "Not Found",
	MethodNotAllowed:            "Method Not Allowed",
	RequestTimeout:              "Request Timeout",
	LengthRequired:              "Length Required",
	RequestEntityTooLarge:       "Request Entity Too Large",
	RequestURITooLong:           "Request URI Too Long",
	UpgradeRequired:             "Upgrade Required",
	RequestHeaderFieldsTooLarge: "Request Header Fields Too Large",
	InternalServerError:         "Internal Server Error",
	NotImplemented:              "Not Implemented",
	BadGateway:                  "Bad Gateway",
	ServiceUnavailable:          "Service Unavailable",
	HTTPVersionNotSupported:     "HTTP Version Not Supported",
}

// Text returns a reason phrase for the code. Unknown codes get an empty string.
func Text(code Code) string {
	return texts[code]
}

// Bodyless reports whether a response with the code never carries a body, regardless
// of its framing headers.
func Bodyless(code Code) bool {
	return (code >= 100 && code < 200) || code == NoContent || code == NotModified
}
