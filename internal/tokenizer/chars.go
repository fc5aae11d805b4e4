package tokenizer

import (
	"math"
	"strings"

	"github.com/indigo-web/utils/strcomp"
)

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHex(c byte) bool {
	return isDigit(c) || (c|0x20 >= 'a' && c|0x20 <= 'f')
}

func unhex(c byte) byte {
	if isDigit(c) {
		return c - '0'
	}

	return c|0x20 - 'a' + 10
}

func isMethodChar(c byte) bool {
	return (c >= 'A' && c <= 'Z') || c == '-'
}

// isURLChar accepts everything except controls and the space. Bytes above 0x7f are
// let through as the request target may carry raw UTF-8.
func isURLChar(c byte) bool {
	return c > ' ' && c != 0x7f
}

// isCTL reports control characters, forbidden in header values and reason phrases. The
// horizontal tab is allowed.
func isCTL(c byte) bool {
	return (c < ' ' && c != '\t') || c == 0x7f
}

func available(remaining int64, left int) int {
	if remaining < int64(left) {
		return int(remaining)
	}

	return left
}

func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}

	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}

	return b
}

func parseContentLength(value string) (length int64, ok bool) {
	if len(value) == 0 {
		return 0, false
	}

	for i := 0; i < len(value); i++ {
		if !isDigit(value[i]) {
			return 0, false
		}

		digit := int64(value[i] - '0')
		if length > (math.MaxInt64-digit)/10 {
			return 0, false
		}

		length = length*10 + digit
	}

	return length, true
}

func lastTokenIsChunked(value string) bool {
	if comma := strings.LastIndexByte(value, ','); comma != -1 {
		value = value[comma+1:]
	}

	return strcomp.EqualFold(strings.Trim(value, " \t"), "chunked")
}
