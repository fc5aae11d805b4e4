package http

import (
	"errors"
)

var (
	ErrHeadersSent = errors.New("response headers were already sent")
	ErrEnded       = errors.New("response was already ended")
)
