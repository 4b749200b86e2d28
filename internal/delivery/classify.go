package delivery

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/minhducle291/linebot/internal/line"
)

// Class is the failure class of an outbound call.
type Class int

const (
	ClassNone Class = iota
	// ClassExpired means the reply token is no longer usable. Never retried.
	ClassExpired
	// ClassTransient means the connection dropped before a response was read.
	ClassTransient
	// ClassOther covers everything else, timeouts included: a timed-out
	// reply may still have been delivered.
	ClassOther
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassExpired:
		return "expired"
	case ClassTransient:
		return "transient"
	default:
		return "other"
	}
}

// Classify maps an error from a Messenger call to a Class. Typed errors
// are checked first, then the message text, since some stacks flatten
// network failures into strings.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, line.ErrInvalidReplyToken) {
		return ClassExpired
	}
	var apiErr *line.APIError
	if errors.As(err, &apiErr) {
		// The platform answered; only the token message is special.
		return ClassOther
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) {
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "invalid reply token") || strings.Contains(msg, "invalid replytoken") {
		return ClassExpired
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "remote end closed connection") ||
		strings.Contains(msg, "server closed idle connection") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "unexpected eof") {
		return ClassTransient
	}
	return ClassOther
}
