// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type RunID string
type EventID string

func NewRunID() RunID {
	return RunID(uuid.New().String())
}

func NewEventID() EventID {
	return EventID(uuid.New().String())
}

// ShortToken returns a log-safe prefix of a reply token.
func ShortToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "…"
}
