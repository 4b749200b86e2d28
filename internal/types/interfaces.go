// internal/types/interfaces.go
package types

import (
	"context"
)

// Resolver turns an accepted event into the messages to send back. It
// never fails: malformed input yields a user-facing hint.
type Resolver interface {
	Resolve(ctx context.Context, event *InboundEvent) []OutboundMessage
}

// Messenger is the outbound side of the messaging platform.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, messages []OutboundMessage) error
	Push(ctx context.Context, to string, messages []OutboundMessage) error
}
