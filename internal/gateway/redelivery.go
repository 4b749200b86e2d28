package gateway

import (
	"fmt"

	"github.com/minhducle291/linebot/internal/types"
)

// RedeliveryPolicy decides what happens to an event the platform flags as
// a retransmission.
type RedeliveryPolicy string

const (
	// RedeliveryDrop discards the event without any reply or push.
	RedeliveryDrop RedeliveryPolicy = "drop"
	// RedeliveryPush skips the stale reply token and pushes the resolved
	// messages to the source instead. Dedupe still applies.
	RedeliveryPush RedeliveryPolicy = "push"
)

// ParseRedeliveryPolicy accepts "drop", "push" or "" (drop).
func ParseRedeliveryPolicy(s string) (RedeliveryPolicy, error) {
	switch RedeliveryPolicy(s) {
	case "", RedeliveryDrop:
		return RedeliveryDrop, nil
	case RedeliveryPush:
		return RedeliveryPush, nil
	default:
		return "", fmt.Errorf("unknown redelivery policy %q", s)
	}
}

// IsRedelivery reports whether the platform flagged ev as a retransmission.
func IsRedelivery(ev *types.InboundEvent) bool {
	return ev.Redelivery
}
