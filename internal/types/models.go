// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// EventKind is the discriminator of InboundEvent.
type EventKind string

const (
	KindText        EventKind = "text"
	KindLocation    EventKind = "location"
	KindSticker     EventKind = "sticker"
	KindPostback    EventKind = "postback"
	KindUnsupported EventKind = "unsupported"
)

// SourceKind identifies who an event came from.
type SourceKind string

const (
	SourceUser  SourceKind = "user"
	SourceGroup SourceKind = "group"
	SourceRoom  SourceKind = "room"
)

// Source is the origin of an event. Group and room sources may also carry
// the id of the member who triggered the event.
type Source struct {
	Kind    SourceKind `json:"type"`
	UserID  string     `json:"user_id,omitempty"`
	GroupID string     `json:"group_id,omitempty"`
	RoomID  string     `json:"room_id,omitempty"`
}

// TargetID returns the persistent id a push call must be addressed to, or
// "" when the source carries none.
func (s Source) TargetID() string {
	switch s.Kind {
	case SourceUser:
		return s.UserID
	case SourceGroup:
		return s.GroupID
	case SourceRoom:
		return s.RoomID
	default:
		return ""
	}
}

type TextContent struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

type LocationContent struct {
	MessageID string  `json:"message_id"`
	Title     string  `json:"title,omitempty"`
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type StickerContent struct {
	MessageID string `json:"message_id"`
	PackageID string `json:"package_id"`
	StickerID string `json:"sticker_id"`
}

type PostbackContent struct {
	Data   string            `json:"data"`
	Params map[string]string `json:"params,omitempty"`
}

// InboundEvent is one platform event. Exactly one of Text, Location,
// Sticker or Postback is set, matching Kind; unsupported events carry none.
type InboundEvent struct {
	ID             EventID   `json:"id"`
	RunID          RunID     `json:"run_id,omitempty"`
	Kind           EventKind `json:"kind"`
	Type           string    `json:"type"`
	WebhookEventID string    `json:"webhook_event_id,omitempty"`
	ReplyToken     string    `json:"-"`
	Source         Source    `json:"source"`
	Redelivery     bool      `json:"redelivery"`
	Timestamp      time.Time `json:"timestamp"`

	Text     *TextContent     `json:"text,omitempty"`
	Location *LocationContent `json:"location,omitempty"`
	Sticker  *StickerContent  `json:"sticker,omitempty"`
	Postback *PostbackContent `json:"postback,omitempty"`
}

// MessageID returns the platform-assigned message id, or "" for events
// that are not messages.
func (e *InboundEvent) MessageID() string {
	switch {
	case e.Text != nil:
		return e.Text.MessageID
	case e.Location != nil:
		return e.Location.MessageID
	case e.Sticker != nil:
		return e.Sticker.MessageID
	default:
		return ""
	}
}

// OutboundMessage is one of TextMessage, ImageMessage, StickerMessage or
// CardMessage.
type OutboundMessage interface {
	MessageType() string
}

type TextMessage struct {
	Text string
}

func (TextMessage) MessageType() string { return "text" }

type ImageMessage struct {
	OriginalURL string
	PreviewURL  string
}

func (ImageMessage) MessageType() string { return "image" }

type StickerMessage struct {
	PackageID string
	StickerID string
}

func (StickerMessage) MessageType() string { return "sticker" }

// CardMessage carries rich structured content (a flex container) with a
// plain-text fallback for clients that cannot render it.
type CardMessage struct {
	AltText  string
	Contents json.RawMessage
}

func (CardMessage) MessageType() string { return "flex" }

// Text builds a single-text message list.
func Text(s string) []OutboundMessage {
	return []OutboundMessage{TextMessage{Text: s}}
}
