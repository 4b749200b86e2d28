package line

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/minhducle291/linebot/internal/types"
)

// VerifyReplyToken is the reply token carried by the console's connectivity
// check. It is never a real user event.
const VerifyReplyToken = "00000000000000000000000000000000"

type wirePayload struct {
	Destination string      `json:"destination"`
	Events      []wireEvent `json:"events"`
}

type wireEvent struct {
	Type            string `json:"type"`
	Mode            string `json:"mode"`
	Timestamp       int64  `json:"timestamp"`
	WebhookEventID  string `json:"webhookEventId"`
	ReplyToken      string `json:"replyToken"`
	DeliveryContext struct {
		IsRedelivery bool `json:"isRedelivery"`
	} `json:"deliveryContext"`
	Source   wireSource    `json:"source"`
	Message  *wireMessage  `json:"message"`
	Postback *wirePostback `json:"postback"`
}

type wireSource struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
	RoomID  string `json:"roomId"`
}

type wireMessage struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Text      string  `json:"text"`
	Title     string  `json:"title"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	PackageID string  `json:"packageId"`
	StickerID string  `json:"stickerId"`
}

type wirePostback struct {
	Data   string            `json:"data"`
	Params map[string]string `json:"params"`
}

// ParseEvents decodes a webhook request body. Events of kinds the bot does
// not handle are returned with KindUnsupported rather than dropped, so the
// caller can log them.
func ParseEvents(body []byte) ([]*types.InboundEvent, error) {
	var payload wirePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding webhook body: %w", err)
	}

	events := make([]*types.InboundEvent, 0, len(payload.Events))
	for _, we := range payload.Events {
		events = append(events, convertEvent(we))
	}
	return events, nil
}

func convertEvent(we wireEvent) *types.InboundEvent {
	ev := &types.InboundEvent{
		ID:             types.NewEventID(),
		Kind:           types.KindUnsupported,
		Type:           we.Type,
		WebhookEventID: we.WebhookEventID,
		ReplyToken:     we.ReplyToken,
		Source: types.Source{
			Kind:    types.SourceKind(we.Source.Type),
			UserID:  we.Source.UserID,
			GroupID: we.Source.GroupID,
			RoomID:  we.Source.RoomID,
		},
		Redelivery: we.DeliveryContext.IsRedelivery,
	}
	if we.Timestamp > 0 {
		ev.Timestamp = time.UnixMilli(we.Timestamp)
	}

	switch we.Type {
	case "message":
		if we.Message == nil {
			break
		}
		m := we.Message
		ev.Type = "message." + m.Type
		switch m.Type {
		case "text":
			ev.Kind = types.KindText
			ev.Text = &types.TextContent{MessageID: m.ID, Text: m.Text}
		case "location":
			ev.Kind = types.KindLocation
			ev.Location = &types.LocationContent{
				MessageID: m.ID,
				Title:     m.Title,
				Address:   m.Address,
				Latitude:  m.Latitude,
				Longitude: m.Longitude,
			}
		case "sticker":
			ev.Kind = types.KindSticker
			ev.Sticker = &types.StickerContent{MessageID: m.ID, PackageID: m.PackageID, StickerID: m.StickerID}
		}
	case "postback":
		if we.Postback == nil {
			break
		}
		ev.Kind = types.KindPostback
		ev.Postback = &types.PostbackContent{Data: we.Postback.Data, Params: we.Postback.Params}
	}
	return ev
}
