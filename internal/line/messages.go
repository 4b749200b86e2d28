package line

import (
	"encoding/json"
	"fmt"

	"github.com/minhducle291/linebot/internal/types"
)

type wireText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireImage struct {
	Type               string `json:"type"`
	OriginalContentURL string `json:"originalContentUrl"`
	PreviewImageURL    string `json:"previewImageUrl"`
}

type wireSticker struct {
	Type      string `json:"type"`
	PackageID string `json:"packageId"`
	StickerID string `json:"stickerId"`
}

type wireFlex struct {
	Type     string          `json:"type"`
	AltText  string          `json:"altText"`
	Contents json.RawMessage `json:"contents"`
}

// encodeMessages maps domain messages to the Messaging API wire shapes.
func encodeMessages(messages []types.OutboundMessage) ([]any, error) {
	out := make([]any, 0, len(messages))
	for i, m := range messages {
		switch msg := m.(type) {
		case types.TextMessage:
			out = append(out, wireText{Type: "text", Text: msg.Text})
		case types.ImageMessage:
			preview := msg.PreviewURL
			if preview == "" {
				preview = msg.OriginalURL
			}
			out = append(out, wireImage{Type: "image", OriginalContentURL: msg.OriginalURL, PreviewImageURL: preview})
		case types.StickerMessage:
			out = append(out, wireSticker{Type: "sticker", PackageID: msg.PackageID, StickerID: msg.StickerID})
		case types.CardMessage:
			if !json.Valid(msg.Contents) {
				return nil, fmt.Errorf("message %d: invalid flex contents", i)
			}
			out = append(out, wireFlex{Type: "flex", AltText: msg.AltText, Contents: msg.Contents})
		default:
			return nil, fmt.Errorf("message %d: unsupported message type %T", i, m)
		}
	}
	return out, nil
}
