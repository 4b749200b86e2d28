package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/minhducle291/linebot/internal/types"
)

// Platform limits for flex content.
const (
	maxCarouselBubbles = 12
	maxButtonLabel     = 20
)

type cardStyle struct {
	Header string
	Bg     string
	Fg     string
}

var (
	guideStyle   = cardStyle{Header: "💡Hướng dẫn", Bg: "#038d38", Fg: "#FFFFFF"}
	warningStyle = cardStyle{Header: "⚠️ Cảnh báo", Bg: "#761414", Fg: "#FFFFFF"}
	summaryStyle = cardStyle{Bg: "#761414", Fg: "#FFFFFF"}
)

// textCard is a single coloured bubble with an optional header line.
func textCard(text string, style cardStyle) types.OutboundMessage {
	contents := []any{}
	if style.Header != "" {
		contents = append(contents, map[string]any{
			"type": "text", "text": style.Header, "weight": "bold", "size": "sm", "color": style.Fg,
		})
	}
	contents = append(contents, map[string]any{
		"type": "text", "text": text, "wrap": true, "size": "md", "color": style.Fg,
	})
	bubble := map[string]any{
		"type": "bubble",
		"size": "kilo",
		"body": map[string]any{
			"type":            "box",
			"layout":          "vertical",
			"spacing":         "sm",
			"backgroundColor": style.Bg,
			"contents":        contents,
		},
	}
	return card(text, bubble)
}

// categoryPicker offers one button per category for a store.
func categoryPicker(storeID int64, categories []Category) types.OutboundMessage {
	buttons := make([]any, 0, len(categories))
	for _, c := range categories {
		buttons = append(buttons, postbackButton(c.Title, url.Values{
			"a":     {"category.select"},
			"store": {strconv.FormatInt(storeID, 10)},
			"cat":   {strconv.FormatInt(c.ID, 10)},
		}))
	}
	bubble := map[string]any{
		"type": "bubble",
		"header": box(
			heading(fmt.Sprintf("Siêu thị %d", storeID)),
			subtle("Chọn ngành hàng"),
		),
		"body": map[string]any{
			"type": "box", "layout": "vertical", "spacing": "sm", "contents": buttons,
		},
	}
	return card("Chọn ngành hàng", bubble)
}

// groupPicker builds a carousel per report: the "all groups" button first,
// then the category's groups, groupsPerBubble buttons per bubble.
func groupPicker(storeID, categoryID int64, groups []string) types.OutboundMessage {
	options := append([]string{AllGroups}, groups...)

	var bubbles []any
	for _, r := range reports {
		for start := 0; start < len(options); start += groupsPerBubble {
			end := min(start+groupsPerBubble, len(options))
			buttons := make([]any, 0, end-start)
			for _, g := range options[start:end] {
				label := g
				if g == AllGroups {
					label = allGroupsLabel
				}
				buttons = append(buttons, postbackButton(label, url.Values{
					"a":      {"report_group.select"},
					"store":  {strconv.FormatInt(storeID, 10)},
					"report": {r.ID},
					"cat":    {strconv.FormatInt(categoryID, 10)},
					"group":  {g},
				}))
			}
			bubbles = append(bubbles, map[string]any{
				"type":   "bubble",
				"header": box(heading(r.Title), subtle(r.Description)),
				"body": map[string]any{
					"type": "box", "layout": "vertical", "spacing": "sm", "contents": buttons,
				},
			})
		}
	}
	if len(bubbles) > maxCarouselBubbles {
		slog.Warn("group picker truncated", "bubbles", len(bubbles), "max", maxCarouselBubbles, "store_id", storeID, "category_id", categoryID)
		bubbles = bubbles[:maxCarouselBubbles]
	}
	return card("Chọn báo cáo & nhóm hàng", map[string]any{"type": "carousel", "contents": bubbles})
}

func postbackButton(label string, data url.Values) map[string]any {
	return map[string]any{
		"type":   "button",
		"style":  "secondary",
		"height": "sm",
		"action": map[string]any{
			"type":  "postback",
			"label": truncate(label, maxButtonLabel),
			"data":  data.Encode(),
		},
	}
}

func box(contents ...any) map[string]any {
	return map[string]any{"type": "box", "layout": "vertical", "contents": contents}
}

func heading(text string) map[string]any {
	return map[string]any{"type": "text", "text": text, "weight": "bold", "size": "lg", "wrap": true}
}

func subtle(text string) map[string]any {
	return map[string]any{"type": "text", "text": text, "size": "sm", "color": "#888888", "wrap": true}
}

func card(altText string, contents any) types.OutboundMessage {
	raw, err := json.Marshal(contents)
	if err != nil {
		slog.Error("marshal flex contents", "error", err)
		return types.TextMessage{Text: altText}
	}
	return types.CardMessage{AltText: truncate(altText, 400), Contents: raw}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
