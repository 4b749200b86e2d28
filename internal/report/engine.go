// Package report resolves inbound chat events into store report replies:
// text commands, picker postbacks and shared locations.
package report

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/minhducle291/linebot/internal/dataset"
	"github.com/minhducle291/linebot/internal/geo"
	"github.com/minhducle291/linebot/internal/storage"
	"github.com/minhducle291/linebot/internal/types"
)

// Data is the read side of the report datasets.
type Data interface {
	Demand() ([]dataset.DemandRow, error)
	Sales() ([]dataset.SalesRow, error)
	Stores() ([]dataset.StoreRow, error)
}

const DefaultNearestMaxKm = 30

// User-facing texts.
const (
	guideText          = "Hãy gửi [Mã siêu thị] hoặc chia sẻ [Vị trí] của bạn để xem báo cáo nhé!"
	unknownStoreText   = "[Mã siêu thị] không tồn tại!\nVui lòng kiểm tra lại!"
	dataErrorText      = "Xin lỗi, dữ liệu báo cáo hiện chưa sẵn sàng. Vui lòng thử lại sau."
	locationErrorText  = "⚠️ Không đọc được dữ liệu vị trí. Vui lòng thử lại sau."
	postbackRetryText  = "Lỗi xử lý postback. Vui lòng thử lại sau!"
	unknownReportTextF = "⚠️ Chưa có handler cho báo cáo: %s"
	noStoreNearbyTextF = "❌ Không tìm thấy siêu thị trong bán kính %gkm."
	userIDTextPrefix   = "Đây là user_id của bạn:\n"
	nearestStoreTextF  = "📍 Siêu thị gần nhất: %d (cách khoảng %.1f km)."
)

// Options tune an Engine.
type Options struct {
	Categories   []Category
	NearestMaxKm float64
}

// Engine implements types.Resolver over the report datasets. It never
// returns an error; failures become a short apology message.
type Engine struct {
	data         Data
	store        storage.Store
	categories   []Category
	nearestMaxKm float64
	now          func() time.Time
}

// NewEngine creates an Engine reading from data and saving rendered
// images to store.
func NewEngine(data Data, store storage.Store, opts Options) *Engine {
	e := &Engine{
		data:         data,
		store:        store,
		categories:   opts.Categories,
		nearestMaxKm: opts.NearestMaxKm,
		now:          time.Now,
	}
	if len(e.categories) == 0 {
		e.categories = DefaultCategories
	}
	if e.nearestMaxKm <= 0 {
		e.nearestMaxKm = DefaultNearestMaxKm
	}
	return e
}

// Resolve implements types.Resolver.
func (e *Engine) Resolve(ctx context.Context, ev *types.InboundEvent) []types.OutboundMessage {
	switch {
	case ev.Text != nil:
		return e.HandleText(ev.Text.Text, ev.Source.UserID)
	case ev.Location != nil:
		return e.HandleLocation(ev.Location.Latitude, ev.Location.Longitude)
	case ev.Postback != nil:
		return e.HandlePostback(ctx, ev.Postback.Data)
	default:
		return []types.OutboundMessage{textCard(guideText, guideStyle)}
	}
}

// HandleText answers a text message: "ping", "/id", a numeric store code,
// or anything else with usage guidance.
func (e *Engine) HandleText(text, userID string) []types.OutboundMessage {
	text = strings.TrimSpace(text)
	switch strings.ToLower(text) {
	case "/id":
		return types.Text(userIDTextPrefix + userID)
	case "ping":
		return types.Text("pong")
	}

	if !isDigits(text) {
		return []types.OutboundMessage{textCard(guideText, guideStyle)}
	}

	storeID, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return []types.OutboundMessage{textCard(unknownStoreText, warningStyle)}
	}
	known, err := e.knownStore(storeID)
	if err != nil {
		slog.Error("loading store list failed", "error", err)
		return types.Text(dataErrorText)
	}
	if !known {
		return []types.OutboundMessage{textCard(unknownStoreText, warningStyle)}
	}
	return []types.OutboundMessage{categoryPicker(storeID, e.categories)}
}

// HandleLocation finds the nearest store and continues with its category
// picker.
func (e *Engine) HandleLocation(lat, lon float64) []types.OutboundMessage {
	stores, err := e.data.Stores()
	if err != nil {
		slog.Error("loading store locations failed", "error", err)
		return types.Text(locationErrorText)
	}

	nearest, dist, ok := geo.Nearest(stores, geo.Point{Lat: lat, Lon: lon}, e.nearestMaxKm, func(s dataset.StoreRow) geo.Point {
		return geo.Point{Lat: s.Latitude, Lon: s.Longitude}
	})
	if !ok {
		return types.Text(fmt.Sprintf(noStoreNearbyTextF, e.nearestMaxKm))
	}

	msgs := types.Text(fmt.Sprintf(nearestStoreTextF, nearest.StoreID, dist))
	return append(msgs, e.HandleText(strconv.FormatInt(nearest.StoreID, 10), "")...)
}

// HandlePostback handles picker selections encoded as query strings.
func (e *Engine) HandlePostback(ctx context.Context, data string) []types.OutboundMessage {
	qs, err := url.ParseQuery(data)
	if err != nil {
		slog.Warn("malformed postback data", "data", data, "error", err)
		return types.Text(postbackRetryText)
	}

	switch qs.Get("a") {
	case "category.select":
		storeID := parseIntOr(qs.Get("store"), 0)
		catID := parseIntOr(qs.Get("cat"), 0)
		groups, err := e.groupsFor(catID)
		if err != nil {
			slog.Error("loading groups failed", "category_id", catID, "error", err)
			return types.Text(dataErrorText)
		}
		return []types.OutboundMessage{groupPicker(storeID, catID, groups)}

	case "report_group.select":
		storeID, err := strconv.ParseInt(qs.Get("store"), 10, 64)
		if err != nil {
			return types.Text(postbackRetryText)
		}
		catID := qs.Get("cat")
		req := Request{
			StoreID:      storeID,
			CategoryID:   parseIntOr(catID, 0),
			CategoryName: e.categoryName(catID),
			Group:        qs.Get("group"),
		}
		msgs, err := e.Run(ctx, qs.Get("report"), req)
		if err != nil {
			slog.Error("report failed", "report", qs.Get("report"), "store_id", storeID, "error", err)
			return types.Text(dataErrorText)
		}
		return msgs

	default:
		return types.Text(postbackRetryText)
	}
}

func (e *Engine) knownStore(id int64) (bool, error) {
	rows, err := e.data.Demand()
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r.StoreID == id {
			return true, nil
		}
	}
	return false, nil
}

// groupsFor lists "id-name" labels of the category's product groups in id
// order.
func (e *Engine) groupsFor(categoryID int64) ([]string, error) {
	rows, err := e.data.Demand()
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool)
	type group struct {
		id   int64
		name string
	}
	var groups []group
	for _, r := range rows {
		if r.CategoryID != categoryID || seen[r.GroupID] {
			continue
		}
		seen[r.GroupID] = true
		groups = append(groups, group{r.GroupID, r.GroupName})
	}
	slices.SortFunc(groups, func(a, b group) int { return cmp.Compare(a.id, b.id) })

	labels := make([]string, len(groups))
	for i, g := range groups {
		labels[i] = fmt.Sprintf("%d-%s", g.id, g.name)
	}
	return labels, nil
}

func (e *Engine) categoryName(id string) string {
	for _, c := range e.categories {
		if strconv.FormatInt(c.ID, 10) == id {
			return c.Title
		}
	}
	return id
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseIntOr(s string, def int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}
