package report

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/minhducle291/linebot/internal/dataset"
	"github.com/minhducle291/linebot/internal/render"
	"github.com/minhducle291/linebot/internal/storage"
	"github.com/minhducle291/linebot/internal/types"
)

// Request selects the slice of a report to render.
type Request struct {
	StoreID      int64
	CategoryID   int64
	CategoryName string
	// Group is AllGroups or an "id-name" group label.
	Group string
}

func (r Request) allGroups() bool {
	return r.Group == AllGroups || r.Group == ""
}

func (r Request) groupID() (int64, error) {
	id, _, _ := strings.Cut(r.Group, "-")
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid group %q", r.Group)
	}
	return n, nil
}

func (r Request) label() string {
	if r.allGroups() {
		return "Ngành hàng " + r.CategoryName
	}
	return "Nhóm hàng " + r.Group
}

// Run renders the report with the given id. An unknown id yields a notice
// rather than an error.
func (e *Engine) Run(ctx context.Context, reportID string, req Request) ([]types.OutboundMessage, error) {
	switch reportID {
	case ReportAllocation:
		return e.allocation(ctx, req)
	case ReportSales:
		return e.sales(ctx, req)
	default:
		return types.Text(fmt.Sprintf(unknownReportTextF, reportID)), nil
	}
}

func (e *Engine) allocation(ctx context.Context, req Request) ([]types.OutboundMessage, error) {
	rows, err := e.data.Demand()
	if err != nil {
		return nil, fmt.Errorf("loading demand: %w", err)
	}
	updated := ""
	if len(rows) > 0 {
		updated = rows[0].UpdatedOn
	}

	var gid int64
	if !req.allGroups() {
		if gid, err = req.groupID(); err != nil {
			return nil, err
		}
	}

	storeName := "N/A"
	tbl := render.Table{Columns: []string{"Tên sản phẩm", "Min chia", "Số chia", "Trạng thái"}}
	for _, r := range rows {
		if r.CategoryID != req.CategoryID || r.StoreID != req.StoreID {
			continue
		}
		if !req.allGroups() && r.GroupID != gid {
			continue
		}
		if len(tbl.Rows) == 0 {
			storeName = r.StoreName
		}
		tbl.Rows = append(tbl.Rows, []string{r.Product, formatQty(r.MinAllocation), formatQty(r.Allocation), r.Status})
	}
	tbl.Title = []string{
		fmt.Sprintf("Thông tin chia hàng của siêu thị %d-%s", req.StoreID, storeName),
		req.label(),
		fmt.Sprintf("(ngày cập nhật: %s)", updated),
	}

	summary := fmt.Sprintf("Thông tin chia hàng - ST: %d\n%s", req.StoreID, req.label())
	return e.publish(ctx, ReportAllocation, req.StoreID, summary, tbl)
}

func (e *Engine) sales(ctx context.Context, req Request) ([]types.OutboundMessage, error) {
	rows, err := e.data.Sales()
	if err != nil {
		return nil, fmt.Errorf("loading sales: %w", err)
	}
	from, to := "", ""
	if len(rows) > 0 {
		from, to = rows[0].FromDate, rows[0].ToDate
	}

	var gid int64
	if !req.allGroups() {
		if gid, err = req.groupID(); err != nil {
			return nil, err
		}
	}

	var matched []dataset.SalesRow
	for _, r := range rows {
		if r.StoreID != req.StoreID {
			continue
		}
		if req.allGroups() && r.CategoryID != req.CategoryID {
			continue
		}
		if !req.allGroups() && r.GroupID != gid {
			continue
		}
		matched = append(matched, r)
	}
	matched = rankSales(matched)

	storeName := "N/A"
	if len(matched) > 0 {
		storeName = matched[0].StoreName
	}
	tbl := render.Table{
		Title: []string{
			fmt.Sprintf("Báo cáo kết quả bán hàng của siêu thị %d-%s", req.StoreID, storeName),
			req.label(),
			fmt.Sprintf("(đơn vị KG) (dữ liệu từ %s đến %s)", from, to),
		},
		Columns: []string{"Nhóm sản phẩm", "Nhu cầu", "PO", "Nhập", "Bán", "% Nhập/PO", "% Bán/Nhập", "Số chia hiện tại"},
	}
	for _, r := range matched {
		tbl.Rows = append(tbl.Rows, []string{
			r.ProductGroup,
			formatQty(r.Demand),
			formatQty(r.PO),
			formatQty(r.Received),
			formatQty(r.Sold),
			formatPct(r.ReceivedPOPct),
			formatPct(r.SoldReceivedPct),
			formatQty(r.CurrentAllocation),
		})
	}

	summary := fmt.Sprintf("Kết quả bán hàng - ST: %d\n%s", req.StoreID, req.label())
	return e.publish(ctx, ReportSales, req.StoreID, summary, tbl)
}

// rankSales orders rows by received then current allocation, both
// descending, and keeps the first row of each product group.
func rankSales(rows []dataset.SalesRow) []dataset.SalesRow {
	slices.SortStableFunc(rows, func(a, b dataset.SalesRow) int {
		if c := cmp.Compare(b.Received, a.Received); c != 0 {
			return c
		}
		return cmp.Compare(b.CurrentAllocation, a.CurrentAllocation)
	})
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		if seen[r.ProductGroup] {
			continue
		}
		seen[r.ProductGroup] = true
		out = append(out, r)
	}
	return out
}

// publish renders the table, stores the image and returns the summary card
// followed by the image.
func (e *Engine) publish(ctx context.Context, reportID string, storeID int64, summary string, tbl render.Table) ([]types.OutboundMessage, error) {
	var buf bytes.Buffer
	if err := render.PNG(&buf, tbl); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", reportID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := storage.ObjectName(fmt.Sprintf("%s_%d", reportID, storeID), e.now(), ".png")
	imageURL, err := e.store.Put(ctx, name, "image/png", buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("storing %s: %w", name, err)
	}
	return []types.OutboundMessage{
		textCard(summary, summaryStyle),
		types.ImageMessage{OriginalURL: imageURL, PreviewURL: imageURL},
	}, nil
}

func formatQty(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}
