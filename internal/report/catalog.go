package report

// Category is a top-level product category a store reports on.
type Category struct {
	ID    int64
	Title string
}

// DefaultCategories is used when configuration lists none.
var DefaultCategories = []Category{
	{ID: 1234, Title: "Rau Củ Các Loại"},
	{ID: 1235, Title: "Trái Cây Các Loại"},
	{ID: 1236, Title: "Thịt Gia Cầm Gia Súc Các Loại"},
	{ID: 1254, Title: "Thủy Hải Sản Các Loại"},
}

// Report ids carried in postback data.
const (
	ReportAllocation = "allocation"
	ReportSales      = "sales"
)

// Info describes a report in the picker card.
type Info struct {
	ID          string
	Title       string
	Description string
}

var reports = []Info{
	{ID: ReportAllocation, Title: "Thông tin chia hàng", Description: "Số lượng chia mỗi ngày theo sản phẩm."},
	{ID: ReportSales, Title: "Kết quả bán hàng", Description: "Chỉ số Nhu cầu - PO - Nhập - Bán trong 7 ngày gần nhất."},
}

// AllGroups is the group value selecting the whole category.
const AllGroups = "all"

const allGroupsLabel = "Xem tất cả nhóm"

// groupsPerBubble caps the group buttons on one picker card.
const groupsPerBubble = 7
