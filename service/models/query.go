package models

// 排序方向
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// QueryFilters 测试记录查询过滤条件，所有条件为“与”关系
type QueryFilters struct {
	DateFrom   string `json:"date_from,omitempty"`    // YYYY-MM-DD，包含当日
	DateTo     string `json:"date_to,omitempty"`      // YYYY-MM-DD，包含当日
	DeviceSN   string `json:"device_sn,omitempty"`    // 子串匹配，不区分大小写
	ProductID  string `json:"product_id,omitempty"`   // 精确匹配
	TestItemID string `json:"test_item_id,omitempty"` // 精确匹配
	Result     string `json:"result,omitempty"`       // PASS / FAIL
	BatchID    string `json:"batch_id,omitempty"`     // 精确匹配
}

// SortParams 排序参数
type SortParams struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// DefaultSort 默认排序：测试日期倒序
func DefaultSort() SortParams {
	return SortParams{Field: "test_date", Order: SortDesc}
}

// PaginationParams 分页参数，页码从1开始
type PaginationParams struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Offset 当前页起始偏移
func (p PaginationParams) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Range 当前页的闭区间 [from, to]
func (p PaginationParams) Range() (int, int) {
	from := p.Offset()
	return from, from + p.Limit - 1
}

// RecordPage 测试记录分页结果
type RecordPage struct {
	Data  []TestRecord `json:"data"`
	Total int64        `json:"total"`
}
