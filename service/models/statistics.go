package models

// StatisticsSnapshot 统计快照，范围字段按需填充
type StatisticsSnapshot struct {
	TotalTests int     `json:"total_tests"`
	PassCount  int     `json:"pass_count"`
	FailCount  int     `json:"fail_count"`
	PassRate   float64 `json:"pass_rate"`
	Date       string  `json:"date,omitempty"`
	ProductID  string  `json:"product_id,omitempty"`
	TestItemID string  `json:"test_item_id,omitempty"`
}

// ProductStatistics 按产品汇总
type ProductStatistics struct {
	StatisticsSnapshot
	ProductModel string `json:"product_model"`
	ProductName  string `json:"product_name"`
}

// TestItemStatistics 按测试项目汇总
type TestItemStatistics struct {
	StatisticsSnapshot
	TestItemName string `json:"test_item_name"`
	Category     string `json:"category"`
}

// ChartDataset 图表数据集
type ChartDataset struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// ChartSeries 图表序列
type ChartSeries struct {
	Labels []string       `json:"labels"`
	Series []ChartDataset `json:"series"`
}

// Dashboard 仪表盘汇总
type Dashboard struct {
	Today     StatisticsSnapshot   `json:"today"`
	Week      StatisticsSnapshot   `json:"week"`
	Month     StatisticsSnapshot   `json:"month"`
	Trend     []StatisticsSnapshot `json:"trend"`
	TrendDays int                  `json:"trend_days"`
}
