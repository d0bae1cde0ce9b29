package models

import "fmt"

// ValidationError 行级校验错误，Row 为文件中的物理行号（表头为第1行）
type ValidationError struct {
	Row     int         `json:"row"`
	Field   string      `json:"field"`
	Value   interface{} `json:"value"`
	Message string      `json:"message"`
}

// Error 实现 error 接口
func (e ValidationError) Error() string {
	return fmt.Sprintf("第%d行 %s: %s", e.Row, e.Field, e.Message)
}

// ImportRow 解析后的待导入行，字段为规范化后的内部字段名
type ImportRow struct {
	Row          int    `json:"row"`
	TestDate     string `json:"test_date"`
	DeviceSN     string `json:"device_sn"`
	ProductModel string `json:"product_model"`
	TestItem     string `json:"test_item"`
	TestValue    JSONB  `json:"test_value"`
	Result       string `json:"result"`
	Operator     string `json:"operator,omitempty"`
	Remarks      string `json:"remarks,omitempty"`
}

// ImportUpload 上传的导入文件
type ImportUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Content     []byte
	BatchID     string
}

// ImportReport 导入结果报告
type ImportReport struct {
	FileName      string            `json:"file_name"`
	FileSize      int64             `json:"file_size"`
	TotalRows     int               `json:"total_rows"`
	ValidRows     int               `json:"valid_rows"`
	InvalidRows   int               `json:"invalid_rows"`
	InsertedCount int               `json:"inserted_count"`
	BatchID       string            `json:"batch_id,omitempty"`
	Errors        []ValidationError `json:"errors"`
	Failure       string            `json:"failure,omitempty"`
}

// ParsePreview 解析预览结果
type ParsePreview struct {
	FileName  string            `json:"file_name"`
	TotalRows int               `json:"total_rows"`
	Data      []ImportRow       `json:"data"`
	Errors    []ValidationError `json:"errors"`
}
