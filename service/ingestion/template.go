package ingestion

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// TemplateFileName 导入模板下载文件名
const TemplateFileName = "测试数据导入模板.xlsx"

// TemplateSheet 模板工作表名
const TemplateSheet = "测试数据"

// TemplateHeaders 模板表头，顺序即列顺序
var TemplateHeaders = []string{"测试日期", "设备序列号", "产品型号", "测试项目", "测试值", "测试结果", "测试人员", "备注"}

var templateColWidths = []float64{12, 20, 15, 15, 20, 10, 12, 30}

var templateSamples = [][]interface{}{
	{"2025-01-15", "PV-SD-2025-001", "PV-1500", "耐压测试", `{"voltage": 1500, "duration": 60}`, "PASS", "张三", "测试正常"},
	{"2025-01-15", "PV-SD-2025-002", "PV-1500", "绝缘电阻测试", `{"resistance": 1000}`, "PASS", "李四", ""},
}

// BuildWorkbook 按模板表头生成工作簿，rows 为数据行
func BuildWorkbook(rows [][]interface{}) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", TemplateSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("设置工作表名称失败: %w", err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})

	header := make([]interface{}, len(TemplateHeaders))
	for i, h := range TemplateHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(TemplateSheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("写入表头失败: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(TemplateHeaders))
	f.SetCellStyle(TemplateSheet, "A1", lastCol+"1", headerStyle)

	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		values := row
		if err := f.SetSheetRow(TemplateSheet, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("写入第%d行失败: %w", i+2, err)
		}
	}

	for i, w := range templateColWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(TemplateSheet, col, col, w)
	}

	return f, nil
}

// BuildTemplate 生成带示例数据的导入模板
func BuildTemplate() ([]byte, error) {
	return WorkbookBytes(templateSamples)
}

// WorkbookBytes 将数据行写成工作簿字节，便于测试和预览
func WorkbookBytes(rows [][]interface{}) ([]byte, error) {
	f, err := BuildWorkbook(rows)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("写入工作簿失败: %w", err)
	}
	return buf.Bytes(), nil
}
