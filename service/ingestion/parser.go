/*
 * @module service/ingestion/parser
 * @description 测试数据Excel解析器，将上传的工作簿解析为待导入行与行级错误
 * @architecture 数据接入层 - 文件解析
 * @documentReference dev_docs/import_rules.md
 * @stateFlow 读取工作簿 -> 表头映射 -> 字段规范化 -> 整行校验 -> 有效行/错误分流
 * @rules 仅读取第一个工作表；未识别的表头静默丢弃；行号与Excel可见行号一致（表头为第1行）；
 *        含错误的行整体丢弃只输出错误；测试值不是JSON对象时包装为{"value": 原值}
 * @dependencies github.com/xuri/excelize/v2, github.com/spf13/cast
 * @refs service/validation, service/importer
 */

package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"pvsdm-service/service/models"
	"pvsdm-service/service/validation"

	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
)

// ColumnMapping 中文表头到内部字段名的映射
var ColumnMapping = map[string]string{
	"测试日期":  validation.FieldTestDate,
	"设备序列号": validation.FieldDeviceSN,
	"产品型号":  validation.FieldProductModel,
	"测试项目":  validation.FieldTestItem,
	"测试值":   validation.FieldTestValue,
	"测试结果":  validation.FieldResult,
	"测试人员":  validation.FieldOperator,
	"备注":    validation.FieldRemarks,
}

// headerRows 数据行之前的表头行数
const headerRows = 1

// ctxCheckInterval 每解析多少行检查一次上下文
const ctxCheckInterval = 1000

// ParseFailure 文件无法作为表格解析
type ParseFailure struct {
	Cause error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("文件解析失败: %v", e.Cause)
}

func (e *ParseFailure) Unwrap() error {
	return e.Cause
}

// ParseResult 解析结果
type ParseResult struct {
	Data      []models.ImportRow       `json:"data"`
	Errors    []models.ValidationError `json:"errors"`
	TotalRows int                      `json:"total_rows"`
	SheetName string                   `json:"sheet_name"`
}

// Parser Excel解析器
type Parser struct{}

// NewParser 创建解析器
func NewParser() *Parser {
	return &Parser{}
}

// ParseBytes 解析内存中的文件内容
func (p *Parser) ParseBytes(ctx context.Context, content []byte) (*ParseResult, error) {
	return p.Parse(ctx, bytes.NewReader(content))
}

// Parse 解析工作簿第一个工作表
func (p *Parser) Parse(ctx context.Context, r io.Reader) (*ParseResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseFailure{Cause: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseFailure{Cause: errors.New("工作簿中没有工作表")}
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &ParseFailure{Cause: fmt.Errorf("读取工作表 %s 失败: %w", sheet, err)}
	}

	result := &ParseResult{
		Data:      make([]models.ImportRow, 0),
		Errors:    make([]models.ValidationError, 0),
		SheetName: sheet,
	}
	if len(rows) == 0 {
		return result, nil
	}

	columns := mapHeader(rows[0])

	for i, cells := range rows[headerRows:] {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if isBlankRow(cells) {
			continue
		}
		result.TotalRows++

		rowIndex := i + headerRows + 1
		record := buildRecord(columns, cells)
		normalize(record)

		if errs := validation.ValidateTestRecord(record, rowIndex); len(errs) > 0 {
			result.Errors = append(result.Errors, errs...)
			continue
		}
		result.Data = append(result.Data, toImportRow(record, rowIndex))
	}

	slog.Debug("Excel解析完成",
		"sheet", sheet,
		"total_rows", result.TotalRows,
		"valid_rows", len(result.Data),
		"errors", len(result.Errors))

	return result, nil
}

// mapHeader 返回列序号到字段名的映射，未识别的列为空
func mapHeader(header []string) []string {
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = ColumnMapping[strings.TrimSpace(h)]
	}
	return columns
}

func buildRecord(columns []string, cells []string) map[string]interface{} {
	record := make(map[string]interface{}, len(columns))
	for i, field := range columns {
		if field == "" || i >= len(cells) {
			continue
		}
		record[field] = cells[i]
	}
	return record
}

// normalize 字段规范化：日期序列号转换、测试值解析、结果大写
func normalize(record map[string]interface{}) {
	for field, v := range record {
		if s, ok := v.(string); ok && field != validation.FieldTestValue {
			record[field] = strings.TrimSpace(s)
		}
	}

	if s, ok := record[validation.FieldTestDate].(string); ok && s != "" {
		record[validation.FieldTestDate] = normalizeDate(s)
	}

	if s, ok := record[validation.FieldTestValue].(string); ok {
		if strings.TrimSpace(s) == "" {
			delete(record, validation.FieldTestValue)
		} else {
			record[validation.FieldTestValue] = ParseTestValue(s)
		}
	}

	if s, ok := record[validation.FieldResult].(string); ok {
		record[validation.FieldResult] = strings.ToUpper(s)
	}
}

// normalizeDate Excel以序列号存储的日期转换为YYYY-MM-DD，其他值原样保留交给校验器
func normalizeDate(s string) string {
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return s
	}
	return t.Format(models.DateLayout)
}

// ParseTestValue 解析测试值：JSON对象直接使用，其余JSON值或纯文本包装为{"value": ...}
func ParseTestValue(raw string) models.JSONB {
	trimmed := strings.TrimSpace(raw)

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && obj != nil {
		return models.JSONB(obj)
	}

	var scalar interface{}
	if err := json.Unmarshal([]byte(trimmed), &scalar); err == nil && scalar != nil {
		return models.JSONB{"value": scalar}
	}
	return models.JSONB{"value": raw}
}

func toImportRow(record map[string]interface{}, rowIndex int) models.ImportRow {
	row := models.ImportRow{
		Row:          rowIndex,
		TestDate:     cast.ToString(record[validation.FieldTestDate]),
		DeviceSN:     cast.ToString(record[validation.FieldDeviceSN]),
		ProductModel: cast.ToString(record[validation.FieldProductModel]),
		TestItem:     cast.ToString(record[validation.FieldTestItem]),
		Result:       cast.ToString(record[validation.FieldResult]),
		Operator:     cast.ToString(record[validation.FieldOperator]),
		Remarks:      cast.ToString(record[validation.FieldRemarks]),
	}
	if v, ok := record[validation.FieldTestValue].(models.JSONB); ok {
		row.TestValue = v
	}
	return row
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
