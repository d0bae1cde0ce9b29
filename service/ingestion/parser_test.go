package ingestion

import (
	"context"
	"errors"
	"testing"

	"pvsdm-service/service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFile(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	content, err := WorkbookBytes(rows)
	require.NoError(t, err)
	return content
}

func TestParser_Template(t *testing.T) {
	content, err := BuildTemplate()
	require.NoError(t, err)

	result, err := NewParser().ParseBytes(context.Background(), content)
	require.NoError(t, err)

	assert.Equal(t, TemplateSheet, result.SheetName)
	assert.Equal(t, 2, result.TotalRows)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Data, 2)

	first := result.Data[0]
	assert.Equal(t, 2, first.Row)
	assert.Equal(t, "2025-01-15", first.TestDate)
	assert.Equal(t, "PV-SD-2025-001", first.DeviceSN)
	assert.Equal(t, "PV-1500", first.ProductModel)
	assert.Equal(t, "耐压测试", first.TestItem)
	assert.Equal(t, "PASS", first.Result)
	assert.Equal(t, "张三", first.Operator)
	assert.Equal(t, "测试正常", first.Remarks)
	assert.Equal(t, float64(1500), first.TestValue["voltage"])
	assert.Equal(t, float64(60), first.TestValue["duration"])

	second := result.Data[1]
	assert.Equal(t, 3, second.Row)
	assert.Equal(t, "绝缘电阻测试", second.TestItem)
	assert.Equal(t, float64(1000), second.TestValue["resistance"])
}

func TestParser_RowOrderAndLineNumbers(t *testing.T) {
	content := buildFile(t, [][]interface{}{
		{"2025-01-15", "PV-SD-2025-001", "PV-1500", "耐压测试", "", "pass", "张三", ""},
		{"2025-01-15", "BAD-SN", "PV-1500", "耐压测试", "", "PASS", "张三", ""},
		{" "},
		{"2025-02-30", "PV-SD-2025-003", "PV-1500", "耐压测试", "", "FAIL", "张三", ""},
		{"2025-01-16", "PV-SD-2025-004", "PV-1500", "绝缘电阻测试", "", "FAIL", "李四", ""},
	})

	result, err := NewParser().ParseBytes(context.Background(), content)
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalRows, "空白行不计入总行数")
	require.Len(t, result.Data, 2)
	assert.Equal(t, "PV-SD-2025-001", result.Data[0].DeviceSN)
	assert.Equal(t, "PASS", result.Data[0].Result, "测试结果统一转为大写")
	assert.Equal(t, 2, result.Data[0].Row)
	assert.Equal(t, "PV-SD-2025-004", result.Data[1].DeviceSN)
	assert.Equal(t, 6, result.Data[1].Row, "空白行保留行号")

	require.Len(t, result.Errors, 2)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Equal(t, "device_sn", result.Errors[0].Field)
	assert.Equal(t, 5, result.Errors[1].Row)
	assert.Equal(t, "test_date", result.Errors[1].Field)
	assert.Equal(t, "test_date不是有效的日期", result.Errors[1].Message)
}

func TestParser_TestValueCoercion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want models.JSONB
	}{
		{"JSON对象", `{"voltage": 1500}`, models.JSONB{"voltage": float64(1500)}},
		{"纯文本", "外观良好", models.JSONB{"value": "外观良好"}},
		{"数字", "42.5", models.JSONB{"value": 42.5}},
		{"非法JSON", `{"voltage": `, models.JSONB{"value": `{"voltage": `}},
		{"JSON数组", "[1, 2]", models.JSONB{"value": []interface{}{float64(1), float64(2)}}},
		{"布尔值", "true", models.JSONB{"value": true}},
		{"null按文本保留", "null", models.JSONB{"value": "null"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTestValue(tt.raw))
		})
	}
}

func TestParser_PlainTextTestValueAccepted(t *testing.T) {
	content := buildFile(t, [][]interface{}{
		{"2025-01-15", "PV-SD-2025-001", "PV-1500", "外观检查", "外观良好", "PASS", "张三", ""},
	})

	result, err := NewParser().ParseBytes(context.Background(), content)
	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	assert.Equal(t, models.JSONB{"value": "外观良好"}, result.Data[0].TestValue)
}

func TestParser_ExcelDateSerial(t *testing.T) {
	content := buildFile(t, [][]interface{}{
		{45672, "PV-SD-2025-001", "PV-1500", "耐压测试", "", "PASS", "张三", ""},
	})

	result, err := NewParser().ParseBytes(context.Background(), content)
	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "2025-01-15", result.Data[0].TestDate)
}

func TestParser_UnknownHeadersDropped(t *testing.T) {
	content := buildFile(t, nil)
	// 仅有表头的文件
	result, err := NewParser().ParseBytes(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalRows)
	assert.Empty(t, result.Data)
	assert.Empty(t, result.Errors)

	assert.Equal(t, "", mapHeader([]string{"未知列"})[0])
	assert.Equal(t, []string{"test_date", "", "device_sn"}, mapHeader([]string{" 测试日期 ", "扩展信息", "设备序列号"}))

	record := buildRecord([]string{"test_date", "", "device_sn"}, []string{"2025-01-15", "忽略", "PV-SD-2025-001"})
	assert.Equal(t, map[string]interface{}{"test_date": "2025-01-15", "device_sn": "PV-SD-2025-001"}, record)
}

func TestParser_MissingFieldsReported(t *testing.T) {
	content := buildFile(t, [][]interface{}{
		{"2025-13-01", "INVALID", "", "", "", "INVALID", "", ""},
	})

	result, err := NewParser().ParseBytes(context.Background(), content)
	require.NoError(t, err)
	assert.Empty(t, result.Data)
	require.Len(t, result.Errors, 5)
	for _, e := range result.Errors {
		assert.Equal(t, 2, e.Row)
	}
}

func TestParser_ParseFailure(t *testing.T) {
	_, err := NewParser().ParseBytes(context.Background(), []byte("这不是一个Excel文件"))
	require.Error(t, err)

	var failure *ParseFailure
	assert.True(t, errors.As(err, &failure))
	assert.Contains(t, err.Error(), "文件解析失败")
}

func TestParser_ContextCancelled(t *testing.T) {
	content := buildFile(t, [][]interface{}{
		{"2025-01-15", "PV-SD-2025-001", "PV-1500", "耐压测试", "", "PASS", "张三", ""},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser().ParseBytes(ctx, content)
	assert.ErrorIs(t, err, context.Canceled)
}
