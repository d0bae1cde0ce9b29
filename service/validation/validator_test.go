package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		wantErr bool
	}{
		{"空字符串", "", true},
		{"nil值", nil, true},
		{"空白字符串", "   ", true},
		{"有效值", "value", false},
		{"测试值对象", map[string]interface{}{"voltage": 1500}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequired(tt.value, "field")
			if tt.wantErr {
				require.NotNil(t, err)
				assert.Equal(t, "field不能为空", err.Message)
				assert.Equal(t, "field", err.Field)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestValidateDate(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantMsg string
	}{
		{"正确格式", "2025-01-15", ""},
		{"闰年2月29日", "2024-02-29", ""},
		{"斜杠分隔", "2025/01/15", "date格式不正确，应为YYYY-MM-DD"},
		{"缺少前导零", "2025-1-15", "date格式不正确，应为YYYY-MM-DD"},
		{"月份13", "2025-13-01", "date不是有效的日期"},
		{"非闰年2月29日", "2025-02-29", "date不是有效的日期"},
		{"4月31日", "2025-04-31", "date不是有效的日期"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDate(tt.value, "date")
			if tt.wantMsg == "" {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, tt.wantMsg, err.Message)
			assert.Equal(t, tt.value, err.Value)
		})
	}
}

func TestValidateDeviceSN(t *testing.T) {
	valid := []string{"PV-SD-2025-001", "PV-SD-1999-999"}
	for _, sn := range valid {
		assert.Nil(t, ValidateDeviceSN(sn), sn)
	}

	invalid := []string{"PV-2025-001", "pv-sd-2025-001", "PV-SD-25-001", "PV-SD-2025-0001", "PV-SD-2025-001 ", ""}
	for _, sn := range invalid {
		err := ValidateDeviceSN(sn)
		require.NotNil(t, err, sn)
		assert.Contains(t, err.Message, "格式不正确")
		assert.Equal(t, FieldDeviceSN, err.Field)
	}
}

func TestValidateNumberRange(t *testing.T) {
	assert.Nil(t, ValidateNumberRange(50, 0, 100, "value"))
	assert.Nil(t, ValidateNumberRange(0, 0, 100, "value"), "下界包含")
	assert.Nil(t, ValidateNumberRange(100, 0, 100, "value"), "上界包含")

	err := ValidateNumberRange(-10, 0, 100, "value")
	require.NotNil(t, err)
	assert.Equal(t, "value应在0到100之间", err.Message)

	assert.NotNil(t, ValidateNumberRange(150, 0, 100, "value"))
}

func TestValidateTestRecord(t *testing.T) {
	t.Run("有效记录", func(t *testing.T) {
		record := map[string]interface{}{
			"test_date":     "2025-01-15",
			"device_sn":     "PV-SD-2025-001",
			"product_model": "PV-1500",
			"test_item":     "耐压测试",
			"result":        "PASS",
		}
		assert.Empty(t, ValidateTestRecord(record, 2))
	})

	t.Run("结果大小写不敏感", func(t *testing.T) {
		record := map[string]interface{}{
			"test_date":     "2025-01-15",
			"device_sn":     "PV-SD-2025-001",
			"product_model": "PV-1500",
			"test_item":     "耐压测试",
			"result":        "fail",
		}
		assert.Empty(t, ValidateTestRecord(record, 2))
	})

	t.Run("错误不中断且全部标注行号", func(t *testing.T) {
		record := map[string]interface{}{
			"test_date":     "2025-13-01",
			"device_sn":     "INVALID",
			"product_model": "",
			"test_item":     nil,
			"result":        "INVALID",
		}
		errs := ValidateTestRecord(record, 1)
		require.Len(t, errs, 5)

		fields := make([]string, 0, len(errs))
		for _, e := range errs {
			assert.Equal(t, 1, e.Row)
			fields = append(fields, e.Field)
		}
		assert.Equal(t, []string{"product_model", "test_item", "test_date", "device_sn", "result"}, fields)
		assert.Equal(t, "test_date不是有效的日期", errs[2].Message)
		assert.Equal(t, "测试结果必须是PASS或FAIL", errs[4].Message)
	})

	t.Run("每个缺失字段一条错误", func(t *testing.T) {
		errs := ValidateTestRecord(map[string]interface{}{}, 7)
		require.Len(t, errs, len(RequiredFields))
		for i, field := range RequiredFields {
			assert.Equal(t, field, errs[i].Field)
			assert.Equal(t, 7, errs[i].Row)
		}
	})
}

func TestValidateFileType(t *testing.T) {
	assert.True(t, ValidateFileType("test.xls", "application/vnd.ms-excel"))
	assert.True(t, ValidateFileType("test.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.True(t, ValidateFileType("TEST.XLSX", ""))
	assert.True(t, ValidateFileType("upload.bin", "application/vnd.ms-excel"))
	assert.False(t, ValidateFileType("test.pdf", "application/pdf"))
	assert.False(t, ValidateFileType("test.csv", ""))
}

func TestValidateFileSize(t *testing.T) {
	assert.True(t, ValidateFileSize(1024*1024, 10))
	assert.True(t, ValidateFileSize(50*1024*1024, 0))
	assert.False(t, ValidateFileSize(60*1024*1024, 50))
}
