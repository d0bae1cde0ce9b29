/*
 * @module service/validation/validator
 * @description 测试记录行校验器，提供必填、日期、设备序列号、数值范围和整行校验
 * @architecture 工具层 - 无状态纯函数
 * @documentReference dev_docs/import_rules.md
 * @stateFlow 原始行 -> 字段校验 -> 错误列表
 * @rules 整行校验收集全部错误不中断，必填错误在前，格式错误在后；校验器不修改输入
 * @dependencies regexp, time, github.com/spf13/cast
 * @refs service/ingestion, service/models/import.go
 */

package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"pvsdm-service/service/models"

	"github.com/spf13/cast"
)

// 整行校验涉及的字段
const (
	FieldTestDate     = "test_date"
	FieldDeviceSN     = "device_sn"
	FieldProductModel = "product_model"
	FieldTestItem     = "test_item"
	FieldTestValue    = "test_value"
	FieldResult       = "result"
	FieldOperator     = "operator"
	FieldRemarks      = "remarks"
)

// RequiredFields 必填字段，按校验顺序排列
var RequiredFields = []string{FieldTestDate, FieldDeviceSN, FieldProductModel, FieldTestItem, FieldResult}

var (
	datePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	deviceSNPattern = regexp.MustCompile(`^PV-SD-\d{4}-\d{3}$`)
)

// ValidateRequired 必填校验，nil 和空白字符串视为缺失
func ValidateRequired(value interface{}, field string) *models.ValidationError {
	if isBlank(value) {
		return &models.ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("%s不能为空", field),
		}
	}
	return nil
}

// ValidateDate 日期校验，格式不符与日期不存在返回不同的错误信息
func ValidateDate(value, field string) *models.ValidationError {
	if !datePattern.MatchString(value) {
		return &models.ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("%s格式不正确，应为YYYY-MM-DD", field),
		}
	}
	if _, err := time.Parse(models.DateLayout, value); err != nil {
		return &models.ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("%s不是有效的日期", field),
		}
	}
	return nil
}

// ValidateDeviceSN 设备序列号校验，区分大小写
func ValidateDeviceSN(value string) *models.ValidationError {
	if !deviceSNPattern.MatchString(value) {
		return &models.ValidationError{
			Field:   FieldDeviceSN,
			Value:   value,
			Message: "设备序列号格式不正确，应为PV-SD-YYYY-XXX",
		}
	}
	return nil
}

// ValidateNumberRange 数值闭区间校验
func ValidateNumberRange(value, min, max float64, field string) *models.ValidationError {
	if value < min || value > max {
		return &models.ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("%s应在%s到%s之间", field, cast.ToString(min), cast.ToString(max)),
		}
	}
	return nil
}

// ValidateResult 测试结果枚举校验，大小写不敏感
func ValidateResult(value string) *models.ValidationError {
	upper := strings.ToUpper(strings.TrimSpace(value))
	if upper != models.ResultPass && upper != models.ResultFail {
		return &models.ValidationError{
			Field:   FieldResult,
			Value:   value,
			Message: "测试结果必须是PASS或FAIL",
		}
	}
	return nil
}

// ValidateTestRecord 整行校验，返回该行全部错误并标注行号
func ValidateTestRecord(record map[string]interface{}, rowIndex int) []models.ValidationError {
	errs := make([]models.ValidationError, 0)
	add := func(e *models.ValidationError) {
		if e != nil {
			e.Row = rowIndex
			errs = append(errs, *e)
		}
	}

	for _, field := range RequiredFields {
		add(ValidateRequired(record[field], field))
	}

	if v := record[FieldTestDate]; !isBlank(v) {
		add(ValidateDate(cast.ToString(v), FieldTestDate))
	}
	if v := record[FieldDeviceSN]; !isBlank(v) {
		add(ValidateDeviceSN(cast.ToString(v)))
	}
	if v := record[FieldResult]; !isBlank(v) {
		add(ValidateResult(cast.ToString(v)))
	}

	return errs
}

func isBlank(value interface{}) bool {
	if value == nil {
		return true
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		// 非标量（如测试值对象）只要存在即视为已填写
		return false
	}
	return strings.TrimSpace(s) == ""
}
