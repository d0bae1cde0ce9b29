package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONB 开放结构的JSON列，测试值、产品规格、测试项目参数与判定标准均使用该类型
type JSONB map[string]interface{}

// Scan 实现 sql.Scanner，兼容 postgres jsonb 返回的 []byte 和 sqlite 返回的 string
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("类型断言失败: 不是 []byte 或 string")
	}
	if len(bytes) == 0 {
		*j = JSONB{}
		return nil
	}
	// 复用的 map 会保留旧键，先置空
	*j = nil
	return json.Unmarshal(bytes, j)
}

// Value 实现 driver.Valuer，空值写入 {} 以满足非空约束
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
