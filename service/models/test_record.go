/*
 * @module service/models/test_record
 * @description 质量测试记录、产品、测试项目数据模型
 * @architecture 数据模型层
 * @documentReference dev_docs/model.md
 * @stateFlow 导入/手工录入 -> 持久化 -> 查询/统计
 * @rules 测试日期只保留日历日（UTC零点），测试值为开放JSON结构，关联对象仅在读取时填充
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/storage, service/query
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 测试结果
const (
	ResultPass = "PASS"
	ResultFail = "FAIL"
)

// 表名常量，存储契约和事件通知均以表名区分数据
const (
	TableTestRecords = "test_records"
	TableProducts    = "products"
	TableTestItems   = "test_items"
)

// DateLayout 日历日期格式
const DateLayout = "2006-01-02"

// Product 产品模型
type Product struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Model          string    `gorm:"size:100;not null;uniqueIndex" json:"model"`
	Name           string    `gorm:"size:200;not null" json:"name"`
	Manufacturer   *string   `gorm:"size:200" json:"manufacturer,omitempty"`
	Category       string    `gorm:"size:100;index" json:"category"`
	Specifications JSONB     `gorm:"type:jsonb" json:"specifications,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Product) TableName() string {
	return TableProducts
}

// BeforeCreate 创建前钩子
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// TestItem 测试项目模型
type TestItem struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Code         string    `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name         string    `gorm:"size:200;not null" json:"name"`
	Category     string    `gorm:"size:100;index" json:"category"`
	StandardRef  *string   `gorm:"size:200" json:"standard_ref,omitempty"`
	Unit         *string   `gorm:"size:50" json:"unit,omitempty"`
	Parameters   JSONB     `gorm:"type:jsonb" json:"parameters,omitempty"`
	PassCriteria JSONB     `gorm:"type:jsonb" json:"pass_criteria,omitempty"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (TestItem) TableName() string {
	return TableTestItems
}

// BeforeCreate 创建前钩子
func (t *TestItem) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// TestRecord 质量测试记录
type TestRecord struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TestDate   time.Time `gorm:"not null;index" json:"test_date"`
	DeviceSN   string    `gorm:"column:device_sn;size:50;not null;index" json:"device_sn"`
	ProductID  string    `gorm:"size:36;not null;index" json:"product_id"`
	TestItemID string    `gorm:"size:36;not null;index" json:"test_item_id"`
	TestValue  JSONB     `gorm:"type:jsonb" json:"test_value"`
	Result     string    `gorm:"size:10;not null;index" json:"result"`
	OperatorID string    `gorm:"size:100;not null" json:"operator_id"`
	BatchID    *string   `gorm:"size:100;index" json:"batch_id,omitempty"`
	Remarks    *string   `gorm:"type:text" json:"remarks,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// 读取时关联填充，不参与写入
	Product  *Product  `gorm:"foreignKey:ProductID;references:ID" json:"product,omitempty"`
	TestItem *TestItem `gorm:"foreignKey:TestItemID;references:ID" json:"test_item,omitempty"`
}

// TableName 指定表名
func (TestRecord) TableName() string {
	return TableTestRecords
}

// BeforeCreate 创建前钩子
func (r *TestRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.TestDate = CalendarDate(r.TestDate)
	return nil
}

// DateString 返回测试日期的 YYYY-MM-DD 表示
func (r *TestRecord) DateString() string {
	return r.TestDate.Format(DateLayout)
}

// CalendarDate 截断为UTC零点的日历日
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EventPayload 变更事件中携带的记录摘要
func (r *TestRecord) EventPayload() map[string]interface{} {
	return map[string]interface{}{
		"id":           r.ID,
		"test_date":    r.DateString(),
		"device_sn":    r.DeviceSN,
		"product_id":   r.ProductID,
		"test_item_id": r.TestItemID,
		"result":       r.Result,
	}
}
