/*
 * @module service/database/migrate
 * @description 数据库迁移模块，负责创建和更新数据库表结构并初始化基础数据
 * @architecture 数据访问层 - 迁移管理
 * @documentReference dev_docs/model.md
 * @stateFlow 应用启动时执行数据库迁移 -> 初始化默认产品与测试项目 -> (可选)安装变更通知触发器
 * @rules 确保数据库结构与模型定义保持一致；基础数据按唯一编码幂等写入，不覆盖已有数据
 * @dependencies pvsdm-service/service/models, gorm.io/gorm
 * @refs service/init.go, service/event/pg_listener.go
 */

package database

import (
	"log"

	"pvsdm-service/service/event"
	"pvsdm-service/service/models"

	"gorm.io/gorm"
)

// ChangeTables 需要变更通知的表
var ChangeTables = []string{
	models.TableTestRecords,
	models.TableProducts,
	models.TableTestItems,
}

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	log.Println("开始数据库迁移...")

	err := db.AutoMigrate(
		&models.Product{},
		&models.TestItem{},
		&models.TestRecord{},
	)
	if err != nil {
		return err
	}

	log.Println("数据库迁移完成")
	return nil
}

// InitializeData 初始化基础数据
func InitializeData(db *gorm.DB) error {
	log.Println("开始初始化基础数据...")

	for _, product := range defaultProducts() {
		result := db.Where("model = ?", product.Model).FirstOrCreate(&product)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			log.Printf("已创建默认产品: %s", product.Model)
		}
	}

	for _, item := range defaultTestItems() {
		result := db.Where("code = ?", item.Code).FirstOrCreate(&item)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			log.Printf("已创建默认测试项目: %s %s", item.Code, item.Name)
		}
	}

	log.Println("基础数据初始化完成")
	return nil
}

// InstallChangeTriggers 安装变更通知触发器，仅PostgreSQL支持
func InstallChangeTriggers(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		log.Printf("数据库 %s 不支持变更通知触发器，跳过", db.Dialector.Name())
		return nil
	}
	return event.InstallTriggers(db, ChangeTables...)
}

func defaultProducts() []models.Product {
	return []models.Product{
		{Model: "PV-1500", Name: "光伏关断器1500V", Category: "高压型"},
		{Model: "PV-1000", Name: "光伏关断器1000V", Category: "标准型"},
	}
}

func defaultTestItems() []models.TestItem {
	standard := "IEC 60947-3"
	return []models.TestItem{
		{
			Code:         "TEST-001",
			Name:         "耐压测试",
			Category:     "电气性能",
			StandardRef:  &standard,
			Unit:         strPtr("V"),
			PassCriteria: models.JSONB{"min_voltage": 1500, "duration": 60},
			IsActive:     true,
		},
		{
			Code:         "TEST-002",
			Name:         "绝缘电阻测试",
			Category:     "电气性能",
			StandardRef:  &standard,
			Unit:         strPtr("MΩ"),
			PassCriteria: models.JSONB{"min_resistance": 500},
			IsActive:     true,
		},
		{
			Code:         "TEST-003",
			Name:         "温升测试",
			Category:     "环境适应性",
			StandardRef:  &standard,
			Unit:         strPtr("°C"),
			PassCriteria: models.JSONB{"max_temperature": 85},
			IsActive:     true,
		},
	}
}

func strPtr(s string) *string { return &s }
