/*
 * @module service/storage/gorm_store
 * @description 基于 GORM 的存储契约实现，生产使用 PostgreSQL，测试使用 SQLite
 * @architecture 数据访问层 - 存储实现
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow SelectQuery -> GORM 链式查询 -> 数据库
 * @rules 计数与分页查询分别从同一过滤条件重新构建；ilike 使用 LOWER LIKE 以兼容两种数据库
 * @dependencies gorm.io/gorm
 * @refs service/storage/store.go
 */

package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore GORM 存储实现
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建 GORM 存储
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB 返回底层连接
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Ping 检查数据库连通性
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("获取数据库连接失败: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Select 查询数据
func (s *GormStore) Select(ctx context.Context, table string, q *SelectQuery, dest interface{}) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	if q == nil {
		q = &SelectQuery{}
	}

	base := func() (*gorm.DB, error) {
		tx := s.db.WithContext(ctx).Table(table)
		for _, p := range q.Predicates {
			var err error
			if tx, err = applyPredicate(tx, p); err != nil {
				return nil, err
			}
		}
		return tx, nil
	}

	var total int64
	if q.Count {
		tx, err := base()
		if err != nil {
			return 0, err
		}
		if err := tx.Count(&total).Error; err != nil {
			return 0, fmt.Errorf("统计 %s 失败: %w", table, err)
		}
	}

	tx, err := base()
	if err != nil {
		return 0, err
	}
	for _, rel := range q.Preload {
		tx = tx.Preload(rel)
	}
	for _, o := range q.Order {
		if err := checkIdent(o.Field); err != nil {
			return 0, err
		}
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Field}, Desc: o.Desc})
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	result := tx.Find(dest)
	if result.Error != nil {
		return 0, fmt.Errorf("查询 %s 失败: %w", table, result.Error)
	}
	if !q.Count {
		total = result.RowsAffected
	}
	return total, nil
}

func applyPredicate(tx *gorm.DB, p Predicate) (*gorm.DB, error) {
	if err := checkIdent(p.Field); err != nil {
		return nil, err
	}
	switch p.Op {
	case OpEq:
		return tx.Where(p.Field+" = ?", p.Value), nil
	case OpNeq:
		return tx.Where(p.Field+" <> ?", p.Value), nil
	case OpGt:
		return tx.Where(p.Field+" > ?", p.Value), nil
	case OpGte:
		return tx.Where(p.Field+" >= ?", p.Value), nil
	case OpLt:
		return tx.Where(p.Field+" < ?", p.Value), nil
	case OpLte:
		return tx.Where(p.Field+" <= ?", p.Value), nil
	case OpILike:
		// 调用方以反斜杠转义字面 % 和 _
		return tx.Where("LOWER("+p.Field+") LIKE LOWER(?) ESCAPE '\\'", p.Value), nil
	case OpIn:
		return tx.Where(p.Field+" IN ?", p.Value), nil
	default:
		return nil, fmt.Errorf("不支持的操作符: %s", p.Op)
	}
}

// Insert 插入数据，关联对象不随主记录写入
func (s *GormStore) Insert(ctx context.Context, table string, rows interface{}) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Table(table).Omit(clause.Associations).Create(rows).Error; err != nil {
		return fmt.Errorf("写入 %s 失败: %w", table, err)
	}
	return nil
}

// Update 按ID更新
func (s *GormStore) Update(ctx context.Context, table, id string, patch map[string]interface{}, dest interface{}) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	for field := range patch {
		if err := checkIdent(field); err != nil {
			return err
		}
	}

	result := s.db.WithContext(ctx).Table(table).Where("id = ?", id).Updates(patch)
	if result.Error != nil {
		return fmt.Errorf("更新 %s 失败: %w", table, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	if dest == nil {
		return nil
	}
	if err := s.db.WithContext(ctx).Table(table).Where("id = ?", id).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("读取 %s 失败: %w", table, err)
	}
	return nil
}

// Delete 按ID删除
func (s *GormStore) Delete(ctx context.Context, table, id string) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Exec("DELETE FROM "+table+" WHERE id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("删除 %s 失败: %w", table, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
