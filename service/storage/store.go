/*
 * @module service/storage/store
 * @description 存储契约定义，业务层通过 select/insert/update/delete 四类操作访问数据
 * @architecture 数据访问层 - 接口抽象
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 业务请求 -> SelectQuery/行数据 -> 存储实现 -> 结果/错误
 * @rules 存储层负责超时与关联数据填充，业务层不做重试
 * @dependencies context
 * @refs service/storage/gorm_store.go, service/query, service/importer
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("记录不存在")

// 谓词操作符
const (
	OpEq    = "eq"
	OpNeq   = "neq"
	OpGt    = "gt"
	OpGte   = "gte"
	OpLt    = "lt"
	OpLte   = "lte"
	OpILike = "ilike"
	OpIn    = "in"
)

// Predicate 单个过滤条件
type Predicate struct {
	Field string
	Op    string
	Value interface{}
}

// OrderBy 排序条件
type OrderBy struct {
	Field string
	Desc  bool
}

// SelectQuery 查询描述
// Limit<=0 表示不限制条数；Count 为 true 时返回过滤后的总数而不是本页条数
type SelectQuery struct {
	Predicates []Predicate
	Order      []OrderBy
	Offset     int
	Limit      int
	Preload    []string
	Count      bool
}

// Where 追加过滤条件
func (q *SelectQuery) Where(field, op string, value interface{}) *SelectQuery {
	q.Predicates = append(q.Predicates, Predicate{Field: field, Op: op, Value: value})
	return q
}

// OrderByField 追加排序条件
func (q *SelectQuery) OrderByField(field string, desc bool) *SelectQuery {
	q.Order = append(q.Order, OrderBy{Field: field, Desc: desc})
	return q
}

// Store 存储契约
type Store interface {
	// Select 按查询描述读取数据到 dest（切片指针），返回总数
	Select(ctx context.Context, table string, q *SelectQuery, dest interface{}) (int64, error)
	// Insert 插入 rows（切片指针或结构体指针），插入后的数据回填到 rows
	Insert(ctx context.Context, table string, rows interface{}) error
	// Update 按ID更新字段，dest 非空时回填更新后的数据
	Update(ctx context.Context, table, id string, patch map[string]interface{}, dest interface{}) error
	// Delete 按ID删除
	Delete(ctx context.Context, table, id string) error
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// checkIdent 校验表名和字段名，防止拼接SQL注入
func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("非法的标识符: %q", name)
	}
	return nil
}
