/*
 * @module service/query/builder
 * @description 测试记录查询构造器，将过滤、排序、分页参数组合为存储查询并执行
 * @architecture 业务服务层 - 查询组合
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 查询参数 -> 谓词/排序/分页 -> 存储契约 -> {data, total}
 * @rules 日期范围按整日包含；设备序列号子串匹配不区分大小写；排序字段白名单；
 *        offset=(page-1)*limit，区间为[offset, offset+limit-1]；参数非法返回InvalidQueryError，
 *        存储失败返回空结果与QueryFailure；LIKE 通配符按字面匹配
 * @dependencies pvsdm-service/service/storage
 * @refs service/statistics, api/controllers/record_controller.go
 */

package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pvsdm-service/service/models"
	"pvsdm-service/service/storage"
)

// SortableFields 允许排序的字段
var SortableFields = map[string]bool{
	"test_date":    true,
	"device_sn":    true,
	"product_id":   true,
	"test_item_id": true,
	"result":       true,
	"operator_id":  true,
	"batch_id":     true,
	"created_at":   true,
	"updated_at":   true,
}

// recordPreloads 读取时填充的关联
var recordPreloads = []string{"Product", "TestItem"}

// QueryFailure 查询失败
type QueryFailure struct {
	Op    string
	Cause error
}

func (e *QueryFailure) Error() string {
	return fmt.Sprintf("%s失败: %v", e.Op, e.Cause)
}

func (e *QueryFailure) Unwrap() error {
	return e.Cause
}

// InvalidQueryError 查询参数非法，属于调用方输入错误
type InvalidQueryError struct {
	Field   string
	Value   string
	Message string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Value)
}

// Builder 查询构造器
type Builder struct {
	filters    models.QueryFilters
	sort       models.SortParams
	pagination *models.PaginationParams
	preload    bool
}

// NewBuilder 创建查询构造器，默认测试日期倒序
func NewBuilder() *Builder {
	return &Builder{sort: models.DefaultSort(), preload: true}
}

// Filter 设置过滤条件
func (b *Builder) Filter(filters models.QueryFilters) *Builder {
	b.filters = filters
	return b
}

// Sort 设置排序，字段为空时保持默认排序
func (b *Builder) Sort(sort models.SortParams) *Builder {
	if sort.Field != "" {
		b.sort = sort
	}
	return b
}

// Paginate 设置分页，limit<=0 时不分页
func (b *Builder) Paginate(p models.PaginationParams) *Builder {
	if p.Limit > 0 {
		if p.Page < 1 {
			p.Page = 1
		}
		b.pagination = &p
	}
	return b
}

// WithoutRelations 不加载关联，统计场景使用
func (b *Builder) WithoutRelations() *Builder {
	b.preload = false
	return b
}

// Build 生成存储查询
func (b *Builder) Build() (*storage.SelectQuery, error) {
	q := &storage.SelectQuery{Count: true}
	f := b.filters

	if f.DateFrom != "" {
		from, err := time.Parse(models.DateLayout, f.DateFrom)
		if err != nil {
			return nil, &InvalidQueryError{Field: "date_from", Value: f.DateFrom, Message: "开始日期格式不正确"}
		}
		q.Where("test_date", storage.OpGte, from.UTC())
	}
	if f.DateTo != "" {
		to, err := time.Parse(models.DateLayout, f.DateTo)
		if err != nil {
			return nil, &InvalidQueryError{Field: "date_to", Value: f.DateTo, Message: "结束日期格式不正确"}
		}
		// 结束日期包含当天
		q.Where("test_date", storage.OpLt, to.UTC().AddDate(0, 0, 1))
	}
	if sn := strings.TrimSpace(f.DeviceSN); sn != "" {
		q.Where("device_sn", storage.OpILike, "%"+escapeLike(sn)+"%")
	}
	if f.ProductID != "" {
		q.Where("product_id", storage.OpEq, f.ProductID)
	}
	if f.TestItemID != "" {
		q.Where("test_item_id", storage.OpEq, f.TestItemID)
	}
	if f.Result != "" {
		q.Where("result", storage.OpEq, strings.ToUpper(f.Result))
	}
	if f.BatchID != "" {
		q.Where("batch_id", storage.OpEq, f.BatchID)
	}

	field := b.sort.Field
	if !SortableFields[field] {
		return nil, &InvalidQueryError{Field: "sort", Value: field, Message: "不支持的排序字段"}
	}
	order := strings.ToLower(b.sort.Order)
	if order != models.SortAsc && order != models.SortDesc && order != "" {
		return nil, &InvalidQueryError{Field: "order", Value: b.sort.Order, Message: "不支持的排序方向"}
	}
	q.OrderByField(field, order != models.SortAsc)
	if field != "created_at" {
		// 同一排序值下保持稳定顺序
		q.OrderByField("created_at", true)
	}

	if b.pagination != nil {
		from, to := b.pagination.Range()
		q.Offset = from
		q.Limit = to - from + 1
	}
	if b.preload {
		q.Preload = recordPreloads
	}
	return q, nil
}

// likeEscaper 转义 LIKE 通配符，配合存储层 ESCAPE '\' 使用
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// RecordQuery 测试记录查询执行器
type RecordQuery struct {
	store storage.Store
}

// NewRecordQuery 创建测试记录查询执行器
func NewRecordQuery(store storage.Store) *RecordQuery {
	return &RecordQuery{store: store}
}

// Execute 执行分页查询，失败时返回空结果与 InvalidQueryError 或 QueryFailure
func (q *RecordQuery) Execute(ctx context.Context, filters models.QueryFilters, sort models.SortParams, page models.PaginationParams) (*models.RecordPage, error) {
	return q.Run(ctx, NewBuilder().Filter(filters).Sort(sort).Paginate(page))
}

// Run 执行构造好的查询
func (q *RecordQuery) Run(ctx context.Context, b *Builder) (*models.RecordPage, error) {
	empty := &models.RecordPage{Data: []models.TestRecord{}, Total: 0}

	sq, err := b.Build()
	if err != nil {
		return empty, err
	}

	records := make([]models.TestRecord, 0)
	total, err := q.store.Select(ctx, models.TableTestRecords, sq, &records)
	if err != nil {
		slog.Error("查询测试记录失败", "error", err)
		return empty, &QueryFailure{Op: "查询测试记录", Cause: err}
	}
	return &models.RecordPage{Data: records, Total: total}, nil
}

// All 不分页读取全部满足条件的记录，统计场景使用
func (q *RecordQuery) All(ctx context.Context, filters models.QueryFilters, withRelations bool) ([]models.TestRecord, error) {
	b := NewBuilder().Filter(filters)
	if !withRelations {
		b.WithoutRelations()
	}
	page, err := q.Run(ctx, b)
	if err != nil {
		return nil, err
	}
	return page.Data, nil
}
