/*
 * @module service/records/catalog_service
 * @description 产品与测试项目基础数据服务，供导入解析、下拉选择和基础数据维护使用
 * @architecture 业务服务层 - 基础数据管理
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 请求参数 -> 校验 -> 存储契约 -> 变更事件
 * @rules 产品按创建时间倒序；测试项目列表仅包含启用项目，按分类、名称排序；分类去重
 * @dependencies pvsdm-service/service/storage
 * @refs api/controllers/product_controller.go, api/controllers/test_item_controller.go
 */

package records

import (
	"context"
	"log/slog"

	"pvsdm-service/service/models"
	"pvsdm-service/service/storage"
)

// ProductPatch 修改产品，nil 字段保持不变
type ProductPatch struct {
	Model          *string      `json:"model,omitempty"`
	Name           *string      `json:"name,omitempty"`
	Manufacturer   *string      `json:"manufacturer,omitempty"`
	Category       *string      `json:"category,omitempty"`
	Specifications models.JSONB `json:"specifications,omitempty"`
}

// ProductService 产品服务
type ProductService struct {
	store     storage.Store
	publisher Publisher
}

// NewProductService 创建产品服务
func NewProductService(store storage.Store, publisher Publisher) *ProductService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &ProductService{store: store, publisher: publisher}
}

// List 产品列表，按创建时间倒序
func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	q := (&storage.SelectQuery{}).OrderByField("created_at", true)
	products := make([]models.Product, 0)
	if _, err := s.store.Select(ctx, models.TableProducts, q, &products); err != nil {
		return []models.Product{}, &QueryFailure{Op: "查询产品列表", Cause: err}
	}
	return products, nil
}

// Get 按ID获取产品
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	var products []models.Product
	q := (&storage.SelectQuery{Limit: 1}).Where("id", storage.OpEq, id)
	if _, err := s.store.Select(ctx, models.TableProducts, q, &products); err != nil {
		return nil, &QueryFailure{Op: "查询产品", Cause: err}
	}
	if len(products) == 0 {
		return nil, &QueryFailure{Op: "查询产品", Cause: storage.ErrNotFound}
	}
	return &products[0], nil
}

// Create 新建产品
func (s *ProductService) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	errs := collect(
		requireField(product.Model, "model", "产品型号"),
		requireField(product.Name, "name", "产品名称"),
	)
	if len(errs) > 0 {
		return nil, &InputError{Errors: errs}
	}
	if product.Specifications == nil {
		product.Specifications = models.JSONB{}
	}

	if err := s.store.Insert(ctx, models.TableProducts, product); err != nil {
		slog.Error("新建产品失败", "model", product.Model, "error", err)
		return nil, &QueryFailure{Op: "新建产品", Cause: err}
	}
	s.publisher.Publish(ctx, models.NewChangeEvent(models.TableProducts, models.ChangeInsert, product.ID, map[string]interface{}{
		"id":    product.ID,
		"model": product.Model,
		"name":  product.Name,
	}))
	return product, nil
}

// Update 修改产品
func (s *ProductService) Update(ctx context.Context, id string, patch ProductPatch) (*models.Product, error) {
	fields := make(map[string]interface{})
	var errs []models.ValidationError
	if patch.Model != nil {
		errs = append(errs, collect(requireField(*patch.Model, "model", "产品型号"))...)
		fields["model"] = *patch.Model
	}
	if patch.Name != nil {
		errs = append(errs, collect(requireField(*patch.Name, "name", "产品名称"))...)
		fields["name"] = *patch.Name
	}
	if len(errs) > 0 {
		return nil, &InputError{Errors: errs}
	}
	if patch.Manufacturer != nil {
		fields["manufacturer"] = *patch.Manufacturer
	}
	if patch.Category != nil {
		fields["category"] = *patch.Category
	}
	if patch.Specifications != nil {
		fields["specifications"] = patch.Specifications
	}
	if len(fields) == 0 {
		return s.Get(ctx, id)
	}

	var product models.Product
	if err := s.store.Update(ctx, models.TableProducts, id, fields, &product); err != nil {
		return nil, &QueryFailure{Op: "修改产品", Cause: err}
	}
	s.publisher.Publish(ctx, models.NewChangeEvent(models.TableProducts, models.ChangeUpdate, id, map[string]interface{}{
		"id":    product.ID,
		"model": product.Model,
		"name":  product.Name,
	}))
	return &product, nil
}

// TestItemPatch 修改测试项目，nil 字段保持不变
type TestItemPatch struct {
	Code         *string      `json:"code,omitempty"`
	Name         *string      `json:"name,omitempty"`
	Category     *string      `json:"category,omitempty"`
	StandardRef  *string      `json:"standard_ref,omitempty"`
	Unit         *string      `json:"unit,omitempty"`
	Parameters   models.JSONB `json:"parameters,omitempty"`
	PassCriteria models.JSONB `json:"pass_criteria,omitempty"`
	IsActive     *bool        `json:"is_active,omitempty"`
}

// TestItemService 测试项目服务
type TestItemService struct {
	store     storage.Store
	publisher Publisher
}

// NewTestItemService 创建测试项目服务
func NewTestItemService(store storage.Store, publisher Publisher) *TestItemService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &TestItemService{store: store, publisher: publisher}
}

// List 启用的测试项目，category 非空时按分类过滤
func (s *TestItemService) List(ctx context.Context, category string) ([]models.TestItem, error) {
	q := (&storage.SelectQuery{}).
		Where("is_active", storage.OpEq, true).
		OrderByField("category", false).
		OrderByField("name", false)
	if category != "" {
		q.Where("category", storage.OpEq, category)
	}

	items := make([]models.TestItem, 0)
	if _, err := s.store.Select(ctx, models.TableTestItems, q, &items); err != nil {
		return []models.TestItem{}, &QueryFailure{Op: "查询测试项目列表", Cause: err}
	}
	return items, nil
}

// Categories 启用测试项目的分类，去重后保持分类排序
func (s *TestItemService) Categories(ctx context.Context) ([]string, error) {
	items, err := s.List(ctx, "")
	if err != nil {
		return []string{}, err
	}
	seen := make(map[string]bool)
	categories := make([]string, 0)
	for _, item := range items {
		if item.Category == "" || seen[item.Category] {
			continue
		}
		seen[item.Category] = true
		categories = append(categories, item.Category)
	}
	return categories, nil
}

// Get 按ID获取测试项目
func (s *TestItemService) Get(ctx context.Context, id string) (*models.TestItem, error) {
	var items []models.TestItem
	q := (&storage.SelectQuery{Limit: 1}).Where("id", storage.OpEq, id)
	if _, err := s.store.Select(ctx, models.TableTestItems, q, &items); err != nil {
		return nil, &QueryFailure{Op: "查询测试项目", Cause: err}
	}
	if len(items) == 0 {
		return nil, &QueryFailure{Op: "查询测试项目", Cause: storage.ErrNotFound}
	}
	return &items[0], nil
}

// Create 新建测试项目，默认启用
func (s *TestItemService) Create(ctx context.Context, item *models.TestItem) (*models.TestItem, error) {
	errs := collect(
		requireField(item.Code, "code", "项目编码"),
		requireField(item.Name, "name", "项目名称"),
	)
	if len(errs) > 0 {
		return nil, &InputError{Errors: errs}
	}
	item.IsActive = true
	if item.Parameters == nil {
		item.Parameters = models.JSONB{}
	}
	if item.PassCriteria == nil {
		item.PassCriteria = models.JSONB{}
	}

	if err := s.store.Insert(ctx, models.TableTestItems, item); err != nil {
		slog.Error("新建测试项目失败", "code", item.Code, "error", err)
		return nil, &QueryFailure{Op: "新建测试项目", Cause: err}
	}
	s.publisher.Publish(ctx, models.NewChangeEvent(models.TableTestItems, models.ChangeInsert, item.ID, map[string]interface{}{
		"id":   item.ID,
		"code": item.Code,
		"name": item.Name,
	}))
	return item, nil
}

// Update 修改测试项目，is_active=false 即停用
func (s *TestItemService) Update(ctx context.Context, id string, patch TestItemPatch) (*models.TestItem, error) {
	fields := make(map[string]interface{})
	var errs []models.ValidationError
	if patch.Code != nil {
		errs = append(errs, collect(requireField(*patch.Code, "code", "项目编码"))...)
		fields["code"] = *patch.Code
	}
	if patch.Name != nil {
		errs = append(errs, collect(requireField(*patch.Name, "name", "项目名称"))...)
		fields["name"] = *patch.Name
	}
	if len(errs) > 0 {
		return nil, &InputError{Errors: errs}
	}
	if patch.Category != nil {
		fields["category"] = *patch.Category
	}
	if patch.StandardRef != nil {
		fields["standard_ref"] = *patch.StandardRef
	}
	if patch.Unit != nil {
		fields["unit"] = *patch.Unit
	}
	if patch.Parameters != nil {
		fields["parameters"] = patch.Parameters
	}
	if patch.PassCriteria != nil {
		fields["pass_criteria"] = patch.PassCriteria
	}
	if patch.IsActive != nil {
		fields["is_active"] = *patch.IsActive
	}
	if len(fields) == 0 {
		return s.Get(ctx, id)
	}

	var item models.TestItem
	if err := s.store.Update(ctx, models.TableTestItems, id, fields, &item); err != nil {
		return nil, &QueryFailure{Op: "修改测试项目", Cause: err}
	}
	s.publisher.Publish(ctx, models.NewChangeEvent(models.TableTestItems, models.ChangeUpdate, id, map[string]interface{}{
		"id":        item.ID,
		"code":      item.Code,
		"name":      item.Name,
		"is_active": item.IsActive,
	}))
	return &item, nil
}

func collect(errs ...*models.ValidationError) []models.ValidationError {
	out := make([]models.ValidationError, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}
