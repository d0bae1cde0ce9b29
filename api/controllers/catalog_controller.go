/*
 * @module api/controllers/catalog_controller
 * @description 产品与测试项目控制器，提供产品、测试项目的查询与维护接口
 * @architecture RESTful API架构 - 控制器层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow HTTP请求 -> ProductService/TestItemService -> 统一响应
 * @rules 测试项目列表只返回启用的项目；停用通过修改 is_active 完成，不提供物理删除
 * @dependencies pvsdm-service/service/records, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/records/catalog_service.go
 */

package controllers

import (
	"net/http"

	"pvsdm-service/service/models"
	"pvsdm-service/service/records"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ProductController 产品控制器
type ProductController struct {
	productService *records.ProductService
}

// NewProductController 创建产品控制器实例
func NewProductController(productService *records.ProductService) *ProductController {
	return &ProductController{productService: productService}
}

// ListProducts 获取产品列表
// @Summary 获取产品列表
// @Tags 产品管理
// @Produce json
// @Success 200 {object} APIResponse{data=[]models.Product} "获取成功"
// @Router /products [get]
func (c *ProductController) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := c.productService.List(r.Context())
	if err != nil {
		renderError(w, r, "获取产品列表失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取产品列表成功", products))
}

// GetProduct 获取产品详情
// @Summary 获取产品详情
// @Tags 产品管理
// @Produce json
// @Param id path string true "产品ID"
// @Success 200 {object} APIResponse{data=models.Product} "获取成功"
// @Failure 404 {object} APIResponse "产品不存在"
// @Router /products/{id} [get]
func (c *ProductController) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := c.productService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, "获取产品失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取产品成功", product))
}

// CreateProduct 创建产品
// @Summary 创建产品
// @Tags 产品管理
// @Accept json
// @Produce json
// @Param product body models.Product true "产品信息"
// @Success 200 {object} APIResponse{data=models.Product} "创建成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Router /products [post]
func (c *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := render.DecodeJSON(r.Body, &product); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}

	created, err := c.productService.Create(r.Context(), &product)
	if err != nil {
		renderError(w, r, "创建产品失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("创建产品成功", created))
}

// UpdateProduct 修改产品
// @Summary 修改产品
// @Tags 产品管理
// @Accept json
// @Produce json
// @Param id path string true "产品ID"
// @Param patch body records.ProductPatch true "修改内容"
// @Success 200 {object} APIResponse{data=models.Product} "修改成功"
// @Router /products/{id} [put]
func (c *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var patch records.ProductPatch
	if err := render.DecodeJSON(r.Body, &patch); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}

	product, err := c.productService.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		renderError(w, r, "修改产品失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("修改产品成功", product))
}

// TestItemController 测试项目控制器
type TestItemController struct {
	testItemService *records.TestItemService
}

// NewTestItemController 创建测试项目控制器实例
func NewTestItemController(testItemService *records.TestItemService) *TestItemController {
	return &TestItemController{testItemService: testItemService}
}

// ListTestItems 获取测试项目列表
// @Summary 获取测试项目列表
// @Description 只返回启用的测试项目，按分类、名称排序
// @Tags 测试项目管理
// @Produce json
// @Param category query string false "分类"
// @Success 200 {object} APIResponse{data=[]models.TestItem} "获取成功"
// @Router /test-items [get]
func (c *TestItemController) ListTestItems(w http.ResponseWriter, r *http.Request) {
	items, err := c.testItemService.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		renderError(w, r, "获取测试项目列表失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取测试项目列表成功", items))
}

// ListCategories 获取测试项目分类
// @Summary 获取测试项目分类
// @Tags 测试项目管理
// @Produce json
// @Success 200 {object} APIResponse{data=[]string} "获取成功"
// @Router /test-items/categories [get]
func (c *TestItemController) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := c.testItemService.Categories(r.Context())
	if err != nil {
		renderError(w, r, "获取测试项目分类失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取测试项目分类成功", categories))
}

// GetTestItem 获取测试项目详情
// @Summary 获取测试项目详情
// @Tags 测试项目管理
// @Produce json
// @Param id path string true "测试项目ID"
// @Success 200 {object} APIResponse{data=models.TestItem} "获取成功"
// @Failure 404 {object} APIResponse "测试项目不存在"
// @Router /test-items/{id} [get]
func (c *TestItemController) GetTestItem(w http.ResponseWriter, r *http.Request) {
	item, err := c.testItemService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, "获取测试项目失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取测试项目成功", item))
}

// CreateTestItem 创建测试项目
// @Summary 创建测试项目
// @Tags 测试项目管理
// @Accept json
// @Produce json
// @Param item body models.TestItem true "测试项目信息"
// @Success 200 {object} APIResponse{data=models.TestItem} "创建成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Router /test-items [post]
func (c *TestItemController) CreateTestItem(w http.ResponseWriter, r *http.Request) {
	var item models.TestItem
	if err := render.DecodeJSON(r.Body, &item); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}

	created, err := c.testItemService.Create(r.Context(), &item)
	if err != nil {
		renderError(w, r, "创建测试项目失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("创建测试项目成功", created))
}

// UpdateTestItem 修改测试项目
// @Summary 修改测试项目
// @Tags 测试项目管理
// @Accept json
// @Produce json
// @Param id path string true "测试项目ID"
// @Param patch body records.TestItemPatch true "修改内容"
// @Success 200 {object} APIResponse{data=models.TestItem} "修改成功"
// @Router /test-items/{id} [put]
func (c *TestItemController) UpdateTestItem(w http.ResponseWriter, r *http.Request) {
	var patch records.TestItemPatch
	if err := render.DecodeJSON(r.Body, &patch); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}

	item, err := c.testItemService.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		renderError(w, r, "修改测试项目失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("修改测试项目成功", item))
}
