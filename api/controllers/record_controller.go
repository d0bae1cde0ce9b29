/*
 * @module api/controllers/record_controller
 * @description 测试记录控制器，提供测试记录的查询、录入、修改、删除以及筛选统计接口
 * @architecture RESTful API架构 - 控制器层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow HTTP请求 -> 参数解析 -> RecordService -> 统一响应
 * @rules 查询参数全部为“与”关系；分页缺省第1页每页20条；业务错误统一转换为 APIResponse
 * @dependencies pvsdm-service/service/records, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/records/record_service.go, service/query/builder.go
 */

package controllers

import (
	"net/http"

	"pvsdm-service/service/models"
	"pvsdm-service/service/records"
	"pvsdm-service/service/statistics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// 默认分页大小
const defaultPageSize = 20

// RecordController 测试记录控制器
type RecordController struct {
	recordService *records.RecordService
	statsService  *statistics.Service
}

// NewRecordController 创建测试记录控制器实例
func NewRecordController(recordService *records.RecordService, statsService *statistics.Service) *RecordController {
	return &RecordController{recordService: recordService, statsService: statsService}
}

// parseFilters 从查询参数读取过滤条件
func parseFilters(r *http.Request) models.QueryFilters {
	q := r.URL.Query()
	return models.QueryFilters{
		DateFrom:   q.Get("date_from"),
		DateTo:     q.Get("date_to"),
		DeviceSN:   q.Get("device_sn"),
		ProductID:  q.Get("product_id"),
		TestItemID: q.Get("test_item_id"),
		Result:     q.Get("result"),
		BatchID:    q.Get("batch_id"),
	}
}

// parseSort 从查询参数读取排序，缺省按测试日期倒序
func parseSort(r *http.Request) models.SortParams {
	sort := models.DefaultSort()
	if field := r.URL.Query().Get("sort"); field != "" {
		sort.Field = field
	}
	if order := r.URL.Query().Get("order"); order != "" {
		sort.Order = order
	}
	return sort
}

// ListRecords 查询测试记录
// @Summary 查询测试记录
// @Description 按日期范围、设备序列号、产品、测试项目、结果、批次筛选测试记录并分页
// @Tags 测试记录
// @Produce json
// @Param date_from query string false "开始日期 YYYY-MM-DD"
// @Param date_to query string false "结束日期 YYYY-MM-DD"
// @Param device_sn query string false "设备序列号（模糊匹配）"
// @Param product_id query string false "产品ID"
// @Param test_item_id query string false "测试项目ID"
// @Param result query string false "测试结果 PASS/FAIL"
// @Param batch_id query string false "批次号"
// @Param sort query string false "排序字段" default(test_date)
// @Param order query string false "排序方向 asc/desc" default(desc)
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(20)
// @Success 200 {object} PaginatedResponse{data=[]models.TestRecord} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /records [get]
func (c *RecordController) ListRecords(w http.ResponseWriter, r *http.Request) {
	page := models.PaginationParams{
		Page:  queryInt(r, "page", 1),
		Limit: queryInt(r, "size", defaultPageSize),
	}

	result, err := c.recordService.List(r.Context(), parseFilters(r), parseSort(r), page)
	if err != nil {
		renderError(w, r, "查询测试记录失败", err)
		return
	}

	render.JSON(w, r, PaginatedResponse{
		Status: 0,
		Msg:    "查询测试记录成功",
		Data:   result.Data,
		Total:  result.Total,
		Page:   page.Page,
		Size:   page.Limit,
	})
}

// GetRecord 获取测试记录详情
// @Summary 获取测试记录详情
// @Tags 测试记录
// @Produce json
// @Param id path string true "记录ID"
// @Success 200 {object} APIResponse{data=models.TestRecord} "获取成功"
// @Failure 404 {object} APIResponse "记录不存在"
// @Router /records/{id} [get]
func (c *RecordController) GetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := c.recordService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, "获取测试记录失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取测试记录成功", record))
}

// CreateRecord 录入测试记录
// @Summary 录入测试记录
// @Tags 测试记录
// @Accept json
// @Produce json
// @Param record body records.RecordInput true "测试记录"
// @Success 200 {object} APIResponse{data=models.TestRecord} "创建成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Router /records [post]
func (c *RecordController) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var input records.RecordInput
	if err := render.DecodeJSON(r.Body, &input); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}

	record, err := c.recordService.Create(r.Context(), input)
	if err != nil {
		renderError(w, r, "创建测试记录失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("创建测试记录成功", record))
}

// UpdateRecord 修改测试记录
// @Summary 修改测试记录
// @Tags 测试记录
// @Accept json
// @Produce json
// @Param id path string true "记录ID"
// @Param patch body records.RecordPatch true "修改内容"
// @Success 200 {object} APIResponse{data=models.TestRecord} "修改成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 404 {object} APIResponse "记录不存在"
// @Router /records/{id} [put]
func (c *RecordController) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	var patch records.RecordPatch
	if err := render.DecodeJSON(r.Body, &patch); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}

	record, err := c.recordService.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		renderError(w, r, "修改测试记录失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("修改测试记录成功", record))
}

// DeleteRecord 删除测试记录
// @Summary 删除测试记录
// @Tags 测试记录
// @Produce json
// @Param id path string true "记录ID"
// @Success 200 {object} APIResponse "删除成功"
// @Failure 404 {object} APIResponse "记录不存在"
// @Router /records/{id} [delete]
func (c *RecordController) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	record, err := c.recordService.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, "删除测试记录失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("删除测试记录成功", map[string]interface{}{"id": record.ID}))
}

// GetRecordStatistics 当前筛选条件下的统计
// @Summary 筛选条件统计
// @Description 与记录查询使用相同的筛选条件，返回总数、合格数、不合格数与合格率
// @Tags 测试记录
// @Produce json
// @Param date_from query string false "开始日期 YYYY-MM-DD"
// @Param date_to query string false "结束日期 YYYY-MM-DD"
// @Param product_id query string false "产品ID"
// @Param test_item_id query string false "测试项目ID"
// @Success 200 {object} APIResponse{data=models.StatisticsSnapshot} "获取成功"
// @Router /records/statistics [get]
func (c *RecordController) GetRecordStatistics(w http.ResponseWriter, r *http.Request) {
	snapshot, err := c.statsService.Filtered(r.Context(), parseFilters(r))
	if err != nil {
		renderError(w, r, "统计测试记录失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("统计测试记录成功", snapshot))
}
