/*
 * @module api/controllers/statistics_controller
 * @description 统计控制器，提供今日/本周/本月统计、逐日趋势、按产品/测试项目统计、分类分布与仪表盘接口
 * @architecture RESTful API架构 - 控制器层
 * @documentReference dev_docs/statistics.md
 * @stateFlow HTTP请求 -> 参数解析 -> StatisticsService(缓存/聚合) -> 统一响应
 * @rules 趋势天数缺省取配置值，上限366天；查询失败时返回错误状态和空数据
 * @dependencies pvsdm-service/service/statistics, pvsdm-service/service/format, github.com/go-chi/render
 * @refs service/statistics/service.go, service/statistics/aggregator.go
 */

package controllers

import (
	"net/http"

	"pvsdm-service/service/format"
	"pvsdm-service/service/models"
	"pvsdm-service/service/statistics"

	"github.com/go-chi/render"
)

// maxTrendDays 趋势查询最大天数
const maxTrendDays = 366

// StatisticsController 统计控制器
type StatisticsController struct {
	statsService *statistics.Service
}

// NewStatisticsController 创建统计控制器实例
func NewStatisticsController(statsService *statistics.Service) *StatisticsController {
	return &StatisticsController{statsService: statsService}
}

// SnapshotDisplay 统计快照的展示文本
type SnapshotDisplay struct {
	TotalTests string `json:"total_tests" example:"1,234"`
	PassRate   string `json:"pass_rate" example:"95.7%"`
}

// DashboardResponse 仪表盘响应
type DashboardResponse struct {
	*models.Dashboard
	Display map[string]SnapshotDisplay `json:"display"`
}

func displayOf(s models.StatisticsSnapshot) SnapshotDisplay {
	return SnapshotDisplay{
		TotalTests: format.FormatNumber(float64(s.TotalTests), 0),
		PassRate:   format.FormatPercent(s.PassRate, 1),
	}
}

func (c *StatisticsController) trendDays(r *http.Request) int {
	days := queryInt(r, "days", c.statsService.TrendDays())
	if days > maxTrendDays {
		days = maxTrendDays
	}
	return days
}

func (c *StatisticsController) renderSnapshot(w http.ResponseWriter, r *http.Request, name string, snapshot models.StatisticsSnapshot, err error) {
	if err != nil {
		renderError(w, r, "获取"+name+"统计失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取"+name+"统计成功", snapshot))
}

// GetToday 今日统计
// @Summary 今日统计
// @Tags 统计分析
// @Produce json
// @Success 200 {object} APIResponse{data=models.StatisticsSnapshot} "获取成功"
// @Router /statistics/today [get]
func (c *StatisticsController) GetToday(w http.ResponseWriter, r *http.Request) {
	snapshot, err := c.statsService.Today(r.Context())
	c.renderSnapshot(w, r, "今日", snapshot, err)
}

// GetWeek 本周统计
// @Summary 本周统计
// @Description 自然周，周一开始
// @Tags 统计分析
// @Produce json
// @Success 200 {object} APIResponse{data=models.StatisticsSnapshot} "获取成功"
// @Router /statistics/week [get]
func (c *StatisticsController) GetWeek(w http.ResponseWriter, r *http.Request) {
	snapshot, err := c.statsService.Week(r.Context())
	c.renderSnapshot(w, r, "本周", snapshot, err)
}

// GetMonth 本月统计
// @Summary 本月统计
// @Tags 统计分析
// @Produce json
// @Success 200 {object} APIResponse{data=models.StatisticsSnapshot} "获取成功"
// @Router /statistics/month [get]
func (c *StatisticsController) GetMonth(w http.ResponseWriter, r *http.Request) {
	snapshot, err := c.statsService.Month(r.Context())
	c.renderSnapshot(w, r, "本月", snapshot, err)
}

// GetTrend 逐日趋势
// @Summary 逐日趋势
// @Description 最近N天逐日统计，从早到晚，无数据的日期补零
// @Tags 统计分析
// @Produce json
// @Param days query int false "天数" default(30)
// @Success 200 {object} APIResponse{data=[]models.StatisticsSnapshot} "获取成功"
// @Router /statistics/trend [get]
func (c *StatisticsController) GetTrend(w http.ResponseWriter, r *http.Request) {
	trend, err := c.statsService.DailyTrend(r.Context(), c.trendDays(r))
	if err != nil {
		renderError(w, r, "获取趋势统计失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取趋势统计成功", trend))
}

// GetTrendChart 合格率趋势图
// @Summary 合格率趋势图
// @Tags 统计分析
// @Produce json
// @Param days query int false "天数" default(30)
// @Success 200 {object} APIResponse{data=models.ChartSeries} "获取成功"
// @Router /statistics/trend/chart [get]
func (c *StatisticsController) GetTrendChart(w http.ResponseWriter, r *http.Request) {
	chart, err := c.statsService.PassRateTrend(r.Context(), c.trendDays(r))
	if err != nil {
		renderError(w, r, "获取合格率趋势失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取合格率趋势成功", chart))
}

// GetByProduct 按产品统计
// @Summary 按产品统计
// @Tags 统计分析
// @Produce json
// @Param date_from query string false "开始日期 YYYY-MM-DD"
// @Param date_to query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} APIResponse{data=[]models.ProductStatistics} "获取成功"
// @Router /statistics/by-product [get]
func (c *StatisticsController) GetByProduct(w http.ResponseWriter, r *http.Request) {
	stats, err := c.statsService.ByProduct(r.Context(), parseFilters(r))
	if err != nil {
		renderError(w, r, "获取产品统计失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取产品统计成功", stats))
}

// GetByTestItem 按测试项目统计
// @Summary 按测试项目统计
// @Tags 统计分析
// @Produce json
// @Param date_from query string false "开始日期 YYYY-MM-DD"
// @Param date_to query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} APIResponse{data=[]models.TestItemStatistics} "获取成功"
// @Router /statistics/by-test-item [get]
func (c *StatisticsController) GetByTestItem(w http.ResponseWriter, r *http.Request) {
	stats, err := c.statsService.ByTestItem(r.Context(), parseFilters(r))
	if err != nil {
		renderError(w, r, "获取测试项目统计失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取测试项目统计成功", stats))
}

// GetCategoryDistribution 测试分类分布
// @Summary 测试分类分布
// @Tags 统计分析
// @Produce json
// @Success 200 {object} APIResponse{data=models.ChartSeries} "获取成功"
// @Router /statistics/category-distribution [get]
func (c *StatisticsController) GetCategoryDistribution(w http.ResponseWriter, r *http.Request) {
	chart, err := c.statsService.CategoryDistribution(r.Context(), parseFilters(r))
	if err != nil {
		renderError(w, r, "获取分类分布失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse("获取分类分布成功", chart))
}

// GetDashboard 仪表盘
// @Summary 仪表盘汇总
// @Description 今日、本周、本月统计与最近N天趋势
// @Tags 统计分析
// @Produce json
// @Success 200 {object} APIResponse{data=DashboardResponse} "获取成功"
// @Router /statistics/dashboard [get]
func (c *StatisticsController) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := c.statsService.Dashboard(r.Context())
	if err != nil {
		renderError(w, r, "获取仪表盘统计失败", err)
		return
	}

	render.JSON(w, r, SuccessResponse("获取仪表盘统计成功", DashboardResponse{
		Dashboard: dashboard,
		Display: map[string]SnapshotDisplay{
			"today": displayOf(dashboard.Today),
			"week":  displayOf(dashboard.Week),
			"month": displayOf(dashboard.Month),
		},
	}))
}
