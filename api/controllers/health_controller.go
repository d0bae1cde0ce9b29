/*
 * @module api/controllers/health_controller
 * @description 健康检查控制器，提供服务存活与就绪状态检查
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 存活检查不依赖外部组件；就绪检查要求数据库可用，用于容器健康检查和负载均衡
 * @dependencies net/http, github.com/go-chi/render
 * @refs service/storage/gorm_store.go
 */

package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// serviceName 服务名称
const serviceName = "pvsdm-service"

// Pinger 可探测的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController 健康检查控制器
type HealthController struct {
	db Pinger
}

// NewHealthController 创建健康检查控制器实例
func NewHealthController(db Pinger) *HealthController {
	return &HealthController{db: db}
}

// HealthResponse 健康检查响应结构
type HealthResponse struct {
	Status    string    `json:"status" example:"ok"`
	Timestamp time.Time `json:"timestamp" example:"2024-01-01T00:00:00Z"`
	Version   string    `json:"version" example:"1.0.0"`
	Service   string    `json:"service" example:"pvsdm-service"`
	Database  string    `json:"database,omitempty" example:"ok"`
}

// Health 健康检查
// @Summary 健康检查
// @Description 检查服务健康状态
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Service:   serviceName,
	}

	render.JSON(w, r, response)
}

// Ready 就绪检查
// @Summary 就绪检查
// @Description 检查服务是否就绪，数据库不可用时返回503
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /ready [get]
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Service:   serviceName,
		Database:  "ok",
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := c.db.Ping(ctx); err != nil {
		response.Status = "not_ready"
		response.Database = err.Error()
		render.Status(r, http.StatusServiceUnavailable)
	}

	render.JSON(w, r, response)
}
