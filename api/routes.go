/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式；读接口对所有角色开放，写接口要求 admin/operator
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs dev_docs/model.md, service/init.go
 */

package api

import (
	"pvsdm-service/api/controllers"
	pvsdmmw "pvsdm-service/api/middleware"
	"pvsdm-service/service/event"
	"pvsdm-service/service/importer"
	"pvsdm-service/service/records"
	"pvsdm-service/service/statistics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// Dependencies 路由依赖的服务
type Dependencies struct {
	DB              controllers.Pinger
	EventService    *event.EventService
	RecordService   *records.RecordService
	ProductService  *records.ProductService
	TestItemService *records.TestItemService
	ImportService   *importer.ImportService
	StatsService    *statistics.Service
	MaxUploadMB     int
}

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux, deps Dependencies) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(pvsdmmw.Actor)

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", pvsdmmw.HeaderUserID, pvsdmmw.HeaderUserRole},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController(deps.DB)
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// SSE事件订阅
	eventController := controllers.NewEventController(deps.EventService)
	r.Get("/sse/{user_name}", eventController.HandleSSE)

	// 系统通知
	r.Route("/events", func(r chi.Router) {
		r.Use(pvsdmmw.RequireWriter)
		r.Post("/send", eventController.SendEvent)
		r.Post("/broadcast", eventController.BroadcastEvent)
	})

	// 测试记录
	r.Route("/records", func(r chi.Router) {
		recordController := controllers.NewRecordController(deps.RecordService, deps.StatsService)
		r.Get("/", recordController.ListRecords)
		r.Get("/statistics", recordController.GetRecordStatistics)
		r.Get("/{id}", recordController.GetRecord)

		r.Group(func(r chi.Router) {
			r.Use(pvsdmmw.RequireWriter)
			r.Post("/", recordController.CreateRecord)
			r.Put("/{id}", recordController.UpdateRecord)
			r.Delete("/{id}", recordController.DeleteRecord)
		})
	})

	// 数据导入
	r.Route("/import", func(r chi.Router) {
		importController := controllers.NewImportController(deps.ImportService, deps.MaxUploadMB)
		r.Get("/template", importController.DownloadTemplate)

		r.Group(func(r chi.Router) {
			r.Use(pvsdmmw.RequireWriter)
			r.Post("/", importController.ImportFile)
			r.Post("/parse", importController.ParseFile)
		})
	})

	// 统计分析
	r.Route("/statistics", func(r chi.Router) {
		statsController := controllers.NewStatisticsController(deps.StatsService)
		r.Get("/today", statsController.GetToday)
		r.Get("/week", statsController.GetWeek)
		r.Get("/month", statsController.GetMonth)
		r.Get("/trend", statsController.GetTrend)
		r.Get("/trend/chart", statsController.GetTrendChart)
		r.Get("/by-product", statsController.GetByProduct)
		r.Get("/by-test-item", statsController.GetByTestItem)
		r.Get("/category-distribution", statsController.GetCategoryDistribution)
		r.Get("/dashboard", statsController.GetDashboard)
	})

	// 产品管理
	r.Route("/products", func(r chi.Router) {
		productController := controllers.NewProductController(deps.ProductService)
		r.Get("/", productController.ListProducts)
		r.Get("/{id}", productController.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(pvsdmmw.RequireWriter)
			r.Post("/", productController.CreateProduct)
			r.Put("/{id}", productController.UpdateProduct)
		})
	})

	// 测试项目管理
	r.Route("/test-items", func(r chi.Router) {
		testItemController := controllers.NewTestItemController(deps.TestItemService)
		r.Get("/", testItemController.ListTestItems)
		r.Get("/categories", testItemController.ListCategories)
		r.Get("/{id}", testItemController.GetTestItem)

		r.Group(func(r chi.Router) {
			r.Use(pvsdmmw.RequireWriter)
			r.Post("/", testItemController.CreateTestItem)
			r.Put("/{id}", testItemController.UpdateTestItem)
		})
	})
}
