package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"pvsdm-service/api"
	_ "pvsdm-service/docs"
	"pvsdm-service/service"

	daprd "github.com/dapr/go-sdk/service/http"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title 光伏关断器质量测试数据服务 API
// @version 1.0
// @description 光伏关断器测试数据的导入、查询与统计分析服务，提供Excel批量导入、测试记录管理和合格率统计功能
// @BasePath /swagger/pvsdm-service
func main() {
	mux := chi.NewRouter()
	cfg := service.GlobalConfig

	deps := api.Dependencies{
		DB:              service.GlobalStore,
		EventService:    service.GlobalEventService,
		RecordService:   service.GlobalRecordService,
		ProductService:  service.GlobalProductService,
		TestItemService: service.GlobalTestItemService,
		ImportService:   service.GlobalImportService,
		StatsService:    service.GlobalStatisticsService,
		MaxUploadMB:     cfg.Import.MaxUploadMB,
	}

	// 如果有BASE_CONTEXT，则在该路径下挂载所有路由
	if cfg.Server.BaseContext != "" {
		mux.Route(cfg.Server.BaseContext, func(r chi.Router) {
			subMux := r.(*chi.Mux)
			api.InitRoute(subMux, deps)
			r.Handle("/metrics", promhttp.Handler())
			r.Handle("/swagger*", httpSwagger.WrapHandler)
		})
	} else {
		api.InitRoute(mux, deps)
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/swagger*", httpSwagger.WrapHandler)
	}

	s := daprd.NewServiceWithMux(":"+cfg.Server.Port, mux)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("收到退出信号，正在停止服务...")
		if err := s.GracefulStop(); err != nil {
			log.Printf("停止HTTP服务失败: %v", err)
		}
	}()

	if err := s.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("error: %v", err)
	}
	service.Shutdown()
}
