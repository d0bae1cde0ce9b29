/*
 * @module service/init
 * @description 服务初始化模块，负责配置加载、数据库连接、迁移和服务装配
 * @architecture 分层架构 - 服务层（唯一的组合根）
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 加载配置 -> 连接数据库 -> 迁移与基础数据 -> 事件中心/缓存/锁 -> 业务服务 -> 调度器
 * @rules 确保所有依赖服务正常启动后才提供API服务；Redis/Kafka/MQTT为可选依赖，未配置或不可用时降级；
 *        启用数据库监听时变更事件只来自数据库触发器，避免重复通知
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres, github.com/go-redis/redis/v8
 * @refs dev_docs/model.md, service/config/config.go
 */

package service

import (
	"context"
	"log"
	"time"

	"pvsdm-service/logger"
	"pvsdm-service/service/cache"
	"pvsdm-service/service/config"
	"pvsdm-service/service/database"
	"pvsdm-service/service/distributed_lock"
	"pvsdm-service/service/event"
	"pvsdm-service/service/importer"
	"pvsdm-service/service/models"
	"pvsdm-service/service/records"
	"pvsdm-service/service/scheduler"
	"pvsdm-service/service/statistics"
	"pvsdm-service/service/storage"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB                      *gorm.DB
	GlobalConfig            *config.Config
	GlobalStore             *storage.GormStore
	GlobalEventService      *event.EventService
	GlobalRecordService     *records.RecordService
	GlobalProductService    *records.ProductService
	GlobalTestItemService   *records.TestItemService
	GlobalImportService     *importer.ImportService
	GlobalStatisticsService *statistics.Service
	GlobalWarmupScheduler   *scheduler.StatsWarmupScheduler

	redisClient *redis.Client
	stopRuntime context.CancelFunc
)

func init() {
	loadConfig()
	initDatabase()
	runMigrations()
	initServices()
}

// loadConfig 加载配置并初始化日志
func loadConfig() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	GlobalConfig = cfg
	logger.InitLogger(cfg.Server.LogLevel)
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var err error
	DB, err = gorm.Open(postgres.Open(GlobalConfig.Database.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatalf("获取数据库连接池失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(GlobalConfig.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(GlobalConfig.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("数据库连接成功")
}

// runMigrations 运行数据库迁移
func runMigrations() {
	log.Println("开始运行数据库迁移...")

	if err := database.AutoMigrate(DB); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Println("数据库表结构迁移完成")

	if err := database.InitializeData(DB); err != nil {
		log.Fatalf("基础数据初始化失败: %v", err)
	}

	if GlobalConfig.Database.ListenerEnabled {
		if err := database.InstallChangeTriggers(DB); err != nil {
			log.Fatalf("安装变更通知触发器失败: %v", err)
		}
	}

	log.Println("所有数据库迁移任务完成")
}

// initServices 初始化服务
func initServices() {
	cfg := GlobalConfig
	ctx, cancel := context.WithCancel(context.Background())
	stopRuntime = cancel

	GlobalStore = storage.NewGormStore(DB)
	GlobalEventService = event.NewEventService()
	initEventSinks(cfg)

	// 变更来源：数据库监听或业务服务直接发布，二选一
	var publisher event.Publisher
	if cfg.Database.ListenerEnabled {
		listener := event.NewPGListener(cfg.Database.DSN(), GlobalEventService)
		go func() {
			if err := listener.Run(ctx); err != nil {
				log.Printf("数据库监听器退出: %v", err)
			}
		}()
	} else {
		publisher = GlobalEventService
	}

	statsCache, lock := initRedis(cfg)
	GlobalStatisticsService = statistics.NewService(GlobalStore,
		statistics.WithCache(statsCache, cfg.Statistics.CacheTTL),
		statistics.WithTrendDays(cfg.Statistics.TrendDays))
	GlobalEventService.Subscribe(models.TableTestRecords, event.OnAny(GlobalStatisticsService.HandleChange))

	GlobalRecordService = records.NewRecordService(GlobalStore, publisher)
	GlobalProductService = records.NewProductService(GlobalStore, publisher)
	GlobalTestItemService = records.NewTestItemService(GlobalStore, publisher)
	GlobalImportService = importer.NewImportService(GlobalStore,
		importer.NewBatchImporter(GlobalStore, cfg.Import.ChunkSize),
		importer.WithLocker(lock),
		importer.WithPublisher(publisher),
		importer.WithMaxUploadMB(cfg.Import.MaxUploadMB))

	// 启动调度器
	GlobalWarmupScheduler = scheduler.NewStatsWarmupScheduler(GlobalStatisticsService, lock, cfg.Statistics.WarmupCron)
	if err := GlobalWarmupScheduler.Start(); err != nil {
		log.Printf("启动统计预热调度器失败: %v", err)
	}
	log.Println("服务初始化完成")
}

// initEventSinks 按配置启用Kafka、MQTT输出
func initEventSinks(cfg *config.Config) {
	if cfg.Kafka.Enabled() {
		GlobalEventService.AddSink(event.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	}
	if cfg.MQTT.Enabled() {
		sink, err := event.NewMQTTSink(event.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
		})
		if err != nil {
			log.Printf("MQTT输出不可用: %v", err)
			return
		}
		GlobalEventService.AddSink(sink)
	}
}

// initRedis 连接Redis，未配置或不可用时使用进程内缓存和锁
func initRedis(cfg *config.Config) (cache.Cache, distributed_lock.DistributedLock) {
	if !cfg.Redis.Enabled() {
		log.Println("未配置Redis，使用进程内缓存和锁")
		return cache.NewMemoryCache(), distributed_lock.NewLocalLock()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis连接失败，使用进程内缓存和锁: %v", err)
		_ = client.Close()
		return cache.NewMemoryCache(), distributed_lock.NewLocalLock()
	}

	redisClient = client
	log.Printf("Redis连接成功: %s", cfg.Redis.Addr())
	return cache.NewRedisCache(client), distributed_lock.NewRedisLock(client)
}

// Shutdown 停止后台任务并释放连接
func Shutdown() {
	if GlobalWarmupScheduler != nil {
		GlobalWarmupScheduler.Stop()
	}
	if stopRuntime != nil {
		stopRuntime()
	}
	if GlobalEventService != nil {
		GlobalEventService.Stop()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if DB != nil {
		if sqlDB, err := DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	log.Println("服务已停止")
}
