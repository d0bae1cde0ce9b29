/**
 * @module StatsWarmupScheduler
 * @description 统计缓存预热调度器，按Cron表达式定时计算看板统计并写入缓存
 * @architecture 基于robfig/cron的定时调度，分布式锁保证多实例只执行一次
 * @documentReference ../dev_docs/statistics.md
 * @stateFlow Cron触发 -> 获取锁 -> 预热看板统计 -> 释放锁
 * @rules 预热失败只记录日志，不影响请求路径；被其他实例执行时跳过
 * @dependencies github.com/robfig/cron/v3, service/distributed_lock
 * @refs ../statistics/service.go, ../init.go
 */

package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"pvsdm-service/service/distributed_lock"
	"pvsdm-service/service/monitoring"
)

// warmupLockKey 预热任务锁
const warmupLockKey = "stats:warmup"

// Warmer 可预热的统计服务
type Warmer interface {
	Warmup(ctx context.Context) error
}

// StatsWarmupScheduler 统计缓存预热调度器
type StatsWarmupScheduler struct {
	warmer   Warmer
	executor *distributed_lock.LockExecutor
	spec     string
	timeout  time.Duration
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewStatsWarmupScheduler 创建预热调度器，spec 为带秒字段的Cron表达式
func NewStatsWarmupScheduler(warmer Warmer, lock distributed_lock.DistributedLock, spec string) *StatsWarmupScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &StatsWarmupScheduler{
		warmer:   warmer,
		executor: distributed_lock.NewLockExecutor(lock),
		spec:     spec,
		timeout:  2 * time.Minute,
		cron:     cron.New(cron.WithSeconds()),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 注册预热任务并启动调度
func (s *StatsWarmupScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(s.ctx) }); err != nil {
		return fmt.Errorf("添加统计预热任务失败: %w", err)
	}
	s.cron.Start()
	log.Printf("统计预热调度器已启动 [%s]", s.spec)
	return nil
}

// Stop 停止调度，等待正在执行的任务结束
func (s *StatsWarmupScheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	log.Println("统计预热调度器已停止")
}

// RunOnce 执行一次预热
func (s *StatsWarmupScheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	ran, err := s.executor.ExecuteWithLock(ctx, warmupLockKey, s.timeout, func() error {
		return s.warmer.Warmup(ctx)
	})
	switch {
	case err != nil:
		monitoring.RecordWarmup("failure")
		log.Printf("统计缓存预热失败: %v", err)
	case !ran:
		monitoring.RecordWarmup("skipped")
	default:
		monitoring.RecordWarmup("success")
		log.Printf("统计缓存预热完成，耗时 %v", time.Since(start))
	}
}
