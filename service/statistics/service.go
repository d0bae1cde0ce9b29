/*
 * @module service/statistics/service
 * @description 统计服务，按日历窗口和过滤条件加载测试记录并调用聚合函数，结果缓存
 * @architecture 业务服务层 - 统计分析
 * @documentReference dev_docs/statistics.md
 * @stateFlow 统计请求 -> 缓存 -> 查询构造器加载记录 -> 聚合 -> 写缓存
 * @rules 查询失败返回零值结果与QueryFailure；测试记录变更后缓存失效；缓存故障不影响结果
 * @dependencies pvsdm-service/service/query, pvsdm-service/service/cache
 * @refs api/controllers/statistics_controller.go, service/scheduler/stats_warmup.go
 */

package statistics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pvsdm-service/service/cache"
	"pvsdm-service/service/models"
	"pvsdm-service/service/monitoring"
	"pvsdm-service/service/query"
	"pvsdm-service/service/storage"
)

// CacheKeyPrefix 统计缓存键前缀
const CacheKeyPrefix = "pvsdm:stats:"

// DefaultTrendDays 默认趋势天数
const DefaultTrendDays = 30

// Service 统计服务
type Service struct {
	query     *query.RecordQuery
	cache     cache.Cache
	ttl       time.Duration
	now       func() time.Time
	trendDays int
}

// Option 统计服务选项
type Option func(*Service)

// WithCache 设置缓存
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
			s.ttl = ttl
		}
	}
}

// WithClock 设置时钟，测试使用
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithTrendDays 设置仪表盘趋势天数
func WithTrendDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.trendDays = days
		}
	}
}

// NewService 创建统计服务
func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{
		query:     query.NewRecordQuery(store),
		cache:     cache.NopCache{},
		now:       time.Now,
		trendDays: DefaultTrendDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrendDays 仪表盘趋势天数
func (s *Service) TrendDays() int {
	return s.trendDays
}

// Today 今日统计
func (s *Service) Today(ctx context.Context) (models.StatisticsSnapshot, error) {
	start, end := TodayBounds(s.now())
	return s.cachedRange(ctx, "today", start, end)
}

// Week 本周统计
func (s *Service) Week(ctx context.Context) (models.StatisticsSnapshot, error) {
	start, end := WeekBounds(s.now())
	return s.cachedRange(ctx, "week", start, end)
}

// Month 本月统计
func (s *Service) Month(ctx context.Context) (models.StatisticsSnapshot, error) {
	start, end := MonthBounds(s.now())
	return s.cachedRange(ctx, "month", start, end)
}

func (s *Service) cachedRange(ctx context.Context, name string, start, end time.Time) (models.StatisticsSnapshot, error) {
	key := fmt.Sprintf("%s%s:%s", CacheKeyPrefix, name, start.Format(models.DateLayout))
	var snap models.StatisticsSnapshot
	if s.readCache(ctx, key, &snap) {
		return snap, nil
	}
	snap, err := s.Range(ctx, start, end)
	if err != nil {
		return snap, err
	}
	s.writeCache(ctx, key, snap)
	return snap, nil
}

// Range 日期窗口统计，含两端
func (s *Service) Range(ctx context.Context, start, end time.Time) (models.StatisticsSnapshot, error) {
	records, err := s.load(ctx, "range_statistics", models.QueryFilters{
		DateFrom: start.Format(models.DateLayout),
		DateTo:   end.Format(models.DateLayout),
	}, false)
	if err != nil {
		return models.StatisticsSnapshot{}, err
	}
	return WindowSnapshot(records, start, end), nil
}

// Filtered 按查询条件统计，与记录列表使用相同的过滤条件
func (s *Service) Filtered(ctx context.Context, filters models.QueryFilters) (models.StatisticsSnapshot, error) {
	records, err := s.load(ctx, "filtered_statistics", filters, false)
	if err != nil {
		return models.StatisticsSnapshot{}, err
	}
	snap := Snapshot(records)
	snap.ProductID = filters.ProductID
	snap.TestItemID = filters.TestItemID
	return snap, nil
}

// DailyTrend 最近 days 天逐日统计
func (s *Service) DailyTrend(ctx context.Context, days int) ([]models.StatisticsSnapshot, error) {
	if days < 1 {
		days = s.trendDays
	}
	now := s.now()
	start, end := TrendBounds(now, days)

	key := fmt.Sprintf("%strend:%d:%s", CacheKeyPrefix, days, end.Format(models.DateLayout))
	var trend []models.StatisticsSnapshot
	if s.readCache(ctx, key, &trend) && len(trend) == days {
		return trend, nil
	}

	records, err := s.load(ctx, "daily_trend", models.QueryFilters{
		DateFrom: start.Format(models.DateLayout),
		DateTo:   end.Format(models.DateLayout),
	}, false)
	if err != nil {
		return []models.StatisticsSnapshot{}, err
	}
	trend = DailyTrend(records, now, days)
	s.writeCache(ctx, key, trend)
	return trend, nil
}

// PassRateTrend 合格率趋势图
func (s *Service) PassRateTrend(ctx context.Context, days int) (models.ChartSeries, error) {
	trend, err := s.DailyTrend(ctx, days)
	if err != nil {
		return emptySeries(), err
	}
	return PassRateTrendSeries(trend), nil
}

// ByProduct 按产品统计
func (s *Service) ByProduct(ctx context.Context, filters models.QueryFilters) ([]models.ProductStatistics, error) {
	records, err := s.load(ctx, "statistics_by_product", filters, true)
	if err != nil {
		return []models.ProductStatistics{}, err
	}
	return GroupByProduct(records), nil
}

// ByTestItem 按测试项目统计
func (s *Service) ByTestItem(ctx context.Context, filters models.QueryFilters) ([]models.TestItemStatistics, error) {
	records, err := s.load(ctx, "statistics_by_test_item", filters, true)
	if err != nil {
		return []models.TestItemStatistics{}, err
	}
	return GroupByTestItem(records), nil
}

// CategoryDistribution 测试项目分类分布
func (s *Service) CategoryDistribution(ctx context.Context, filters models.QueryFilters) (models.ChartSeries, error) {
	items, err := s.ByTestItem(ctx, filters)
	if err != nil {
		return emptySeries(), err
	}
	return CategoryDistribution(items), nil
}

// Dashboard 仪表盘汇总：今日、本周、本月、趋势
func (s *Service) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	dashboard := &models.Dashboard{TrendDays: s.trendDays, Trend: []models.StatisticsSnapshot{}}
	var err error

	if dashboard.Today, err = s.Today(ctx); err != nil {
		return dashboard, err
	}
	if dashboard.Week, err = s.Week(ctx); err != nil {
		return dashboard, err
	}
	if dashboard.Month, err = s.Month(ctx); err != nil {
		return dashboard, err
	}
	if dashboard.Trend, err = s.DailyTrend(ctx, s.trendDays); err != nil {
		return dashboard, err
	}
	return dashboard, nil
}

// Warmup 预热仪表盘缓存
func (s *Service) Warmup(ctx context.Context) error {
	_, err := s.Dashboard(ctx)
	return err
}

// Invalidate 清除统计缓存
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.DeletePrefix(ctx, CacheKeyPrefix); err != nil {
		slog.Warn("清除统计缓存失败", "error", err)
	}
}

// HandleChange 测试记录变更后清除缓存
func (s *Service) HandleChange(ctx context.Context, event models.ChangeEvent) {
	if event.Table != models.TableTestRecords {
		return
	}
	s.Invalidate(ctx)
}

func (s *Service) load(ctx context.Context, op string, filters models.QueryFilters, withRelations bool) ([]models.TestRecord, error) {
	start := time.Now()
	records, err := s.query.All(ctx, filters, withRelations)
	monitoring.ObserveQuery(op, start, err)
	if err != nil {
		slog.Error("加载统计数据失败", "operation", op, "error", err)
		return nil, err
	}
	return records, nil
}

func (s *Service) readCache(ctx context.Context, key string, dest interface{}) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		slog.Warn("读取统计缓存失败", "key", key, "error", err)
		return false
	}
	return hit
}

func (s *Service) writeCache(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		slog.Warn("写入统计缓存失败", "key", key, "error", err)
	}
}

func emptySeries() models.ChartSeries {
	return models.ChartSeries{Labels: []string{}, Series: []models.ChartDataset{}}
}
