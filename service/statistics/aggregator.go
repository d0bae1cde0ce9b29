/*
 * @module service/statistics/aggregator
 * @description 测试记录统计聚合，计算合格率、时间窗口快照、日趋势、按产品/测试项目/分类汇总
 * @architecture 业务服务层 - 纯函数聚合
 * @documentReference dev_docs/statistics.md
 * @stateFlow 记录集合 + 时间窗口 -> 计数累加 -> 快照/图表序列
 * @rules 合格率 = 合格数/总数×100 保留一位小数，总数为0时为0；周从周一开始；
 *        日趋势长度恒为N且按日期升序补零；分组按首次出现顺序；不修改输入记录
 * @dependencies pvsdm-service/service/models
 * @refs service/statistics/service.go
 */

package statistics

import (
	"math"
	"time"

	"pvsdm-service/service/format"
	"pvsdm-service/service/models"
)

// 图表数据集名称
const (
	PassRateLabel     = "合格率 (%)"
	TestCountLabel    = "测试数量"
	uncategorizedName = "未分类"
)

// PassRate 合格率百分比，保留一位小数
func PassRate(pass, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(pass)/float64(total)*1000) / 10
}

// counter 计数累加器
type counter struct {
	total int
	pass  int
}

func (c *counter) add(r *models.TestRecord) {
	c.total++
	if r.Result == models.ResultPass {
		c.pass++
	}
}

func (c counter) snapshot() models.StatisticsSnapshot {
	return models.StatisticsSnapshot{
		TotalTests: c.total,
		PassCount:  c.pass,
		FailCount:  c.total - c.pass,
		PassRate:   PassRate(c.pass, c.total),
	}
}

// Snapshot 全部记录的统计快照
func Snapshot(records []models.TestRecord) models.StatisticsSnapshot {
	var c counter
	for i := range records {
		c.add(&records[i])
	}
	return c.snapshot()
}

// WindowSnapshot 测试日期在 [start, end] 内（按日历日，含两端）的统计快照
func WindowSnapshot(records []models.TestRecord, start, end time.Time) models.StatisticsSnapshot {
	from, to := models.CalendarDate(start), models.CalendarDate(end)
	var c counter
	for i := range records {
		day := models.CalendarDate(records[i].TestDate)
		if day.Before(from) || day.After(to) {
			continue
		}
		c.add(&records[i])
	}
	return c.snapshot()
}

// TodayBounds 当日窗口
func TodayBounds(now time.Time) (time.Time, time.Time) {
	today := models.CalendarDate(now)
	return today, today
}

// WeekBounds 本周窗口，周一至周日
func WeekBounds(now time.Time) (time.Time, time.Time) {
	today := models.CalendarDate(now)
	offset := (int(today.Weekday()) + 6) % 7
	start := today.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

// MonthBounds 本月窗口，1日至月末
func MonthBounds(now time.Time) (time.Time, time.Time) {
	today := models.CalendarDate(now)
	start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

// TrendBounds 含当日在内最近 days 天的窗口
func TrendBounds(now time.Time, days int) (time.Time, time.Time) {
	if days < 1 {
		days = 1
	}
	today := models.CalendarDate(now)
	return today.AddDate(0, 0, -(days - 1)), today
}

// DailyTrend 含当日在内最近 days 天的逐日快照，按日期升序，无数据的日期补零
func DailyTrend(records []models.TestRecord, now time.Time, days int) []models.StatisticsSnapshot {
	if days < 1 {
		days = 1
	}
	start, end := TrendBounds(now, days)

	counters := make([]counter, days)
	for i := range records {
		day := models.CalendarDate(records[i].TestDate)
		if day.Before(start) || day.After(end) {
			continue
		}
		idx := int(day.Sub(start).Hours() / 24)
		counters[idx].add(&records[i])
	}

	trend := make([]models.StatisticsSnapshot, days)
	for i := range counters {
		trend[i] = counters[i].snapshot()
		trend[i].Date = start.AddDate(0, 0, i).Format(models.DateLayout)
	}
	return trend
}

// GroupByProduct 按产品汇总，结果按产品首次出现顺序
func GroupByProduct(records []models.TestRecord) []models.ProductStatistics {
	index := make(map[string]int)
	groups := make([]models.ProductStatistics, 0)
	counters := make([]counter, 0)

	for i := range records {
		r := &records[i]
		idx, ok := index[r.ProductID]
		if !ok {
			idx = len(groups)
			index[r.ProductID] = idx
			group := models.ProductStatistics{}
			group.ProductID = r.ProductID
			if r.Product != nil {
				group.ProductModel = r.Product.Model
				group.ProductName = r.Product.Name
			}
			groups = append(groups, group)
			counters = append(counters, counter{})
		}
		counters[idx].add(r)
	}

	for i := range groups {
		snap := counters[i].snapshot()
		snap.ProductID = groups[i].ProductID
		groups[i].StatisticsSnapshot = snap
	}
	return groups
}

// GroupByTestItem 按测试项目汇总，结果按测试项目首次出现顺序
func GroupByTestItem(records []models.TestRecord) []models.TestItemStatistics {
	index := make(map[string]int)
	groups := make([]models.TestItemStatistics, 0)
	counters := make([]counter, 0)

	for i := range records {
		r := &records[i]
		idx, ok := index[r.TestItemID]
		if !ok {
			idx = len(groups)
			index[r.TestItemID] = idx
			group := models.TestItemStatistics{}
			group.TestItemID = r.TestItemID
			if r.TestItem != nil {
				group.TestItemName = r.TestItem.Name
				group.Category = r.TestItem.Category
			}
			groups = append(groups, group)
			counters = append(counters, counter{})
		}
		counters[idx].add(r)
	}

	for i := range groups {
		snap := counters[i].snapshot()
		snap.TestItemID = groups[i].TestItemID
		groups[i].StatisticsSnapshot = snap
	}
	return groups
}

// CategoryDistribution 按测试项目分类汇总测试数量，分类按首次出现顺序
func CategoryDistribution(items []models.TestItemStatistics) models.ChartSeries {
	index := make(map[string]int)
	labels := make([]string, 0)
	values := make([]float64, 0)

	for _, item := range items {
		category := item.Category
		if category == "" {
			category = uncategorizedName
		}
		idx, ok := index[category]
		if !ok {
			idx = len(labels)
			index[category] = idx
			labels = append(labels, category)
			values = append(values, 0)
		}
		values[idx] += float64(item.TotalTests)
	}

	return models.ChartSeries{
		Labels: labels,
		Series: []models.ChartDataset{{Label: TestCountLabel, Values: values}},
	}
}

// PassRateTrendSeries 日趋势转为合格率折线图数据，标签为 MM-dd
func PassRateTrendSeries(daily []models.StatisticsSnapshot) models.ChartSeries {
	labels := make([]string, len(daily))
	values := make([]float64, len(daily))
	for i, d := range daily {
		labels[i] = format.FormatDate(d.Date, format.ChartLayout)
		values[i] = d.PassRate
	}
	return models.ChartSeries{
		Labels: labels,
		Series: []models.ChartDataset{{Label: PassRateLabel, Values: values}},
	}
}
