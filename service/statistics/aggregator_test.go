package statistics

import (
	"testing"
	"time"

	"pvsdm-service/service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rec(date time.Time, result, productID, itemID string) models.TestRecord {
	return models.TestRecord{TestDate: date, Result: result, ProductID: productID, TestItemID: itemID}
}

func TestPassRate(t *testing.T) {
	assert.Equal(t, 0.0, PassRate(0, 0))
	assert.Equal(t, 100.0, PassRate(3, 3))
	assert.Equal(t, 66.7, PassRate(2, 3))
	assert.Equal(t, 33.3, PassRate(1, 3))
	assert.Equal(t, 12.5, PassRate(1, 8))
	assert.Equal(t, 0.0, PassRate(0, 7))

	for total := 0; total <= 50; total++ {
		for pass := 0; pass <= total; pass++ {
			rate := PassRate(pass, total)
			assert.GreaterOrEqual(t, rate, 0.0)
			assert.LessOrEqual(t, rate, 100.0)
			assert.InDelta(t, rate*10, float64(int64(rate*10+0.5)), 1e-6, "保留一位小数")
		}
	}
}

func TestWindowSnapshot(t *testing.T) {
	records := []models.TestRecord{
		rec(day(2025, 1, 13), models.ResultPass, "p1", "t1"),
		rec(day(2025, 1, 15), models.ResultFail, "p1", "t1"),
		rec(day(2025, 1, 19), models.ResultPass, "p1", "t1"),
		rec(day(2025, 1, 20), models.ResultPass, "p1", "t1"),
	}

	snap := WindowSnapshot(records, day(2025, 1, 13), day(2025, 1, 19))
	assert.Equal(t, 3, snap.TotalTests)
	assert.Equal(t, 2, snap.PassCount)
	assert.Equal(t, 1, snap.FailCount)
	assert.Equal(t, 66.7, snap.PassRate)

	empty := WindowSnapshot(records, day(2024, 1, 1), day(2024, 1, 31))
	assert.Equal(t, models.StatisticsSnapshot{}, empty)
}

func TestCalendarBounds(t *testing.T) {
	// 2025-01-15 为周三
	now := time.Date(2025, 1, 15, 17, 30, 0, 0, time.UTC)

	start, end := TodayBounds(now)
	assert.Equal(t, day(2025, 1, 15), start)
	assert.Equal(t, day(2025, 1, 15), end)

	start, end = WeekBounds(now)
	assert.Equal(t, day(2025, 1, 13), start)
	assert.Equal(t, day(2025, 1, 19), end)

	// 周日属于前一个周一开始的周
	start, end = WeekBounds(day(2025, 1, 19))
	assert.Equal(t, day(2025, 1, 13), start)
	assert.Equal(t, day(2025, 1, 19), end)

	start, end = WeekBounds(day(2025, 1, 13))
	assert.Equal(t, day(2025, 1, 13), start)

	start, end = MonthBounds(now)
	assert.Equal(t, day(2025, 1, 1), start)
	assert.Equal(t, day(2025, 1, 31), end)

	start, end = MonthBounds(day(2024, 2, 10))
	assert.Equal(t, day(2024, 2, 1), start)
	assert.Equal(t, day(2024, 2, 29), end)
}

func TestDailyTrend(t *testing.T) {
	now := day(2025, 1, 15)
	records := []models.TestRecord{
		rec(day(2025, 1, 15), models.ResultPass, "p1", "t1"),
		rec(day(2025, 1, 15), models.ResultFail, "p1", "t1"),
		rec(day(2025, 1, 13), models.ResultPass, "p1", "t1"),
		rec(day(2025, 1, 1), models.ResultPass, "p1", "t1"),
	}

	trend := DailyTrend(records, now, 7)
	require.Len(t, trend, 7)
	assert.Equal(t, "2025-01-09", trend[0].Date)
	assert.Equal(t, "2025-01-15", trend[6].Date)
	assert.Equal(t, 1, trend[4].TotalTests)
	assert.Equal(t, 100.0, trend[4].PassRate)
	assert.Equal(t, 0, trend[5].TotalTests, "无数据日期补零")
	assert.Equal(t, 0.0, trend[5].PassRate)
	assert.Equal(t, 2, trend[6].TotalTests)
	assert.Equal(t, 50.0, trend[6].PassRate)

	for n := 1; n <= 60; n++ {
		assert.Len(t, DailyTrend(nil, now, n), n)
	}
	assert.Len(t, DailyTrend(records, now, 0), 1)
}

func TestGroupByProduct(t *testing.T) {
	p2 := &models.Product{ID: "p2", Model: "PV-3000", Name: "3000W"}
	p1 := &models.Product{ID: "p1", Model: "PV-1500", Name: "1500W"}
	records := []models.TestRecord{
		{ProductID: "p2", Product: p2, Result: models.ResultPass},
		{ProductID: "p1", Product: p1, Result: models.ResultFail},
		{ProductID: "p2", Product: p2, Result: models.ResultFail},
		{ProductID: "p2", Product: p2, Result: models.ResultPass},
	}

	groups := GroupByProduct(records)
	require.Len(t, groups, 2)
	assert.Equal(t, "p2", groups[0].ProductID, "首次出现顺序")
	assert.Equal(t, "PV-3000", groups[0].ProductModel)
	assert.Equal(t, 3, groups[0].TotalTests)
	assert.Equal(t, 2, groups[0].PassCount)
	assert.Equal(t, 1, groups[0].FailCount)
	assert.Equal(t, 66.7, groups[0].PassRate)
	assert.Equal(t, "p1", groups[1].ProductID)
	assert.Equal(t, 0.0, groups[1].PassRate)

	assert.Empty(t, GroupByProduct(nil))
}

func TestGroupByTestItemAndCategory(t *testing.T) {
	hv := &models.TestItem{ID: "t1", Name: "耐压测试", Category: "电气安全"}
	ir := &models.TestItem{ID: "t2", Name: "绝缘电阻测试", Category: "电气安全"}
	eff := &models.TestItem{ID: "t3", Name: "效率测试", Category: "性能"}
	records := []models.TestRecord{
		{TestItemID: "t3", TestItem: eff, Result: models.ResultPass},
		{TestItemID: "t1", TestItem: hv, Result: models.ResultPass},
		{TestItemID: "t2", TestItem: ir, Result: models.ResultFail},
		{TestItemID: "t1", TestItem: hv, Result: models.ResultPass},
	}

	items := GroupByTestItem(records)
	require.Len(t, items, 3)
	assert.Equal(t, "t3", items[0].TestItemID)
	assert.Equal(t, "耐压测试", items[1].TestItemName)
	assert.Equal(t, 2, items[1].TotalTests)

	dist := CategoryDistribution(items)
	assert.Equal(t, []string{"性能", "电气安全"}, dist.Labels)
	require.Len(t, dist.Series, 1)
	assert.Equal(t, TestCountLabel, dist.Series[0].Label)
	assert.Equal(t, []float64{1, 3}, dist.Series[0].Values)
}

func TestPassRateTrendSeries(t *testing.T) {
	trend := DailyTrend([]models.TestRecord{
		rec(day(2025, 1, 15), models.ResultPass, "p1", "t1"),
		rec(day(2025, 1, 15), models.ResultFail, "p1", "t1"),
	}, day(2025, 1, 15), 3)

	series := PassRateTrendSeries(trend)
	assert.Equal(t, []string{"01-13", "01-14", "01-15"}, series.Labels)
	require.Len(t, series.Series, 1)
	assert.Equal(t, PassRateLabel, series.Series[0].Label)
	assert.Equal(t, []float64{0, 0, 50}, series.Series[0].Values)
}
