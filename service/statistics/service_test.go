package statistics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"pvsdm-service/service/cache"
	"pvsdm-service/service/models"
	"pvsdm-service/service/query"
	"pvsdm-service/service/statistics"
	"pvsdm-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type statsFixture struct {
	tdb     *testutil.TestDB
	factory *testutil.TestDataFactory
	product *models.Product
	item    *models.TestItem
}

func newStatsFixture(t *testing.T) *statsFixture {
	t.Helper()
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	factory := testutil.NewTestDataFactory(tdb.DB)
	return &statsFixture{
		tdb:     tdb,
		factory: factory,
		product: factory.CreateProduct(func(p *models.Product) { p.Model = "PV-1500" }),
		item:    factory.CreateTestItem(func(i *models.TestItem) { i.Category = "电气安全" }),
	}
}

func (f *statsFixture) record(date time.Time, result string) {
	f.factory.CreateTestRecord(f.product.ID, f.item.ID, testutil.WithTestDate(date), testutil.WithResult(result))
}

// 2025-01-15 周三
var fixedNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func TestService_Windows(t *testing.T) {
	fx := newStatsFixture(t)
	fx.record(testutil.Date(2025, 1, 15), models.ResultPass)
	fx.record(testutil.Date(2025, 1, 15), models.ResultFail)
	fx.record(testutil.Date(2025, 1, 13), models.ResultPass)
	fx.record(testutil.Date(2025, 1, 12), models.ResultPass)
	fx.record(testutil.Date(2025, 1, 2), models.ResultFail)
	fx.record(testutil.Date(2024, 12, 31), models.ResultPass)

	svc := statistics.NewService(fx.tdb.Store(), statistics.WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()

	today, err := svc.Today(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, today.TotalTests)
	assert.Equal(t, 50.0, today.PassRate)

	week, err := svc.Week(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, week.TotalTests, "周一开始，不含上周日")

	month, err := svc.Month(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, month.TotalTests)
	assert.Equal(t, 2, month.FailCount)
	assert.Equal(t, 60.0, month.PassRate)

	trend, err := svc.DailyTrend(ctx, 7)
	require.NoError(t, err)
	require.Len(t, trend, 7)
	assert.Equal(t, "2025-01-09", trend[0].Date)
	assert.Equal(t, 1, trend[3].TotalTests)
	assert.Equal(t, 2, trend[6].TotalTests)

	chart, err := svc.PassRateTrend(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"01-13", "01-14", "01-15"}, chart.Labels)

	dashboard, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, statistics.DefaultTrendDays, dashboard.TrendDays)
	assert.Len(t, dashboard.Trend, statistics.DefaultTrendDays)
	assert.Equal(t, today, dashboard.Today)
}

func TestService_Grouped(t *testing.T) {
	fx := newStatsFixture(t)
	other := fx.factory.CreateTestItem(func(i *models.TestItem) { i.Name = "效率测试"; i.Category = "性能" })
	fx.record(testutil.Date(2025, 1, 15), models.ResultPass)
	fx.record(testutil.Date(2025, 1, 14), models.ResultFail)
	fx.factory.CreateTestRecord(fx.product.ID, other.ID, testutil.WithTestDate(testutil.Date(2025, 1, 14)))

	svc := statistics.NewService(fx.tdb.Store(), statistics.WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()

	products, err := svc.ByProduct(ctx, models.QueryFilters{})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "PV-1500", products[0].ProductModel)
	assert.Equal(t, 3, products[0].TotalTests)
	assert.Equal(t, 66.7, products[0].PassRate)

	items, err := svc.ByTestItem(ctx, models.QueryFilters{})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	dist, err := svc.CategoryDistribution(ctx, models.QueryFilters{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"电气安全", "性能"}, dist.Labels)

	filtered, err := svc.Filtered(ctx, models.QueryFilters{TestItemID: fx.item.ID, DateFrom: "2025-01-15"})
	require.NoError(t, err)
	assert.Equal(t, 1, filtered.TotalTests)
	assert.Equal(t, fx.item.ID, filtered.TestItemID)
}

func TestService_CacheInvalidation(t *testing.T) {
	fx := newStatsFixture(t)
	fx.record(testutil.Date(2025, 1, 15), models.ResultPass)

	mem := cache.NewMemoryCache()
	svc := statistics.NewService(fx.tdb.Store(),
		statistics.WithClock(func() time.Time { return fixedNow }),
		statistics.WithCache(mem, time.Minute))
	ctx := context.Background()

	first, err := svc.Today(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalTests)
	assert.Equal(t, 1, mem.Len())

	fx.record(testutil.Date(2025, 1, 15), models.ResultFail)

	cached, err := svc.Today(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cached.TotalTests, "命中缓存")

	// 其他表的变更不清除缓存
	svc.HandleChange(ctx, models.NewChangeEvent(models.TableProducts, models.ChangeUpdate, fx.product.ID, nil))
	assert.Equal(t, 1, mem.Len())

	svc.HandleChange(ctx, models.NewChangeEvent(models.TableTestRecords, models.ChangeInsert, "r", nil))
	assert.Equal(t, 0, mem.Len())

	fresh, err := svc.Today(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.TotalTests)
	assert.Equal(t, 50.0, fresh.PassRate)
}

func TestService_QueryFailure(t *testing.T) {
	store := new(testutil.MockStore)
	store.On("Select", mock.Anything, models.TableTestRecords, mock.Anything, mock.Anything).
		Return(int64(0), errors.New("connection refused"))

	svc := statistics.NewService(store, statistics.WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()

	snap, err := svc.Today(ctx)
	var failure *query.QueryFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, models.StatisticsSnapshot{}, snap)

	trend, err := svc.DailyTrend(ctx, 7)
	assert.Error(t, err)
	assert.NotNil(t, trend)
	assert.Empty(t, trend)

	chart, err := svc.CategoryDistribution(ctx, models.QueryFilters{})
	assert.Error(t, err)
	assert.Empty(t, chart.Labels)
	assert.NotNil(t, chart.Series)
}
