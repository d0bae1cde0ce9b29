package database

import (
	"testing"

	"pvsdm-service/service/models"
	"pvsdm-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoMigrateAndInitializeData(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()

	require.NoError(t, AutoMigrate(tdb.DB))
	require.NoError(t, InitializeData(tdb.DB))
	// 重复执行不产生重复数据
	require.NoError(t, InitializeData(tdb.DB))

	var products []models.Product
	require.NoError(t, tdb.DB.Order("model").Find(&products).Error)
	require.Len(t, products, 2)
	assert.Equal(t, "PV-1000", products[0].Model)

	var items []models.TestItem
	require.NoError(t, tdb.DB.Order("code").Find(&items).Error)
	require.Len(t, items, 3)
	assert.Equal(t, "耐压测试", items[0].Name)
	assert.True(t, items[0].IsActive)
	assert.EqualValues(t, 1500, items[0].PassCriteria["min_voltage"])
}

func TestInitializeDataKeepsExisting(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()

	factory := testutil.NewTestDataFactory(tdb.DB)
	factory.CreateTestItem(func(i *models.TestItem) {
		i.Code = "TEST-001"
		i.Name = "自定义耐压测试"
	})

	require.NoError(t, InitializeData(tdb.DB))

	var item models.TestItem
	require.NoError(t, tdb.DB.Where("code = ?", "TEST-001").First(&item).Error)
	assert.Equal(t, "自定义耐压测试", item.Name)
}

func TestInstallChangeTriggersSkipsSQLite(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	assert.NoError(t, InstallChangeTriggers(tdb.DB))
}
