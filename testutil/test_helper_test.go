package testutil

import (
	"testing"

	"pvsdm-service/service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTestItem_ActiveFlag(t *testing.T) {
	tdb := NewTestDB()
	defer tdb.Close()
	factory := NewTestDataFactory(tdb.DB)

	active := factory.CreateTestItem()
	inactive := factory.CreateTestItem(func(i *models.TestItem) { i.IsActive = false })

	assert.True(t, active.IsActive)
	assert.False(t, inactive.IsActive)

	var stored models.TestItem
	require.NoError(t, tdb.DB.First(&stored, "id = ?", inactive.ID).Error)
	assert.False(t, stored.IsActive, "停用状态需要落库")

	require.NoError(t, tdb.DB.First(&stored, "id = ?", active.ID).Error)
	assert.True(t, stored.IsActive)
}
