package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONB_Scan(t *testing.T) {
	var j JSONB
	require.NoError(t, j.Scan([]byte(`{"voltage": 1500, "duration": 60}`)))
	assert.EqualValues(t, 1500, j["voltage"])

	require.NoError(t, j.Scan(`{"resistance": 1000}`))
	assert.EqualValues(t, 1000, j["resistance"])
	assert.NotContains(t, j, "voltage", "重新扫描覆盖旧值")

	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j)

	require.NoError(t, j.Scan(""))
	assert.Equal(t, JSONB{}, j)

	assert.Error(t, j.Scan(42))
	assert.Error(t, j.Scan("not json"))
}

func TestJSONB_Value(t *testing.T) {
	v, err := JSONB(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)

	v, err = JSONB{"value": "OK"}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"OK"}`, v.(string))
}
