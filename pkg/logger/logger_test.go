package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsPairs(t *testing.T) {
	f := fields([]interface{}{"row", 3, "sheet", "Field mappings"})
	assert.Equal(t, 3, f["row"])
	assert.Equal(t, "Field mappings", f["sheet"])

	// 奇数个参数：最后一个作为 extra
	f = fields([]interface{}{"row", 3, "dangling"})
	assert.Equal(t, "dangling", f["extra"])

	assert.Nil(t, fields(nil))
}

func TestInfoWritesFields(t *testing.T) {
	require.NoError(t, Init(Config{Level: "debug", Format: "json", Output: "console"}))
	var buf bytes.Buffer
	GetLogger().SetOutput(&buf)

	Info("Package date dropped", "field", "Start date", "open_packages", 0)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "Package date dropped", out["msg"])
	assert.Equal(t, "Start date", out["field"])
	assert.Equal(t, logrus.InfoLevel.String(), out["level"])
}
