package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithService(t *testing.T) {
	entry := NewLoggerWithService("pin-bot", logrus.InfoLevel)

	var buf bytes.Buffer
	entry.Logger.SetOutput(&buf)
	entry.WithField("message", "C1:M1").Info("ピン状態を更新しました")
	entry.Debug("出力されない")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "pin-bot", line["service"])
	assert.Equal(t, "C1:M1", line["message"])
	assert.Equal(t, "info", line["level"])
}
