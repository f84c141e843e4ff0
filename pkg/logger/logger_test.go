package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInitWritesToFile 测试日志写入文件
func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	require.NoError(t, Init(Config{Level: "debug", OutputFile: path, MaxSize: 1}))
	t.Cleanup(func() { Logger = nil })

	assert.Equal(t, logrus.DebugLevel, Logger.GetLevel())
	assert.Equal(t, path, GetCurrentLogFile())

	WithField("contract", "0xabc").Info("deployed")
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "deployed")
	assert.Contains(t, string(b), "contract=0xabc")
}

// TestBadLevelFallsBackToInfo 测试非法级别回退为 info
func TestBadLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init(Config{Level: "loud", JSON: true}))
	t.Cleanup(func() { Logger = nil })
	assert.Equal(t, logrus.InfoLevel, Logger.GetLevel())
	assert.Empty(t, GetCurrentLogFile())
}
