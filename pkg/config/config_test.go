package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
log:
  level: debug
  file: logs/server.log
  compress: false
storage:
  backend: Badger
  path: data/state
ledger:
  path: data/ledger.db
access:
  policy: allowlist
  allowlist:
    - "0x3000000000000000000000000000000000000003"
server:
  listen: ":9090"
  metrics_listen: "127.0.0.1:6060"
principals:
  count: 3
`

// TestParse 测试解析 YAML 配置
func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "logs/server.log", cfg.Log.File)
	assert.False(t, cfg.Log.Compress)
	assert.Equal(t, 100, cfg.Log.MaxSize, "defaults kept")
	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, "data/state", cfg.Storage.Path)
	assert.Equal(t, "data/ledger.db", cfg.LedgerPath)
	assert.Equal(t, "allowlist", cfg.Access.Policy)
	assert.Equal(t, []common.Address{common.HexToAddress("0x3000000000000000000000000000000000000003")}, cfg.Access.Allowlist)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "127.0.0.1:6060", cfg.Server.MetricsListen)
	assert.Equal(t, 3, cfg.Principals.Count)
	assert.Equal(t, "m/44'/60'/0'/0", cfg.Principals.DerivationBase)
}

// TestParseRejectsBadValues 测试非法配置
func TestParseRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"badger without path": "storage:\n  backend: badger\n",
		"unknown backend":     "storage:\n  backend: redis\n",
		"unknown policy":      "access:\n  policy: multisig\n",
		"bad allowlist":       "access:\n  allowlist: [\"nope\"]\n",
		"not yaml":            "log: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

// TestEnvOverrides 测试环境变量覆盖
func TestEnvOverrides(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"UPGRADEKIT_STORAGE_BACKEND": "BADGER",
		"UPGRADEKIT_STORAGE_PATH":    "/tmp/state",
		"UPGRADEKIT_ACCESS_POLICY":   "Open",
		"UPGRADEKIT_PRINCIPALS":      "4",
		"UPGRADEKIT_LISTEN":          " ",
	}
	require.NoError(t, cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, "/tmp/state", cfg.Storage.Path)
	assert.Equal(t, "open", cfg.Access.Policy)
	assert.Equal(t, 4, cfg.Principals.Count)
	assert.Equal(t, ":8080", cfg.Server.Listen, "blank values are ignored")

	env["UPGRADEKIT_PRINCIPALS"] = "many"
	assert.Error(t, cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
}

// TestLoadFromFile 测试从文件加载
func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen: \":7070\"\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Server.Listen)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
