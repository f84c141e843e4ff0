package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// 存储后端
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
	JSON       bool
}

// StorageConfig 槽位存储配置
type StorageConfig struct {
	Backend       string // memory | badger
	Path          string // badger 目录
	EncryptionKey string // 32 字节 hex/base64，可选
}

// AccessConfig 管理性操作授权
type AccessConfig struct {
	Policy    string // open | owner | allowlist
	Allowlist []common.Address
}

// ServerConfig HTTP 服务
type ServerConfig struct {
	Listen        string
	MetricsListen string // 为空则不启动 expvar/pprof
}

// PrincipalsConfig 从助记词派生调用方地址
type PrincipalsConfig struct {
	Mnemonic       string
	DerivationBase string // 例如 m/44'/60'/0'/0
	Count          int
}

// Config 应用配置
type Config struct {
	Log        LogConfig
	Storage    StorageConfig
	LedgerPath string // sqlite 文件；为空则不记录调用
	Access     AccessConfig
	Server     ServerConfig
	Principals PrincipalsConfig
}

// ConfigFile 配置文件结构（YAML）
type ConfigFile struct {
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   *bool  `yaml:"compress"`
		JSON       bool   `yaml:"json"`
	} `yaml:"log"`
	Storage struct {
		Backend       string `yaml:"backend"`
		Path          string `yaml:"path"`
		EncryptionKey string `yaml:"encryption_key"`
	} `yaml:"storage"`
	Ledger struct {
		Path string `yaml:"path"`
	} `yaml:"ledger"`
	Access struct {
		Policy    string   `yaml:"policy"`
		Allowlist []string `yaml:"allowlist"`
	} `yaml:"access"`
	Server struct {
		Listen        string `yaml:"listen"`
		MetricsListen string `yaml:"metrics_listen"`
	} `yaml:"server"`
	Principals struct {
		Mnemonic       string `yaml:"mnemonic"`
		DerivationBase string `yaml:"derivation_base"`
		Count          int    `yaml:"count"`
	} `yaml:"principals"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		Storage: StorageConfig{Backend: BackendMemory},
		Access:  AccessConfig{Policy: "owner"},
		Server:  ServerConfig{Listen: ":8080"},
		Principals: PrincipalsConfig{
			DerivationBase: "m/44'/60'/0'/0",
			Count:          1,
		},
	}
}

// LoadFromFile 从 YAML 文件加载配置；path 为空时只使用默认值与环境变量。
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := cfg.applyYAML(b); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse 从 YAML 内容解析（不读取环境变量）
func Parse(b []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.applyYAML(b); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyYAML(b []byte) error {
	var f ConfigFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return err
	}

	if f.Log.Level != "" {
		c.Log.Level = f.Log.Level
	}
	c.Log.File = f.Log.File
	if f.Log.MaxSize > 0 {
		c.Log.MaxSize = f.Log.MaxSize
	}
	if f.Log.MaxBackups > 0 {
		c.Log.MaxBackups = f.Log.MaxBackups
	}
	if f.Log.MaxAge > 0 {
		c.Log.MaxAge = f.Log.MaxAge
	}
	if f.Log.Compress != nil {
		c.Log.Compress = *f.Log.Compress
	}
	c.Log.JSON = f.Log.JSON

	if f.Storage.Backend != "" {
		c.Storage.Backend = strings.ToLower(f.Storage.Backend)
	}
	c.Storage.Path = f.Storage.Path
	c.Storage.EncryptionKey = f.Storage.EncryptionKey

	c.LedgerPath = f.Ledger.Path

	if f.Access.Policy != "" {
		c.Access.Policy = strings.ToLower(f.Access.Policy)
	}
	for _, s := range f.Access.Allowlist {
		addr, err := parseAddress(s)
		if err != nil {
			return errors.Wrap(err, "access.allowlist")
		}
		c.Access.Allowlist = append(c.Access.Allowlist, addr)
	}

	if f.Server.Listen != "" {
		c.Server.Listen = f.Server.Listen
	}
	c.Server.MetricsListen = f.Server.MetricsListen

	c.Principals.Mnemonic = f.Principals.Mnemonic
	if f.Principals.DerivationBase != "" {
		c.Principals.DerivationBase = f.Principals.DerivationBase
	}
	if f.Principals.Count > 0 {
		c.Principals.Count = f.Principals.Count
	}
	return nil
}

// applyEnv 环境变量覆盖（UPGRADEKIT_*）
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("UPGRADEKIT_LOG_LEVEL", &c.Log.Level)
	str("UPGRADEKIT_LOG_FILE", &c.Log.File)
	str("UPGRADEKIT_STORAGE_BACKEND", &c.Storage.Backend)
	str("UPGRADEKIT_STORAGE_PATH", &c.Storage.Path)
	str("UPGRADEKIT_STORAGE_KEY", &c.Storage.EncryptionKey)
	str("UPGRADEKIT_LEDGER_PATH", &c.LedgerPath)
	str("UPGRADEKIT_ACCESS_POLICY", &c.Access.Policy)
	str("UPGRADEKIT_LISTEN", &c.Server.Listen)
	str("UPGRADEKIT_METRICS_LISTEN", &c.Server.MetricsListen)
	str("UPGRADEKIT_MNEMONIC", &c.Principals.Mnemonic)

	if v, ok := lookup("UPGRADEKIT_PRINCIPALS"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("UPGRADEKIT_PRINCIPALS: %w", err)
		}
		c.Principals.Count = n
	}
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	c.Access.Policy = strings.ToLower(c.Access.Policy)
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendBadger:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return errors.New("storage.path is required for the badger backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.Access.Policy {
	case "open", "owner", "allowlist":
	default:
		return fmt.Errorf("unknown access.policy %q", c.Access.Policy)
	}
	if c.Principals.Count < 1 {
		return errors.New("principals.count must be >= 1")
	}
	return nil
}

func parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
