// Package app 按配置组装存储、宿主、账本与 HTTP API。
package app

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/betbot/upgradekit/internal/access"
	"github.com/betbot/upgradekit/internal/api"
	"github.com/betbot/upgradekit/internal/host"
	"github.com/betbot/upgradekit/internal/ledger"
	"github.com/betbot/upgradekit/internal/metrics"
	"github.com/betbot/upgradekit/internal/proxy"
	"github.com/betbot/upgradekit/internal/proxy/logic"
	"github.com/betbot/upgradekit/internal/versioned"
	"github.com/betbot/upgradekit/pkg/config"
	"github.com/betbot/upgradekit/pkg/logger"
	"github.com/betbot/upgradekit/pkg/principals"
	"github.com/betbot/upgradekit/pkg/statestore"
)

type App struct {
	Store      statestore.Store
	Host       *host.Host
	Ledger     *ledger.Ledger // ledger.path 为空时为 nil
	API        *api.Server
	Principals []common.Address
}

// NewRegistry 注册全部内置合约代码
func NewRegistry() (*host.Registry, error) {
	reg := host.NewRegistry()
	for _, register := range []func(*host.Registry) error{proxy.Register, logic.Register, versioned.Register} {
		if err := register(reg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// OpenStore 按 storage.backend 打开槽位存储
func OpenStore(cfg config.StorageConfig) (statestore.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return statestore.NewMemory(), nil
	case config.BackendBadger:
		key, err := statestore.ParseEncryptionKey(cfg.EncryptionKey)
		if err != nil {
			return nil, errors.Wrap(err, "storage.encryption_key")
		}
		return statestore.OpenBadger(statestore.BadgerOptions{Path: cfg.Path, EncryptionKey: key})
	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// ResolvePrincipals 有助记词则派生，否则使用固定的本地地址
func ResolvePrincipals(cfg config.PrincipalsConfig) ([]common.Address, error) {
	if cfg.Mnemonic == "" {
		return principals.Fallback(cfg.Count), nil
	}
	return principals.Derive(cfg.Mnemonic, cfg.DerivationBase, cfg.Count)
}

func New(cfg *config.Config) (a *App, err error) {
	a = &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Principals, err = ResolvePrincipals(cfg.Principals)
	if err != nil {
		return nil, errors.Wrap(err, "principals")
	}

	allow := append(append([]common.Address{}, cfg.Access.Allowlist...), a.Principals...)
	policy, err := access.FromName(cfg.Access.Policy, allow)
	if err != nil {
		return nil, err
	}

	reg, err := NewRegistry()
	if err != nil {
		return nil, err
	}

	if a.Store, err = OpenStore(cfg.Storage); err != nil {
		return nil, err
	}

	a.Host, err = host.New(host.Options{Store: a.Store, Registry: reg, Policy: policy})
	if err != nil {
		return nil, err
	}
	a.Host.Observe(metrics.Observer{})

	if cfg.LedgerPath != "" {
		if a.Ledger, err = ledger.Open(cfg.LedgerPath); err != nil {
			return nil, err
		}
		a.Host.Observe(a.Ledger)
	}

	a.API = api.New(api.Config{Host: a.Host, Ledger: a.Ledger, DefaultCaller: a.Principals[0]})

	logger.WithFields(map[string]interface{}{
		"storage": cfg.Storage.Backend,
		"policy":  cfg.Access.Policy,
		"ledger":  cfg.LedgerPath != "",
		"caller":  a.Principals[0].Hex(),
	}).Info("upgradekit initialized")
	return a, nil
}

// Close 关闭账本与存储
func (a *App) Close() error {
	var first error
	if a.Ledger != nil {
		if err := a.Ledger.Close(); err != nil {
			first = errors.Wrap(err, "close ledger")
		}
		a.Ledger = nil
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && first == nil {
			first = errors.Wrap(err, "close store")
		}
		a.Store = nil
	}
	return first
}
