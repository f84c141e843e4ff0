package metrics

import (
	"expvar"

	"github.com/betbot/upgradekit/internal/host"
)

var (
	CallsTotal    = expvar.NewInt("calls_total")
	CallsReverted = expvar.NewInt("calls_reverted")
	CallsFailed   = expvar.NewInt("calls_failed")
	Deployments   = expvar.NewInt("deployments")
	Upgrades      = expvar.NewInt("upgrades")
	RevertsByKind = expvar.NewMap("reverts_by_kind")
	CallsByMethod = expvar.NewMap("calls_by_method")
)

// upgradeMethods 计入 upgrades 的方法
var upgradeMethods = map[string]bool{
	"upgradeImplementation": true,
	"migrate":               true,
}

// Observer 把调用记录计入 expvar
type Observer struct{}

func (Observer) OnReceipt(r host.Receipt) {
	CallsTotal.Add(1)
	CallsByMethod.Add(r.Method, 1)
	switch r.Status {
	case host.StatusOK:
		if r.Method == host.MethodConstructor {
			Deployments.Add(1)
		}
		if upgradeMethods[r.Method] {
			Upgrades.Add(1)
		}
	case host.StatusReverted:
		CallsReverted.Add(1)
		RevertsByKind.Add(r.Kind, 1)
	default:
		CallsFailed.Add(1)
	}
}
