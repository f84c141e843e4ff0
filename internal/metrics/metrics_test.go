package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/upgradekit/internal/host"
)

// TestObserverCounts 测试调用记录计入 expvar
func TestObserverCounts(t *testing.T) {
	before := CallsTotal.Value()
	reverted := CallsReverted.Value()
	upgrades := Upgrades.Value()
	deployments := Deployments.Value()

	var o Observer
	o.OnReceipt(host.Receipt{Method: host.MethodConstructor, Status: host.StatusOK})
	o.OnReceipt(host.Receipt{Method: "upgradeImplementation", Status: host.StatusOK})
	o.OnReceipt(host.Receipt{Method: "upgradeImplementation", Status: host.StatusReverted, Kind: "Unauthorized"})
	o.OnReceipt(host.Receipt{Method: "setValue", Status: host.StatusFailed})

	assert.Equal(t, before+4, CallsTotal.Value())
	assert.Equal(t, reverted+1, CallsReverted.Value())
	assert.Equal(t, upgrades+1, Upgrades.Value())
	assert.Equal(t, deployments+1, Deployments.Value())
	assert.NotNil(t, RevertsByKind.Get("Unauthorized"))
}

// TestStartAsyncServesVars 测试 /debug/vars 可访问
func TestStartAsyncServesVars(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := StartAsync(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	resp, err := http.Get("http://" + s.Addr + "/debug/vars")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), "calls_total")
}
