package shutdown

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestShutdownRunsInReverseOrderOnce 测试逆序且只执行一次
func TestShutdownRunsInReverseOrderOnce(t *testing.T) {
	m := NewManager()
	var order []string
	for _, name := range []string{"store", "ledger", "http"} {
		name := name
		m.OnShutdown(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"http", "ledger", "store"}, order)
}

// TestShutdownContinuesAfterError 测试回调失败后继续关闭
func TestShutdownContinuesAfterError(t *testing.T) {
	m := NewManager()
	closed := false
	m.OnShutdown("store", func(context.Context) error {
		closed = true
		return nil
	})
	m.OnShutdown("http", func(context.Context) error { return errors.New("boom") })

	err := m.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown http")
	assert.True(t, closed)
}
