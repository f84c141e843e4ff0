// Package api 通过 HTTP 暴露代理与计数合约的操作。
package api

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/betbot/upgradekit/internal/host"
	"github.com/betbot/upgradekit/internal/ledger"
)

// CallerHeader 调用方地址请求头
const CallerHeader = "X-Caller"

type Config struct {
	Host          *host.Host
	Ledger        *ledger.Ledger // 可为空：/api/receipts 返回 404
	DefaultCaller common.Address // 请求未带 X-Caller 时使用
}

type Server struct {
	host          *host.Host
	ledger        *ledger.Ledger
	defaultCaller common.Address
	hub           *hub
}

func New(cfg Config) *Server {
	s := &Server{
		host:          cfg.Host,
		ledger:        cfg.Ledger,
		defaultCaller: cfg.DefaultCaller,
		hub:           newHub(),
	}
	cfg.Host.Observe(s.hub)
	return s
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")

	api.POST("/implementations", s.handleImplementationDeploy)

	proxies := api.Group("/proxies")
	proxies.POST("", s.handleProxyDeploy)
	proxies.GET("/:addr", s.handleProxyGet)
	proxies.POST("/:addr/implementation", s.handleProxyUpgrade)
	proxies.PUT("/:addr/value", s.handleProxySetValue)
	proxies.GET("/:addr/value", s.handleProxyGetValue)

	counters := api.Group("/counters")
	counters.POST("", s.handleCounterDeploy)
	counters.GET("/:addr", s.handleCounterGet)
	counters.POST("/:addr/increment", s.handleCounterIncrement)
	counters.POST("/:addr/toggle", s.handleCounterToggle)
	counters.POST("/:addr/migrate", s.handleCounterMigrate)

	api.GET("/receipts", s.handleReceiptsList)
	api.GET("/receipts/stream", s.handleReceiptsStream)

	return r
}

// caller 从请求头解析调用方
func (s *Server) caller(c *gin.Context) (common.Address, bool) {
	raw := strings.TrimSpace(c.GetHeader(CallerHeader))
	if raw == "" {
		return s.defaultCaller, true
	}
	if !common.IsHexAddress(raw) {
		badRequest(c, "invalid "+CallerHeader+" header")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func pathAddress(c *gin.Context) (common.Address, bool) {
	raw := c.Param("addr")
	if !common.IsHexAddress(raw) {
		badRequest(c, "invalid contract address")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}
