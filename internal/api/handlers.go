package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/betbot/upgradekit/internal/host"
	"github.com/betbot/upgradekit/internal/proxy"
	"github.com/betbot/upgradekit/internal/proxy/logic"
	"github.com/betbot/upgradekit/internal/versioned"
)

type AddressResponse struct {
	Address common.Address `json:"address"`
}

type ImplementationDeployRequest struct {
	Kind string `json:"kind"` // plain | guarded
}

type UpgradeRequest struct {
	Implementation string `json:"implementation"`
}

type ValueRequest struct {
	Value string `json:"value"`
}

type ValueResponse struct {
	Value string `json:"value"`
}

type ProxyResponse struct {
	Address        common.Address `json:"address"`
	Implementation common.Address `json:"implementation"`
}

type CounterDeployRequest struct {
	Version        int    `json:"version"`
	InitialCounter string `json:"initial_counter,omitempty"`
}

type MigrateRequest struct {
	Version int    `json:"version"`
	Reseed  string `json:"reseed,omitempty"`
}

type CounterResponse struct {
	Address common.Address `json:"address"`
	Version int            `json:"version"`
	Counter string         `json:"counter"`
	Paused  bool           `json:"paused"`
}

func (s *Server) handleImplementationDeploy(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req ImplementationDeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	code, found := logic.ByName(req.Kind)
	if !found {
		badRequest(c, "unknown implementation kind: "+req.Kind)
		return
	}
	addr, err := s.host.Deploy(c.Request.Context(), caller, code, nil)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, AddressResponse{Address: addr})
}

func (s *Server) handleProxyDeploy(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	p, err := proxy.Deploy(c.Request.Context(), s.host, caller)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, AddressResponse{Address: p.Address()})
}

func (s *Server) handleProxyGet(c *gin.Context) {
	addr, ok := pathAddress(c)
	if !ok {
		return
	}
	impl, err := proxy.Attach(s.host, addr).Implementation(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ProxyResponse{Address: addr, Implementation: impl})
}

func (s *Server) handleProxyUpgrade(c *gin.Context) {
	addr, ok := pathAddress(c)
	if !ok {
		return
	}
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !common.IsHexAddress(req.Implementation) {
		badRequest(c, "invalid implementation address")
		return
	}
	impl := common.HexToAddress(req.Implementation)
	if err := proxy.Attach(s.host, addr).UpgradeImplementation(c.Request.Context(), caller, impl); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ProxyResponse{Address: addr, Implementation: impl})
}

func (s *Server) handleProxySetValue(c *gin.Context) {
	addr, ok := pathAddress(c)
	if !ok {
		return
	}
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req ValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	v, err := parseUint256(req.Value)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := proxy.Attach(s.host, addr).SetValue(c.Request.Context(), caller, v); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ValueResponse{Value: v.ToBig().String()})
}

func (s *Server) handleProxyGetValue(c *gin.Context) {
	addr, ok := pathAddress(c)
	if !ok {
		return
	}
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	v, err := proxy.Attach(s.host, addr).GetValue(c.Request.Context(), caller)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ValueResponse{Value: v.ToBig().String()})
}

func (s *Server) handleCounterDeploy(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req CounterDeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var (
		ct  *versioned.Contract
		err error
	)
	switch req.Version {
	case 1:
		if req.InitialCounter != "" {
			badRequest(c, "version 1 has no initial_counter")
			return
		}
		ct, err = versioned.DeployV1(ctx, s.host, caller)
	case 2:
		seed, perr := parseBig(defaultZero(req.InitialCounter))
		if perr != nil {
			badRequest(c, perr.Error())
			return
		}
		ct, err = versioned.DeployV2(ctx, s.host, caller, seed)
	default:
		badRequest(c, "version must be 1 or 2")
		return
	}
	if err != nil {
		writeErr(c, err)
		return
	}
	s.writeCounter(c, http.StatusCreated, ct)
}

func (s *Server) handleCounterGet(c *gin.Context) {
	addr, ok := pathAddress(c)
	if !ok {
		return
	}
	s.writeCounter(c, http.StatusOK, versioned.Attach(s.host, addr))
}

func (s *Server) handleCounterIncrement(c *gin.Context) {
	s.counterCall(c, func(ct *versioned.Contract, caller common.Address) error {
		return ct.IncrementCounter(c.Request.Context(), caller)
	})
}

func (s *Server) handleCounterToggle(c *gin.Context) {
	s.counterCall(c, func(ct *versioned.Contract, caller common.Address) error {
		return ct.Toggle(c.Request.Context(), caller)
	})
}

func (s *Server) handleCounterMigrate(c *gin.Context) {
	var req MigrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	var to host.Code
	switch req.Version {
	case 1:
		to = versioned.V1{}
	case 2:
		to = versioned.V2{}
	default:
		badRequest(c, "version must be 1 or 2")
		return
	}
	var opts versioned.MigrateOptions
	if req.Reseed != "" {
		seed, err := parseBig(req.Reseed)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		opts.Reseed = seed
	}
	s.counterCall(c, func(ct *versioned.Contract, caller common.Address) error {
		return ct.Migrate(c.Request.Context(), caller, to, opts)
	})
}

func (s *Server) counterCall(c *gin.Context, fn func(*versioned.Contract, common.Address) error) {
	addr, ok := pathAddress(c)
	if !ok {
		return
	}
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	ct := versioned.Attach(s.host, addr)
	if err := fn(ct, caller); err != nil {
		writeErr(c, err)
		return
	}
	s.writeCounter(c, http.StatusOK, ct)
}

func (s *Server) writeCounter(c *gin.Context, status int, ct *versioned.Contract) {
	ctx := c.Request.Context()
	v, err := ct.Version(ctx)
	if err != nil {
		writeErr(c, err)
		return
	}
	st, err := ct.State(ctx)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(status, CounterResponse{
		Address: ct.Address(),
		Version: v,
		Counter: st.Counter.ToBig().String(),
		Paused:  st.Paused,
	})
}

func defaultZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
