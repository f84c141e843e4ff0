package api

import (
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/betbot/upgradekit/internal/host"
	"github.com/betbot/upgradekit/internal/ledger"
)

// hub 把调用记录广播给 SSE 订阅者。
// OnReceipt 在宿主锁内被调用，因此发送不阻塞，订阅者跟不上时丢弃。
type hub struct {
	mu   sync.Mutex
	subs map[chan host.Receipt]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan host.Receipt]struct{})}
}

func (h *hub) subscribe() chan host.Receipt {
	ch := make(chan host.Receipt, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan host.Receipt) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *hub) OnReceipt(r host.Receipt) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- r:
		default:
		}
	}
}

func (s *Server) handleReceiptsList(c *gin.Context) {
	if s.ledger == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "ledger disabled"})
		return
	}
	var f ledger.Filter
	if raw := c.Query("contract"); raw != "" {
		if !common.IsHexAddress(raw) {
			badRequest(c, "invalid contract address")
			return
		}
		addr := common.HexToAddress(raw)
		f.Contract = &addr
	}
	f.Status = host.Status(c.Query("status"))
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "invalid limit")
			return
		}
		f.Limit = n
	}
	out, err := s.ledger.List(c.Request.Context(), f)
	if err != nil {
		writeErr(c, err)
		return
	}
	if out == nil {
		out = []host.Receipt{}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleReceiptsStream(c *gin.Context) {
	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	c.Header("Cache-Control", "no-cache, no-transform")
	c.Header("Connection", "keep-alive")
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case r := <-ch:
			c.SSEvent("receipt", r)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
