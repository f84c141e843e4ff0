package api

import (
	"math/big"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/betbot/upgradekit/internal/revert"
	"github.com/betbot/upgradekit/pkg/logger"
)

// ErrorResponse 失败响应体
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// writeErr 回滚 -> 409（未授权 403），其他 -> 500
func writeErr(c *gin.Context, err error) {
	var re *revert.Error
	if errors.As(err, &re) {
		status := http.StatusConflict
		if re.Kind == revert.KindUnauthorized {
			status = http.StatusForbidden
		}
		c.AbortWithStatusJSON(status, ErrorResponse{Error: re.Reason, Kind: re.Kind.String()})
		return
	}
	logger.Errorf("api: %s %s: %v", c.Request.Method, c.FullPath(), err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

// parseUint256 解析十进制字符串
func parseUint256(s string) (*uint256.Int, error) {
	b, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, errors.Errorf("invalid integer %q", s)
	}
	if b.Sign() < 0 {
		return nil, errors.Errorf("integer %q is negative", s)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, errors.Errorf("integer %q does not fit 256 bits", s)
	}
	return v, nil
}

// parseBig 解析可能为负的十进制字符串（由合约层做范围校验）
func parseBig(s string) (*big.Int, error) {
	b, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, errors.Errorf("invalid integer %q", s)
	}
	return b, nil
}
