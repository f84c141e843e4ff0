// Package client 是 upgradekit HTTP API 的 resty 客户端。
package client

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/betbot/upgradekit/internal/api"
	"github.com/betbot/upgradekit/internal/host"
	"github.com/betbot/upgradekit/internal/revert"
)

// APIError 非回滚类失败（参数错误、服务端错误）
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upgradekit api: status %d: %s", e.Status, e.Message)
}

type Client struct {
	client *resty.Client
	caller string
}

type Option func(*Client)

// WithCaller 每个请求都带上 X-Caller
func WithCaller(addr common.Address) Option {
	return func(c *Client) { c.caller = addr.Hex() }
}

// WithTimeout 覆盖默认 30s 超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.SetTimeout(d) }
}

// WithRetries 只对 GET 的网络错误和 5xx 重试；写操作不重试。
func WithRetries(n int) Option {
	return func(c *Client) {
		c.client.
			SetRetryCount(n).
			SetRetryWaitTime(200 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			AddRetryCondition(func(resp *resty.Response, err error) bool {
				if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
					return false
				}
				return err != nil || resp.StatusCode() >= http.StatusInternalServerError
			})
	}
}

func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	c := &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", "upgradekit-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R().SetError(&api.ErrorResponse{})
	if ctx != nil {
		r.SetContext(ctx)
	}
	if c.caller != "" {
		r.SetHeader(api.CallerHeader, c.caller)
	}
	return r
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	r := c.newRequest(ctx)
	if body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		r.SetResult(out)
	}
	resp, err := r.Execute(method, endpoint)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, endpoint)
	}
	if resp.IsError() {
		return decodeError(resp)
	}
	return nil
}

// decodeError 带 kind 的响应还原为 *revert.Error，便于 errors.Is 比较。
func decodeError(resp *resty.Response) error {
	e, _ := resp.Error().(*api.ErrorResponse)
	if e == nil || (e.Error == "" && e.Kind == "") {
		return &APIError{Status: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	}
	if e.Kind != "" {
		return revert.New(revert.ParseKind(e.Kind), e.Error)
	}
	return &APIError{Status: resp.StatusCode(), Message: e.Error}
}

// Health 检查服务是否可用
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// DeployImplementation 部署值逻辑实现（plain | guarded）
func (c *Client) DeployImplementation(ctx context.Context, kind string) (common.Address, error) {
	var out api.AddressResponse
	err := c.do(ctx, http.MethodPost, "/api/implementations", api.ImplementationDeployRequest{Kind: kind}, &out)
	return out.Address, err
}

func (c *Client) DeployProxy(ctx context.Context) (common.Address, error) {
	var out api.AddressResponse
	err := c.do(ctx, http.MethodPost, "/api/proxies", nil, &out)
	return out.Address, err
}

func (c *Client) Implementation(ctx context.Context, proxy common.Address) (common.Address, error) {
	var out api.ProxyResponse
	err := c.do(ctx, http.MethodGet, "/api/proxies/"+proxy.Hex(), nil, &out)
	return out.Implementation, err
}

func (c *Client) UpgradeImplementation(ctx context.Context, proxy, impl common.Address) error {
	return c.do(ctx, http.MethodPost, "/api/proxies/"+proxy.Hex()+"/implementation",
		api.UpgradeRequest{Implementation: impl.Hex()}, nil)
}

func (c *Client) SetValue(ctx context.Context, proxy common.Address, v *big.Int) error {
	return c.do(ctx, http.MethodPut, "/api/proxies/"+proxy.Hex()+"/value",
		api.ValueRequest{Value: v.String()}, nil)
}

func (c *Client) GetValue(ctx context.Context, proxy common.Address) (*big.Int, error) {
	var out api.ValueResponse
	if err := c.do(ctx, http.MethodGet, "/api/proxies/"+proxy.Hex()+"/value", nil, &out); err != nil {
		return nil, err
	}
	return parseBig(out.Value)
}

// Counter 计数合约的快照
type Counter struct {
	Address common.Address
	Version int
	Counter *big.Int
	Paused  bool
}

func toCounter(r api.CounterResponse) (*Counter, error) {
	n, err := parseBig(r.Counter)
	if err != nil {
		return nil, err
	}
	return &Counter{Address: r.Address, Version: r.Version, Counter: n, Paused: r.Paused}, nil
}

// DeployCounter 部署 v1 或 v2；initial 仅对 v2 有效，可为 nil。
func (c *Client) DeployCounter(ctx context.Context, version int, initial *big.Int) (*Counter, error) {
	req := api.CounterDeployRequest{Version: version}
	if initial != nil {
		req.InitialCounter = initial.String()
	}
	return c.counter(ctx, http.MethodPost, "/api/counters", req)
}

func (c *Client) Counter(ctx context.Context, addr common.Address) (*Counter, error) {
	return c.counter(ctx, http.MethodGet, "/api/counters/"+addr.Hex(), nil)
}

func (c *Client) Increment(ctx context.Context, addr common.Address) (*Counter, error) {
	return c.counter(ctx, http.MethodPost, "/api/counters/"+addr.Hex()+"/increment", nil)
}

func (c *Client) Toggle(ctx context.Context, addr common.Address) (*Counter, error) {
	return c.counter(ctx, http.MethodPost, "/api/counters/"+addr.Hex()+"/toggle", nil)
}

// Migrate 原地替换为目标版本；reseed 可为 nil。
func (c *Client) Migrate(ctx context.Context, addr common.Address, version int, reseed *big.Int) (*Counter, error) {
	req := api.MigrateRequest{Version: version}
	if reseed != nil {
		req.Reseed = reseed.String()
	}
	return c.counter(ctx, http.MethodPost, "/api/counters/"+addr.Hex()+"/migrate", req)
}

func (c *Client) counter(ctx context.Context, method, endpoint string, body any) (*Counter, error) {
	var out api.CounterResponse
	if err := c.do(ctx, method, endpoint, body, &out); err != nil {
		return nil, err
	}
	return toCounter(out)
}

// ReceiptQuery /api/receipts 过滤条件
type ReceiptQuery struct {
	Contract *common.Address
	Status   host.Status
	Limit    int
}

func (c *Client) Receipts(ctx context.Context, q ReceiptQuery) ([]host.Receipt, error) {
	r := c.newRequest(ctx)
	if q.Contract != nil {
		r.SetQueryParam("contract", q.Contract.Hex())
	}
	if q.Status != "" {
		r.SetQueryParam("status", string(q.Status))
	}
	if q.Limit > 0 {
		r.SetQueryParam("limit", fmt.Sprint(q.Limit))
	}
	var out []host.Receipt
	resp, err := r.SetResult(&out).Get("/api/receipts")
	if err != nil {
		return nil, errors.Wrap(err, "GET /api/receipts")
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return out, nil
}

func parseBig(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("invalid integer %q in response", s)
	}
	return n, nil
}
