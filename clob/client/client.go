// Package client 封装 Polymarket CLOB / Gamma API 访问：
// 市场描述符获取、订单签名（go-order-utils）与下单、API 密钥派生。
package client

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/sirupsen/logrus"

	"github.com/betbot/updown/clob/types"
	"github.com/betbot/updown/pkg/ratelimit"
)

const (
	DefaultCLOBHost  = "https://clob.polymarket.com"
	DefaultGammaHost = "https://gamma-api.polymarket.com"
)

// Config 客户端配置。PrivateKey/Creds 为空时仅支持公开端点（市场查询）。
type Config struct {
	Host       string
	GammaHost  string
	ChainID    types.Chain
	ProxyURL   string
	PrivateKey *ecdsa.PrivateKey
	Creds      *types.ApiKeyCreds

	// FunderAddress 代理钱包地址；为空时 maker 即签名地址（EOA）
	FunderAddress string
	SignatureType types.SignatureType
}

// Client CLOB 客户端
type Client struct {
	cfg     Config
	http    *resty.Client
	gamma   *resty.Client
	builder builder.ExchangeOrderBuilder
	limiter *ratelimit.Manager
	log     *logrus.Entry
}

// New 创建 CLOB 客户端
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultCLOBHost
	}
	if cfg.GammaHost == "" {
		cfg.GammaHost = DefaultGammaHost
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = types.ChainPolygon
	}
	cfg.Host = strings.TrimSuffix(cfg.Host, "/")
	cfg.GammaHost = strings.TrimSuffix(cfg.GammaHost, "/")

	c := &Client{
		cfg:     cfg,
		http:    newRestyClient(cfg.Host, cfg.ProxyURL),
		gamma:   newRestyClient(cfg.GammaHost, cfg.ProxyURL),
		builder: builder.NewExchangeOrderBuilderImpl(big.NewInt(int64(cfg.ChainID)), nil),
		limiter: ratelimit.NewManager(),
		log:     logrus.WithField("component", "clob"),
	}
	return c, nil
}

// newRestyClient 统一的 HTTP 客户端配置：超时、重试与 429 退避
func newRestyClient(baseURL, proxyURL string) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			if resp != nil && resp.StatusCode() == http.StatusTooManyRequests {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if d, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return d, nil
					}
				}
				return 10 * time.Second, nil
			}
			return 0, nil
		}).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "updown-clob")
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return client
}

// CanL2Auth 检查是否具备 L2 认证条件（私钥 + API 密钥）
func (c *Client) CanL2Auth() error {
	if c.cfg.PrivateKey == nil {
		return fmt.Errorf("私钥未设置，无法进行 L2 认证")
	}
	if c.cfg.Creds == nil || c.cfg.Creds.Key == "" {
		return fmt.Errorf("API 密钥未设置，无法进行 L2 认证")
	}
	return nil
}

// Host 返回 CLOB 主机地址
func (c *Client) Host() string { return c.cfg.Host }

// ChainID 返回链 ID
func (c *Client) ChainID() types.Chain { return c.cfg.ChainID }
