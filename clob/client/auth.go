package client

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/betbot/updown/clob/signing"
	"github.com/betbot/updown/clob/types"
)

const (
	EndpointCreateAPIKey = "/auth/api-key"
	EndpointDeriveAPIKey = "/auth/derive-api-key"
)

// CanL1Auth 检查是否具备 L1 认证条件（仅私钥）
func (c *Client) CanL1Auth() error {
	if c.cfg.PrivateKey == nil {
		return fmt.Errorf("私钥未设置，无法进行 L1 认证")
	}
	return nil
}

// DeriveAPIKey 用 L1 签名派生已存在的 API 密钥（幂等：同一 nonce 总返回同一组凭证）
func (c *Client) DeriveAPIKey(ctx context.Context, nonce int64) (*types.ApiKeyCreds, error) {
	if err := c.CanL1Auth(); err != nil {
		return nil, err
	}

	headers, err := signing.CreateL1Headers(c.cfg.PrivateKey, c.cfg.ChainID, &nonce, nil)
	if err != nil {
		return nil, errors.Wrap(err, "创建 L1 认证头失败")
	}

	var raw types.ApiKeyRaw
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers.Map()).
		SetResult(&raw).
		Get(EndpointDeriveAPIKey)
	if err != nil {
		return nil, errors.Wrap(err, "派生 API 密钥失败")
	}
	if resp.IsError() {
		return nil, errors.Errorf("派生 API 密钥 HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	return raw.Creds(), nil
}

// CreateAPIKey 创建新的 API 密钥
func (c *Client) CreateAPIKey(ctx context.Context, nonce int64) (*types.ApiKeyCreds, error) {
	if err := c.CanL1Auth(); err != nil {
		return nil, err
	}

	headers, err := signing.CreateL1Headers(c.cfg.PrivateKey, c.cfg.ChainID, &nonce, nil)
	if err != nil {
		return nil, errors.Wrap(err, "创建 L1 认证头失败")
	}

	var raw types.ApiKeyRaw
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers.Map()).
		SetResult(&raw).
		Post(EndpointCreateAPIKey)
	if err != nil {
		return nil, errors.Wrap(err, "创建 API 密钥失败")
	}
	if resp.IsError() {
		return nil, errors.Errorf("创建 API 密钥 HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	return raw.Creds(), nil
}

// EnsureCreds 确保客户端持有 API 密钥：优先派生，失败则创建
func (c *Client) EnsureCreds(ctx context.Context, nonce int64) (*types.ApiKeyCreds, error) {
	if c.cfg.Creds != nil && c.cfg.Creds.Key != "" {
		return c.cfg.Creds, nil
	}
	creds, err := c.DeriveAPIKey(ctx, nonce)
	if err != nil {
		c.log.Warnf("派生 API 密钥失败，尝试创建新密钥: %v", err)
		creds, err = c.CreateAPIKey(ctx, nonce)
		if err != nil {
			return nil, err
		}
	}
	c.cfg.Creds = creds
	return creds, nil
}
