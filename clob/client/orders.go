package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/polymarket/go-order-utils/pkg/model"
	"github.com/shopspring/decimal"

	"github.com/betbot/updown/clob/signing"
	"github.com/betbot/updown/clob/types"
	"github.com/betbot/updown/internal/domain"
)

const (
	EndpointPostOrder   = "/order"
	EndpointCancelOrder = "/order"

	// usdcDecimals Polymarket 的 USDC 与条件代币均为 6 位精度
	usdcDecimals = 6
)

var zeroAddress = common.Address{}.Hex()

// buildSignedOrder 通过 go-order-utils 构建并签名 CTF Exchange 订单。
// price 为 0.xx 小数形式，size 为代币份数。
func (c *Client) buildSignedOrder(tokenID string, side types.Side, price decimal.Decimal, size decimal.Decimal) (*types.SignedOrder, error) {
	if c.cfg.PrivateKey == nil {
		return nil, fmt.Errorf("私钥未设置，无法签名订单")
	}

	scale := decimal.New(1, usdcDecimals)
	usdc := price.Mul(size).Round(2).Mul(scale).StringFixed(0)
	tokens := size.Round(4).Mul(scale).StringFixed(0)

	// BUY：付出 USDC 换取代币；SELL 相反
	var makerAmount, takerAmount string
	var orderSide model.Side
	if side == types.SideBuy {
		makerAmount = usdc
		takerAmount = tokens
		orderSide = model.BUY
	} else {
		makerAmount = tokens
		takerAmount = usdc
		orderSide = model.SELL
	}

	signer := signing.GetAddressFromPrivateKey(c.cfg.PrivateKey).Hex()
	maker := signer
	if c.cfg.FunderAddress != "" {
		maker = c.cfg.FunderAddress
	}

	orderData := &model.OrderData{
		Maker:         maker,
		Taker:         zeroAddress,
		TokenId:       tokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        signer,
		Expiration:    "0",
		SignatureType: model.SignatureType(int(c.cfg.SignatureType)),
		Side:          orderSide,
	}

	signed, err := c.builder.BuildSignedOrder(c.cfg.PrivateKey, orderData, model.CTFExchange)
	if err != nil {
		return nil, errors.Wrap(err, "签名订单失败")
	}

	return &types.SignedOrder{
		Salt:          signed.Salt.Int64(),
		Maker:         signed.Maker.Hex(),
		Signer:        signed.Signer.Hex(),
		Taker:         signed.Taker.Hex(),
		TokenID:       signed.TokenId.String(),
		MakerAmount:   signed.MakerAmount.String(),
		TakerAmount:   signed.TakerAmount.String(),
		Expiration:    signed.Expiration.String(),
		Nonce:         signed.Nonce.String(),
		FeeRateBps:    signed.FeeRateBps.String(),
		Side:          side,
		SignatureType: int(signed.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(signed.Signature),
	}, nil
}

// PostOrder 提交已签名订单
func (c *Client) PostOrder(ctx context.Context, order *types.SignedOrder, orderType types.OrderType) (*types.OrderResponse, error) {
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx, "clob:order:post"); err != nil {
		return nil, fmt.Errorf("速率限制等待失败: %w", err)
	}

	payload := types.NewOrder{
		Order:     *order,
		Owner:     c.cfg.Creds.Key,
		OrderType: orderType,
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "序列化订单载荷失败")
	}
	bodyStr := string(bodyBytes)

	headers, err := signing.CreateL2Headers(c.cfg.PrivateKey, c.cfg.Creds, &types.L2HeaderArgs{
		Method:      "POST",
		RequestPath: EndpointPostOrder,
		Body:        &bodyStr,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "创建 L2 认证头失败")
	}

	var orderResp types.OrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers.Map()).
		SetHeader("Content-Type", "application/json").
		SetBody(bodyStr).
		SetResult(&orderResp).
		Post(EndpointPostOrder)
	if err != nil {
		return nil, errors.Wrap(err, "提交订单失败")
	}
	if resp.IsError() {
		return nil, errors.Errorf("提交订单 HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	if !orderResp.Success {
		return &orderResp, errors.Errorf("订单被拒绝: %s", orderResp.ErrorMsg)
	}
	return &orderResp, nil
}

// CancelOrder 取消订单
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*types.OrderResponse, error) {
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx, "clob:order:delete"); err != nil {
		return nil, fmt.Errorf("速率限制等待失败: %w", err)
	}

	body := fmt.Sprintf(`{"orderID":%q}`, orderID)
	headers, err := signing.CreateL2Headers(c.cfg.PrivateKey, c.cfg.Creds, &types.L2HeaderArgs{
		Method:      "DELETE",
		RequestPath: EndpointCancelOrder,
		Body:        &body,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "创建 L2 认证头失败")
	}

	var orderResp types.OrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers.Map()).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&orderResp).
		Delete(EndpointCancelOrder)
	if err != nil {
		return nil, errors.Wrapf(err, "取消订单失败: %s", orderID)
	}
	if resp.IsError() {
		return nil, errors.Errorf("取消订单 HTTP %d: %s (orderID=%s)", resp.StatusCode(), resp.String(), orderID)
	}
	return &orderResp, nil
}

// PlaceIntent 将策略的下单意图转换为 GTC 限价单（实现 lifecycle.OrderPlacer）。
// 返回交易所订单 ID；本地生成的 uuid 仅用于日志关联。
func (c *Client) PlaceIntent(ctx context.Context, intent domain.OrderIntent) (string, error) {
	localID := uuid.NewString()
	price := intent.Price.Decimal()
	size := decimal.NewFromFloat(intent.Size)

	signed, err := c.buildSignedOrder(intent.AssetID, types.SideBuy, price, size)
	if err != nil {
		return "", err
	}

	c.log.WithField("local_id", localID).Infof("提交 %s 订单 %s %s@%s size=%s",
		intent.Kind, intent.MarketSlug, intent.TokenType, intent.Price, size)

	resp, err := c.PostOrder(ctx, signed, types.OrderTypeGTC)
	if err != nil {
		return "", err
	}
	return resp.OrderID, nil
}
