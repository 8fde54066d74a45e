package client

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/pkg/errors"

	"github.com/betbot/updown/internal/domain"
)

// GammaMarket Gamma API 市场数据结构
type GammaMarket struct {
	ID           string `json:"id"`
	Question     string `json:"question"`
	ConditionID  string `json:"conditionId"`
	Slug         string `json:"slug"`
	ClobTokenIDs string `json:"clobTokenIds"`
	EndDate      string `json:"endDate"`
	StartDate    string `json:"startDate"`
	Closed       bool   `json:"closed"`
}

var (
	tokenQuoteRe = regexp.MustCompile(`["'\[\]]`)
	tokenSplitRe = regexp.MustCompile(`,\s*`)
)

// parseTokenIDs 解析 clobTokenIds 字段（JSON 数组的字符串形式）。
// 索引约定：0 = up，1 = down。
func parseTokenIDs(clobTokenIDs string) (upAssetID, downAssetID string) {
	cleaned := tokenQuoteRe.ReplaceAllString(clobTokenIDs, "")
	parts := tokenSplitRe.Split(cleaned, -1)
	if len(parts) >= 2 {
		upAssetID = parts[0]
		downAssetID = parts[1]
	}
	return
}

// FetchGammaMarket 按 slug 查询 Gamma API（只取未关闭市场的首个匹配）
func (c *Client) FetchGammaMarket(ctx context.Context, slug string) (*GammaMarket, error) {
	if err := c.limiter.Wait(ctx, "gamma:markets:get"); err != nil {
		return nil, fmt.Errorf("速率限制等待失败: %w", err)
	}

	var markets []GammaMarket
	resp, err := c.gamma.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"slug":   slug,
			"closed": "false",
		}).
		SetResult(&markets).
		Get("/markets")
	if err != nil {
		return nil, errors.Wrapf(err, "请求 Gamma API 失败: %s", slug)
	}
	if resp.IsError() {
		return nil, errors.Errorf("Gamma API HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	if len(markets) == 0 {
		return nil, errors.Errorf("未找到市场: %s", slug)
	}
	// 不信任查询参数一定生效，跳过已关闭的市场
	for i := range markets {
		if !markets[i].Closed {
			return &markets[i], nil
		}
	}
	return nil, errors.Errorf("市场均已关闭: %s", slug)
}

// FetchMarket 获取市场描述符（实现 lifecycle.MarketFetcher）
func (c *Client) FetchMarket(ctx context.Context, slug string) (*domain.Market, error) {
	gm, err := c.FetchGammaMarket(ctx, slug)
	if err != nil {
		return nil, err
	}

	upID, downID := parseTokenIDs(gm.ClobTokenIDs)
	market := &domain.Market{
		ID:          gm.ID,
		Slug:        gm.Slug,
		Question:    gm.Question,
		ConditionID: gm.ConditionID,
		UpAssetID:   upID,
		DownAssetID: downID,
		FetchedAt:   time.Now(),
	}
	if err := market.Validate(); err != nil {
		return nil, errors.Wrapf(err, "无法解析 token IDs: clobTokenIds=%s", gm.ClobTokenIDs)
	}
	return market, nil
}
