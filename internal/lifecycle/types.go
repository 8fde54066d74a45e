package lifecycle

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/updown/internal/domain"
	"github.com/betbot/updown/internal/events"
)

// MarketFetcher 按 slug 获取市场描述符（Gamma API）
type MarketFetcher interface {
	FetchMarket(ctx context.Context, slug string) (*domain.Market, error)
}

// OpenPriceFetcher 获取周期的权威开盘价（参考价流无数据时的兜底）
type OpenPriceFetcher interface {
	OpenPrice(ctx context.Context, symbol string, start, end time.Time) (decimal.Decimal, error)
}

// OrderPlacer 下单执行器。nil 表示只读监控（不下单）。
type OrderPlacer interface {
	PlaceIntent(ctx context.Context, intent domain.OrderIntent) (orderID string, err error)
}

// TickArchiver 行情/结算记录持久化
type TickArchiver interface {
	WriteTick(ctx context.Context, rec domain.TickRecord) error
}

// ReferenceSource 参考价格源（coinprice.Tracker 实现）
type ReferenceSource interface {
	Latest() (domain.PricePoint, bool)
	Updates() <-chan events.ReferencePriceEvent
}

// 报价流消息（Polymarket market channel）
type priceChange struct {
	AssetID string `json:"asset_id"`
	BestAsk string `json:"best_ask"`
	BestBid string `json:"best_bid"`
	Price   string `json:"price"`
}

type quoteMessage struct {
	EventType    string        `json:"event_type"`
	Market       string        `json:"market"`
	PriceChanges []priceChange `json:"price_changes"`
	// 旧格式兼容：单条变化直接平铺在顶层
	AssetID string `json:"asset_id"`
	BestAsk string `json:"best_ask"`
	BestBid string `json:"best_bid"`
}

type marketSubscription struct {
	Type      string   `json:"type"`
	AssetsIDs []string `json:"assets_ids"`
}
