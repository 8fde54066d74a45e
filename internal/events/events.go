package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/updown/internal/domain"
)

// QuoteChangedEvent 合约报价变化事件。
// 仅在四舍五入到分后的 best ask / best bid 确实变化时发出（重复报价被抑制）。
type QuoteChangedEvent struct {
	Market    *domain.Market
	TokenType domain.TokenType
	OldAsk    domain.Price
	NewAsk    domain.Price
	OldBid    domain.Price
	NewBid    domain.Price
	Timestamp time.Time
}

// ReferencePriceEvent 参考价格（现货）更新事件
type ReferencePriceEvent struct {
	Point domain.PricePoint
	Prev  decimal.Decimal
}

// SettlementEvent 周期结算事件
type SettlementEvent struct {
	Strategy   string
	Settlement domain.Settlement
	Timestamp  time.Time
}
