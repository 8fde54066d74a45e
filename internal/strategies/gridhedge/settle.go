package gridhedge

import (
	"time"

	"github.com/betbot/updown/internal/domain"
)

// Settle 按周期末的最终报价估值。幂等：首次计算后缓存，重复调用返回同一结果。
//
// 每个配对的贡献：
//   - 对冲已成交：(对冲价 - 入场价) × 数量
//   - 对冲未成交：入场侧获胜 (100 - 入场价) × 数量，否则 -入场价 × 数量
//
// 总利润 = Σ贡献 - 实际支付的成本（全部入场 + 已成交的对冲）。
// 空报价流（无任何配对）返回零利润，不是错误。
func (s *Strategy) Settle(final domain.FinalQuotes) domain.Settlement {
	if s.settled != nil {
		return *s.settled
	}

	winner := final.Winner()
	slug := ""
	if s.market != nil {
		slug = s.market.Slug
	}

	result := domain.Settlement{
		MarketSlug: slug,
		Winner:     winner,
		SettledAt:  time.Now(),
	}

	for _, p := range s.pairs {
		result.Entries++
		result.CostCents += float64(p.EntryPrice) * p.Size

		var contribution float64
		if p.HedgeFilled {
			result.HedgesFilled++
			result.CostCents += float64(p.HedgePrice) * p.Size
			contribution = float64(p.HedgePrice-p.EntryPrice) * p.Size
		} else if p.Token == winner {
			contribution = float64(100-p.EntryPrice) * p.Size
		} else {
			contribution = float64(-p.EntryPrice) * p.Size
		}
		result.GrossCents += contribution
	}
	result.ProfitCents = result.GrossCents - result.CostCents

	s.settled = &result
	if result.Entries > 0 {
		log.Infof("📊 [%s] 结算 %s: winner=%s entries=%d hedged=%d profit=%.1fc",
			ID, slug, winner, result.Entries, result.HedgesFilled, result.ProfitCents)
	}
	return result
}
