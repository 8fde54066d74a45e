// Package biashedge 实现偏向对冲策略：
// 参考价相对周期起始价出现足够偏离、且周期已过最小等待时间后，
// 顺着偏离方向入场一次，并在对侧按固定偏移挂对冲单。
package biashedge

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/updown/internal/domain"
	"github.com/betbot/updown/internal/events"
	"github.com/betbot/updown/internal/strategies"
)

// ID 策略标识
const ID = "biashedge"

var log = logrus.WithField("strategy", ID)

func init() {
	strategies.Register(ID, func() strategies.Strategy { return &Strategy{} })
}

// Config 偏向对冲参数
type Config struct {
	BiasBps      int           `yaml:"biasBps" json:"biasBps"`           // 参考价最小偏离（基点）
	MinElapsed   time.Duration `yaml:"minElapsed" json:"minElapsed"`     // 周期内最小等待时间
	EntryCeiling int           `yaml:"entryCeiling" json:"entryCeiling"` // 入场 ask 上限（分）
	HedgeOffset  int           `yaml:"hedgeOffset" json:"hedgeOffset"`   // 对冲价 = max(0, 入场价-偏移)
	OrderSize    float64       `yaml:"orderSize" json:"orderSize"`
}

func (c *Config) ApplyDefaults() {
	if c.BiasBps == 0 {
		c.BiasBps = 10
	}
	if c.MinElapsed == 0 {
		c.MinElapsed = 2 * time.Minute
	}
	if c.EntryCeiling == 0 {
		c.EntryCeiling = 75
	}
	if c.HedgeOffset == 0 {
		c.HedgeOffset = 20
	}
	if c.OrderSize == 0 {
		c.OrderSize = 10
	}
}

func (c *Config) Validate() error {
	if c.BiasBps <= 0 {
		return fmt.Errorf("biasBps 必须为正，当前 %d", c.BiasBps)
	}
	if c.EntryCeiling <= 0 || c.EntryCeiling >= 100 {
		return fmt.Errorf("entryCeiling 必须在 (0, 100) 区间（分），当前 %d", c.EntryCeiling)
	}
	if c.HedgeOffset < 0 {
		return fmt.Errorf("hedgeOffset 不能为负，当前 %d", c.HedgeOffset)
	}
	if c.OrderSize <= 0 {
		return fmt.Errorf("orderSize 必须为正，当前 %f", c.OrderSize)
	}
	return nil
}

// Strategy 偏向对冲策略。与 gridhedge 同一状态机骨架，入场/对冲谓词不同。
type Strategy struct {
	Config `yaml:",inline" json:",inline"`

	market     *domain.Market
	startPrice decimal.Decimal
	lastRef    decimal.Decimal
	cycleStart time.Time

	entryToken  domain.TokenType
	entryPrice  int
	hedgePrice  int
	entered     bool
	hedgeFilled bool

	settled *domain.Settlement
}

func (s *Strategy) ID() string { return ID }

func (s *Strategy) Defaults() error {
	s.Config.ApplyDefaults()
	return nil
}

func (s *Strategy) Validate() error { return s.Config.Validate() }

func (s *Strategy) OnCycle(old, cur *domain.Market, startPrice decimal.Decimal) {
	s.Config.ApplyDefaults()

	s.market = cur
	s.startPrice = startPrice
	s.lastRef = startPrice
	s.cycleStart = time.Now()
	s.entered = false
	s.hedgeFilled = false
	s.entryToken = ""
	s.entryPrice = 0
	s.hedgePrice = 0
	s.settled = nil
}

// OnReferencePrice 记录最新参考价（引擎 goroutine 串行调用）
func (s *Strategy) OnReferencePrice(ev *events.ReferencePriceEvent) {
	s.lastRef = ev.Point.Price
}

// bias 返回当前参考价相对起始价的偏离（基点），正值表示上行
func (s *Strategy) bias() int {
	if s.startPrice.IsZero() {
		return 0
	}
	diff := s.lastRef.Sub(s.startPrice).Div(s.startPrice).Mul(decimal.NewFromInt(10000))
	return int(diff.IntPart())
}

func (s *Strategy) OnQuote(ev *events.QuoteChangedEvent) []domain.OrderIntent {
	if s.market == nil || ev.Market == nil || ev.Market.Slug != s.market.Slug {
		return nil
	}
	ask := ev.NewAsk.Cents

	// 对冲成交判定：对冲挂在入场的对侧
	if s.entered && !s.hedgeFilled && ev.TokenType == s.entryToken.Opposite() {
		if ask > 0 && s.hedgePrice > 0 && ask <= s.hedgePrice {
			s.hedgeFilled = true
			log.Infof("✅ [%s] 对冲成交: %s 入场@%dc 对冲@%dc（ask=%dc）",
				ID, s.entryToken, s.entryPrice, s.hedgePrice, ask)
		}
		return nil
	}
	if s.entered || ask <= 0 {
		return nil
	}

	// 入场谓词：偏离方向 + 最小等待时间 + ask 上限
	bias := s.bias()
	var want domain.TokenType
	switch {
	case bias >= s.BiasBps:
		want = domain.TokenTypeUp
	case bias <= -s.BiasBps:
		want = domain.TokenTypeDown
	default:
		return nil
	}
	if ev.TokenType != want {
		return nil
	}
	if time.Since(s.cycleStart) < s.MinElapsed {
		return nil
	}
	if ask > s.EntryCeiling {
		return nil
	}

	s.entered = true
	s.entryToken = want
	s.entryPrice = ask
	s.hedgePrice = ask - s.HedgeOffset
	if s.hedgePrice < 0 {
		s.hedgePrice = 0
	}

	log.Infof("📊 [%s] 入场: bias=%dbps %s@%dc 对冲 %s@%dc",
		ID, bias, want, ask, want.Opposite(), s.hedgePrice)

	now := ev.Timestamp
	return []domain.OrderIntent{
		{
			MarketSlug: s.market.Slug,
			AssetID:    s.market.GetAssetID(want),
			TokenType:  want,
			Kind:       domain.OrderKindEntry,
			Price:      domain.Price{Cents: ask},
			Size:       s.OrderSize,
			CreatedAt:  now,
		},
		{
			MarketSlug: s.market.Slug,
			AssetID:    s.market.GetAssetID(want.Opposite()),
			TokenType:  want.Opposite(),
			Kind:       domain.OrderKindHedge,
			Price:      domain.Price{Cents: s.hedgePrice},
			Size:       s.OrderSize,
			CreatedAt:  now,
		},
	}
}

// Settle 结算估值（幂等），公式与 gridhedge 保持一致
func (s *Strategy) Settle(final domain.FinalQuotes) domain.Settlement {
	if s.settled != nil {
		return *s.settled
	}

	winner := final.Winner()
	slug := ""
	if s.market != nil {
		slug = s.market.Slug
	}
	result := domain.Settlement{MarketSlug: slug, Winner: winner, SettledAt: time.Now()}

	if s.entered {
		result.Entries = 1
		result.CostCents = float64(s.entryPrice) * s.OrderSize
		switch {
		case s.hedgeFilled:
			result.HedgesFilled = 1
			result.CostCents += float64(s.hedgePrice) * s.OrderSize
			result.GrossCents = float64(s.hedgePrice-s.entryPrice) * s.OrderSize
		case s.entryToken == winner:
			result.GrossCents = float64(100-s.entryPrice) * s.OrderSize
		default:
			result.GrossCents = float64(-s.entryPrice) * s.OrderSize
		}
	}
	result.ProfitCents = result.GrossCents - result.CostCents

	s.settled = &result
	return result
}
