// Package gridhedge 实现网格对冲策略：
// 报价自下而上穿越网格层级时入场，同时在对侧挂对冲单锁定最大配对成本。
package gridhedge

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/updown/internal/domain"
	"github.com/betbot/updown/internal/events"
	"github.com/betbot/updown/internal/strategies"
)

// ID 策略标识
const ID = "gridhedge"

var log = logrus.WithField("strategy", ID)

func init() {
	strategies.Register(ID, func() strategies.Strategy { return &Strategy{} })
}

// Strategy 网格对冲策略。
// 由引擎 goroutine 串行驱动（OnCycle / OnQuote / Settle），无内部锁。
type Strategy struct {
	Config `yaml:",inline" json:",inline"`

	market     *domain.Market
	grid       *domain.Grid
	startPrice decimal.Decimal

	sides    map[domain.TokenType]*sideState
	lastAsks map[domain.TokenType]int // 两侧最近观测的 ask（对冲成交判定用）
	pairs    []*pairPosition          // 本周期全部配对（结算用）

	settled *domain.Settlement
}

func (s *Strategy) ID() string { return ID }

func (s *Strategy) Defaults() error {
	s.Config.ApplyDefaults()
	return nil
}

func (s *Strategy) Validate() error { return s.Config.Validate() }

// OnCycle 周期切换：丢弃上一周期的全部状态并重建网格。
func (s *Strategy) OnCycle(old, cur *domain.Market, startPrice decimal.Decimal) {
	s.Config.ApplyDefaults()

	s.market = cur
	s.startPrice = startPrice
	s.grid = domain.NewGrid(50, s.GridGap, s.MaxTotalCost)
	s.pairs = nil
	s.settled = nil
	s.lastAsks = make(map[domain.TokenType]int)

	s.sides = map[domain.TokenType]*sideState{
		domain.TokenTypeUp: newSideState(domain.TokenTypeUp),
	}
	if s.EnableDoubleSide {
		s.sides[domain.TokenTypeDown] = newSideState(domain.TokenTypeDown)
	}

	if cur != nil {
		log.Infof("🔄 [%s] 新周期 %s，网格层级=%v 起始参考价=%s", ID, cur.Slug, s.grid.Levels, startPrice)
	}
}

// OnQuote 消费一次报价变化。顺序：先判定以该代币计价的对冲是否成交，
// 再判定该代币自身的网格穿越入场。
func (s *Strategy) OnQuote(ev *events.QuoteChangedEvent) []domain.OrderIntent {
	if s.market == nil || ev.Market == nil || ev.Market.Slug != s.market.Slug {
		return nil
	}

	token := ev.TokenType
	newAsk := ev.NewAsk.Cents
	var intents []domain.OrderIntent

	s.checkHedgeFills(token, newAsk)

	if st, ok := s.sides[token]; ok {
		intents = s.checkEntries(st, newAsk, ev.Timestamp)
	}
	if newAsk > 0 {
		s.lastAsks[token] = newAsk
	}
	return intents
}

// checkHedgeFills 对冲单挂在 token 侧：token 的 ask 跌到对冲价及以下即视为成交
func (s *Strategy) checkHedgeFills(token domain.TokenType, askCents int) {
	if askCents <= 0 {
		return
	}
	entrySide := token.Opposite()
	for _, p := range s.pairs {
		if p.Token != entrySide || p.HedgeFilled {
			continue
		}
		if p.HedgePrice > 0 && askCents <= p.HedgePrice {
			p.HedgeFilled = true
			log.Infof("✅ [%s] 对冲成交: %s 入场@%dc 对冲@%dc（%s ask=%dc）",
				ID, p.Token, p.EntryPrice, p.HedgePrice, token, askCents)
		}
	}
}

// checkEntries 网格入场判定。第一笔报价只建立基线，不触发入场。
func (s *Strategy) checkEntries(st *sideState, newAsk int, at time.Time) []domain.OrderIntent {
	if newAsk <= 0 {
		return nil
	}
	if st.lastAsk == nil {
		base := newAsk
		st.lastAsk = &base
		return nil
	}

	crossed := s.grid.CrossedLevels(*st.lastAsk, newAsk)
	prev := *st.lastAsk
	*st.lastAsk = newAsk
	if len(crossed) == 0 {
		return nil
	}

	var intents []domain.OrderIntent
	for _, level := range crossed {
		fire, reentry := st.canFire(level, s.EnableRebuy)
		if !fire {
			continue
		}
		pair := &pairPosition{
			Token:      st.token,
			Level:      level,
			EntryPrice: level,
			HedgePrice: maxInt(0, s.MaxTotalCost-level),
			Size:       s.OrderSize,
			ReEntry:    reentry,
		}
		st.active[level] = pair
		s.pairs = append(s.pairs, pair)

		log.Infof("📊 [%s] 入场: %s %dc->%dc 穿越层级 %dc，对冲 %s@%dc reentry=%v",
			ID, st.token, prev, newAsk, level, st.token.Opposite(), pair.HedgePrice, reentry)

		intents = append(intents,
			domain.OrderIntent{
				MarketSlug: s.market.Slug,
				AssetID:    s.market.GetAssetID(st.token),
				TokenType:  st.token,
				Kind:       domain.OrderKindEntry,
				Price:      domain.Price{Cents: level},
				Size:       s.OrderSize,
				GridLevel:  level,
				ReEntry:    reentry,
				CreatedAt:  at,
			},
			domain.OrderIntent{
				MarketSlug: s.market.Slug,
				AssetID:    s.market.GetAssetID(st.token.Opposite()),
				TokenType:  st.token.Opposite(),
				Kind:       domain.OrderKindHedge,
				Price:      domain.Price{Cents: pair.HedgePrice},
				Size:       s.OrderSize,
				GridLevel:  level,
				ReEntry:    reentry,
				CreatedAt:  at,
			},
		)

		// 对侧当前 ask 已低于对冲价时立即视为成交
		if opp, ok := s.lastAsks[st.token.Opposite()]; ok && opp > 0 && pair.HedgePrice > 0 && opp <= pair.HedgePrice {
			pair.HedgeFilled = true
			log.Infof("✅ [%s] 对冲即时成交: %s 入场@%dc 对冲@%dc（对侧 ask=%dc）",
				ID, pair.Token, pair.EntryPrice, pair.HedgePrice, opp)
		}
	}
	return intents
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
