package lifecycle

import (
	"github.com/betbot/updown/internal/domain"
)

type tokenQuote struct {
	Ask domain.Price
	Bid domain.Price
}

// QuoteSnapshot 当前合约两侧的最新报价（已四舍五入到分）。
// 自身不加锁：引擎 goroutine 写入，外部读取经 Manager 的读锁。
type QuoteSnapshot struct {
	slug   string
	quotes map[domain.TokenType]tokenQuote
}

func NewQuoteSnapshot(slug string) *QuoteSnapshot {
	return &QuoteSnapshot{
		slug:   slug,
		quotes: make(map[domain.TokenType]tokenQuote),
	}
}

func (s *QuoteSnapshot) Slug() string { return s.slug }

// Apply 更新一侧报价。两个价格都与上次相同时返回 changed=false（重复报价抑制）。
func (s *QuoteSnapshot) Apply(token domain.TokenType, ask, bid domain.Price) (changed bool, oldAsk, oldBid domain.Price) {
	prev, exists := s.quotes[token]
	if exists && prev.Ask == ask && prev.Bid == bid {
		return false, prev.Ask, prev.Bid
	}
	s.quotes[token] = tokenQuote{Ask: ask, Bid: bid}
	if exists {
		return true, prev.Ask, prev.Bid
	}
	return true, domain.Price{}, domain.Price{}
}

// Get 返回一侧的最新报价
func (s *QuoteSnapshot) Get(token domain.TokenType) (ask, bid domain.Price, ok bool) {
	q, exists := s.quotes[token]
	if !exists {
		return domain.Price{}, domain.Price{}, false
	}
	return q.Ask, q.Bid, true
}

// Final 返回结算用的最终报价（以 ask 为观测价口径）
func (s *QuoteSnapshot) Final() domain.FinalQuotes {
	up := s.quotes[domain.TokenTypeUp]
	down := s.quotes[domain.TokenTypeDown]
	return domain.FinalQuotes{Up: up.Ask, Down: down.Ask}
}
