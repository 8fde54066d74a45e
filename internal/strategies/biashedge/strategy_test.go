package biashedge

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/updown/internal/domain"
	"github.com/betbot/updown/internal/events"
	"github.com/betbot/updown/internal/strategies"
)

func testMarket() *domain.Market {
	return &domain.Market{
		Slug:        "btc-updown-15m-1765985400",
		UpAssetID:   "up-token",
		DownAssetID: "down-token",
	}
}

func newTestStrategy() (*Strategy, *domain.Market) {
	m := testMarket()
	s := &Strategy{Config: Config{
		BiasBps:      10,
		MinElapsed:   time.Nanosecond, // 测试里不等待
		EntryCeiling: 75,
		HedgeOffset:  20,
		OrderSize:    1,
	}}
	_ = s.Defaults()
	s.OnCycle(nil, m, decimal.NewFromInt(100000))
	return s, m
}

func quote(m *domain.Market, token domain.TokenType, askCents int) *events.QuoteChangedEvent {
	return &events.QuoteChangedEvent{
		Market:    m,
		TokenType: token,
		NewAsk:    domain.Price{Cents: askCents},
		Timestamp: time.Now(),
	}
}

func refPrice(v int64) *events.ReferencePriceEvent {
	return &events.ReferencePriceEvent{
		Point: domain.PricePoint{Symbol: "btcusdt", Price: decimal.NewFromInt(v), At: time.Now()},
	}
}

// 注册表中两个变体都可实例化，证明多态接口
func TestRegisteredVariants(t *testing.T) {
	ids := strategies.IDs()
	assert.Contains(t, ids, ID)

	s, err := strategies.New(ID)
	require.NoError(t, err)
	assert.Equal(t, ID, s.ID())

	// 每次 New 都是独立实例
	s2, err := strategies.New(ID)
	require.NoError(t, err)
	assert.NotSame(t, s, s2)
}

// 偏离不足时不入场
func TestNoEntryWithoutBias(t *testing.T) {
	s, m := newTestStrategy()
	s.OnReferencePrice(refPrice(100050)) // +5bps < 10bps
	assert.Empty(t, s.OnQuote(quote(m, domain.TokenTypeUp, 60)))
	assert.False(t, s.entered)
}

// 上行偏离 -> 买 up，对冲挂 down@入场价-偏移
func TestUpwardBiasEntry(t *testing.T) {
	s, m := newTestStrategy()
	s.OnReferencePrice(refPrice(100200)) // +20bps

	// down 侧报价不触发（方向不符）
	assert.Empty(t, s.OnQuote(quote(m, domain.TokenTypeDown, 40)))

	intents := s.OnQuote(quote(m, domain.TokenTypeUp, 60))
	require.Len(t, intents, 2)
	assert.Equal(t, domain.OrderKindEntry, intents[0].Kind)
	assert.Equal(t, domain.TokenTypeUp, intents[0].TokenType)
	assert.Equal(t, 60, intents[0].Price.Cents)
	assert.Equal(t, domain.OrderKindHedge, intents[1].Kind)
	assert.Equal(t, domain.TokenTypeDown, intents[1].TokenType)
	assert.Equal(t, 40, intents[1].Price.Cents) // 60-20

	// 单次入场：再有报价不重复入场
	assert.Empty(t, s.OnQuote(quote(m, domain.TokenTypeUp, 65)))
}

func TestDownwardBiasEntry(t *testing.T) {
	s, m := newTestStrategy()
	s.OnReferencePrice(refPrice(99800)) // -20bps

	intents := s.OnQuote(quote(m, domain.TokenTypeDown, 58))
	require.Len(t, intents, 2)
	assert.Equal(t, domain.TokenTypeDown, intents[0].TokenType)
	assert.Equal(t, domain.TokenTypeUp, intents[1].TokenType)
	assert.Equal(t, 38, intents[1].Price.Cents)
}

// ask 超过上限时不入场
func TestEntryCeiling(t *testing.T) {
	s, m := newTestStrategy()
	s.OnReferencePrice(refPrice(100200))
	assert.Empty(t, s.OnQuote(quote(m, domain.TokenTypeUp, 80)))
	assert.False(t, s.entered)
}

// 最小等待时间内不入场
func TestMinElapsedGate(t *testing.T) {
	s, m := newTestStrategy()
	s.MinElapsed = time.Hour
	s.OnCycle(nil, m, decimal.NewFromInt(100000))
	s.OnReferencePrice(refPrice(100200))
	assert.Empty(t, s.OnQuote(quote(m, domain.TokenTypeUp, 60)))
}

func TestHedgeFillAndSettlement(t *testing.T) {
	s, m := newTestStrategy()
	s.OnReferencePrice(refPrice(100200))
	require.Len(t, s.OnQuote(quote(m, domain.TokenTypeUp, 60)), 2)

	// down ask 跌到对冲价 -> 成交
	s.OnQuote(quote(m, domain.TokenTypeDown, 40))
	require.True(t, s.hedgeFilled)

	result := s.Settle(domain.FinalQuotes{Up: domain.Price{Cents: 99}, Down: domain.Price{Cents: 1}})
	assert.Equal(t, 1, result.Entries)
	assert.Equal(t, 1, result.HedgesFilled)
	// 贡献 (40-60)，成本 60+40
	assert.Equal(t, -20.0, result.GrossCents)
	assert.Equal(t, 100.0, result.CostCents)
	assert.Equal(t, -120.0, result.ProfitCents)

	// 幂等
	assert.Equal(t, result, s.Settle(domain.FinalQuotes{Up: domain.Price{Cents: 1}, Down: domain.Price{Cents: 99}}))
}

func TestEmptyCycleSettlesToZero(t *testing.T) {
	s, _ := newTestStrategy()
	result := s.Settle(domain.FinalQuotes{Up: domain.Price{Cents: 30}, Down: domain.Price{Cents: 70}})
	assert.Equal(t, 0, result.Entries)
	assert.Equal(t, 0.0, result.ProfitCents)
	assert.Equal(t, domain.TokenTypeDown, result.Winner)
}
