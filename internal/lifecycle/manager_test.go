package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/updown/internal/domain"
	"github.com/betbot/updown/internal/events"
	"github.com/betbot/updown/internal/risk"
	"github.com/betbot/updown/internal/strategies"
	"github.com/betbot/updown/pkg/marketspec"
)

// ---- 测试替身 ----

type fakeFetcher struct {
	markets map[string]*domain.Market
	errs    map[string]error
	calls   []string
}

func (f *fakeFetcher) FetchMarket(_ context.Context, slug string) (*domain.Market, error) {
	f.calls = append(f.calls, slug)
	if err := f.errs[slug]; err != nil {
		return nil, err
	}
	m, ok := f.markets[slug]
	if !ok {
		return nil, errors.New("市场不存在")
	}
	cp := *m
	return &cp, nil
}

type fakePlacer struct {
	intents []domain.OrderIntent
	err     error
}

func (p *fakePlacer) PlaceIntent(_ context.Context, intent domain.OrderIntent) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.intents = append(p.intents, intent)
	return "order-1", nil
}

type fakeArchive struct {
	records []domain.TickRecord
}

func (a *fakeArchive) WriteTick(_ context.Context, rec domain.TickRecord) error {
	a.records = append(a.records, rec)
	return nil
}

type fakeRefs struct {
	point domain.PricePoint
	ok    bool
	ch    chan events.ReferencePriceEvent
}

func (r *fakeRefs) Latest() (domain.PricePoint, bool)            { return r.point, r.ok }
func (r *fakeRefs) Updates() <-chan events.ReferencePriceEvent { return r.ch }

type cycleCall struct {
	old, cur   *domain.Market
	startPrice decimal.Decimal
}

type fakeStrategy struct {
	cycles  []cycleCall
	quotes  []events.QuoteChangedEvent
	pending []domain.OrderIntent // 下一次 OnQuote 返回后清空
	settled []domain.FinalQuotes
}

func (s *fakeStrategy) ID() string      { return "fake" }
func (s *fakeStrategy) Defaults() error { return nil }
func (s *fakeStrategy) Validate() error { return nil }

func (s *fakeStrategy) OnCycle(old, cur *domain.Market, startPrice decimal.Decimal) {
	s.cycles = append(s.cycles, cycleCall{old: old, cur: cur, startPrice: startPrice})
}

func (s *fakeStrategy) OnQuote(ev *events.QuoteChangedEvent) []domain.OrderIntent {
	s.quotes = append(s.quotes, *ev)
	out := s.pending
	s.pending = nil
	return out
}

func (s *fakeStrategy) Settle(final domain.FinalQuotes) domain.Settlement {
	s.settled = append(s.settled, final)
	return domain.Settlement{Winner: final.Winner(), SettledAt: time.Now()}
}

func fakeToStrategy(s *fakeStrategy) []strategies.Strategy {
	return []strategies.Strategy{s}
}

// ---- 测试装配 ----

var testNow = time.Date(2025, 12, 17, 14, 7, 0, 0, time.UTC)

func testSpec(t *testing.T) marketspec.MarketSpec {
	t.Helper()
	spec, err := marketspec.New("btc", "15m")
	require.NoError(t, err)
	return spec
}

func testDescriptor(slug string) *domain.Market {
	return &domain.Market{
		ID:          "0x1",
		Slug:        slug,
		ConditionID: "0xc",
		UpAssetID:   "up-token",
		DownAssetID: "down-token",
	}
}

func newTestManager(t *testing.T, deps Deps) *Manager {
	t.Helper()
	cfg := Config{
		Spec:     testSpec(t),
		QuoteURL: "ws://127.0.0.1:1", // 测试中不可达，连接失败即放弃
	}
	cfg.Feed.MaxAttempts = 1
	cfg.Feed.BackoffBase = time.Millisecond
	m := New(cfg, deps)
	t.Cleanup(m.closeFeed)
	return m
}

func priceChangeJSON(assetID, ask, bid string) []byte {
	return []byte(`{"event_type":"price_change","market":"0xc","price_changes":[` +
		`{"asset_id":"` + assetID + `","best_ask":"` + ask + `","best_bid":"` + bid + `"}]}`)
}

// ---- 用例 ----

func TestRolloverFetchesDescriptorAndStartsCycle(t *testing.T) {
	spec := testSpec(t)
	slug := spec.Slug(spec.CurrentPeriodStartUnix(testNow))

	strat := &fakeStrategy{}
	refs := &fakeRefs{point: domain.PricePoint{Symbol: "btcusdt", Price: decimal.NewFromInt(100000)}, ok: true}
	m := newTestManager(t, Deps{
		Markets:    &fakeFetcher{markets: map[string]*domain.Market{slug: testDescriptor(slug)}},
		Refs:       refs,
		Strategies: fakeToStrategy(strat),
	})

	m.rollover(context.Background(), testNow)

	require.NotNil(t, m.Current())
	assert.Equal(t, slug, m.Current().Slug)
	assert.False(t, m.Current().PeriodStart.IsZero())
	assert.Equal(t, 15*time.Minute, m.Current().PeriodEnd.Sub(m.Current().PeriodStart))

	require.Len(t, strat.cycles, 1)
	assert.Nil(t, strat.cycles[0].old)
	assert.Equal(t, slug, strat.cycles[0].cur.Slug)
	assert.True(t, strat.cycles[0].startPrice.Equal(decimal.NewFromInt(100000)))

	// 周期未变：重复调用不重新获取
	m.rollover(context.Background(), testNow.Add(time.Minute))
	require.Len(t, strat.cycles, 1)
}

func TestRolloverRetriesAfterFetchFailure(t *testing.T) {
	spec := testSpec(t)
	slug := spec.Slug(spec.CurrentPeriodStartUnix(testNow))

	fetcher := &fakeFetcher{
		markets: map[string]*domain.Market{slug: testDescriptor(slug)},
		errs:    map[string]error{slug: errors.New("gamma 503")},
	}
	strat := &fakeStrategy{}
	m := newTestManager(t, Deps{Markets: fetcher, Strategies: fakeToStrategy(strat)})

	m.rollover(context.Background(), testNow)
	assert.Nil(t, m.Current()) // 失败周期空转
	assert.Empty(t, strat.cycles)

	// 故障恢复后下一个 tick 重试成功
	delete(fetcher.errs, slug)
	m.rollover(context.Background(), testNow.Add(time.Second))
	require.NotNil(t, m.Current())
	assert.Equal(t, []string{slug, slug}, fetcher.calls)
	require.Len(t, strat.cycles, 1)
}

func TestQuoteDispatchRoundingAndDiscard(t *testing.T) {
	spec := testSpec(t)
	slug := spec.Slug(spec.CurrentPeriodStartUnix(testNow))

	strat := &fakeStrategy{}
	placer := &fakePlacer{}
	archive := &fakeArchive{}
	m := newTestManager(t, Deps{
		Markets:    &fakeFetcher{markets: map[string]*domain.Market{slug: testDescriptor(slug)}},
		Placer:     placer,
		Archive:    archive,
		Strategies: fakeToStrategy(strat),
	})
	m.rollover(context.Background(), testNow)
	require.NotNil(t, m.Current())

	// 0.555 四舍五入到 56 分
	strat.pending = []domain.OrderIntent{{MarketSlug: slug, Kind: domain.OrderKindEntry, Price: domain.Price{Cents: 56}, Size: 1}}
	m.handleQuoteMessage(context.Background(), priceChangeJSON("up-token", "0.555", "0.54"))

	require.Len(t, strat.quotes, 1)
	assert.Equal(t, domain.TokenTypeUp, strat.quotes[0].TokenType)
	assert.Equal(t, 56, strat.quotes[0].NewAsk.Cents)
	assert.Equal(t, 54, strat.quotes[0].NewBid.Cents)
	require.Len(t, placer.intents, 1)
	assert.Equal(t, domain.OrderKindEntry, placer.intents[0].Kind)
	require.Len(t, archive.records, 1)
	assert.Equal(t, 56, archive.records[0].UpCents)

	// 不属于当前合约的资产直接丢弃
	m.handleQuoteMessage(context.Background(), priceChangeJSON("stale-token", "0.90", "0.89"))
	assert.Len(t, strat.quotes, 1)

	// 四舍五入后无变化的重复报价被抑制
	m.handleQuoteMessage(context.Background(), priceChangeJSON("up-token", "0.559", "0.54"))
	assert.Len(t, strat.quotes, 1)

	// ask 变化再次触发
	m.handleQuoteMessage(context.Background(), priceChangeJSON("up-token", "0.60", "0.54"))
	require.Len(t, strat.quotes, 2)
	assert.Equal(t, 56, strat.quotes[1].OldAsk.Cents)
	assert.Equal(t, 60, strat.quotes[1].NewAsk.Cents)
}

func TestLegacyFlatQuoteMessage(t *testing.T) {
	spec := testSpec(t)
	slug := spec.Slug(spec.CurrentPeriodStartUnix(testNow))

	strat := &fakeStrategy{}
	m := newTestManager(t, Deps{
		Markets:    &fakeFetcher{markets: map[string]*domain.Market{slug: testDescriptor(slug)}},
		Strategies: fakeToStrategy(strat),
	})
	m.rollover(context.Background(), testNow)

	m.handleQuoteMessage(context.Background(),
		[]byte(`{"asset_id":"down-token","best_ask":"0.42","best_bid":"0.40"}`))
	require.Len(t, strat.quotes, 1)
	assert.Equal(t, domain.TokenTypeDown, strat.quotes[0].TokenType)
	assert.Equal(t, 42, strat.quotes[0].NewAsk.Cents)

	// 数组格式
	m.handleQuoteMessage(context.Background(),
		[]byte(`[{"asset_id":"down-token","best_ask":"0.45","best_bid":"0.40"}]`))
	require.Len(t, strat.quotes, 2)
	assert.Equal(t, 45, strat.quotes[1].NewAsk.Cents)
}

func TestSettleOnPeriodRollover(t *testing.T) {
	spec := testSpec(t)
	slug1 := spec.Slug(spec.CurrentPeriodStartUnix(testNow))
	next := testNow.Add(15 * time.Minute)
	slug2 := spec.Slug(spec.CurrentPeriodStartUnix(next))

	d2 := testDescriptor(slug2)
	d2.UpAssetID = "up-token-2"
	d2.DownAssetID = "down-token-2"

	strat := &fakeStrategy{}
	archive := &fakeArchive{}
	m := newTestManager(t, Deps{
		Markets: &fakeFetcher{markets: map[string]*domain.Market{
			slug1: testDescriptor(slug1),
			slug2: d2,
		}},
		Archive:    archive,
		Strategies: fakeToStrategy(strat),
	})

	m.rollover(context.Background(), testNow)
	m.handleQuoteMessage(context.Background(), priceChangeJSON("up-token", "0.97", "0.95"))
	m.handleQuoteMessage(context.Background(), priceChangeJSON("down-token", "0.03", "0.01"))

	m.rollover(context.Background(), next)

	// 按周期末快照结算
	require.Len(t, strat.settled, 1)
	assert.Equal(t, 97, strat.settled[0].Up.Cents)
	assert.Equal(t, 3, strat.settled[0].Down.Cents)

	// 结算记录带赢方
	var winners []string
	for _, rec := range archive.records {
		if rec.Winner != "" {
			winners = append(winners, rec.Winner)
		}
	}
	require.Len(t, winners, 1)
	assert.Equal(t, domain.TokenTypeUp.String(), winners[0])

	// 结算结果进入控制面可见的近期列表
	recent := m.RecentSettlements()
	require.Len(t, recent, 1)
	assert.Equal(t, "fake", recent[0].Strategy)
	assert.Equal(t, domain.TokenTypeUp, recent[0].Settlement.Winner)

	// 新周期就位，旧周期报价不再被接受
	require.NotNil(t, m.Current())
	assert.Equal(t, slug2, m.Current().Slug)
	require.Len(t, strat.cycles, 2)
	assert.Equal(t, slug1, strat.cycles[1].old.Slug)

	before := len(strat.quotes)
	m.handleQuoteMessage(context.Background(), priceChangeJSON("up-token", "0.50", "0.48"))
	assert.Len(t, strat.quotes, before)
}

func TestNilPlacerIsReadOnly(t *testing.T) {
	spec := testSpec(t)
	slug := spec.Slug(spec.CurrentPeriodStartUnix(testNow))

	strat := &fakeStrategy{}
	m := newTestManager(t, Deps{
		Markets:    &fakeFetcher{markets: map[string]*domain.Market{slug: testDescriptor(slug)}},
		Strategies: fakeToStrategy(strat),
	})
	m.rollover(context.Background(), testNow)

	strat.pending = []domain.OrderIntent{{MarketSlug: slug, Kind: domain.OrderKindEntry, Price: domain.Price{Cents: 55}, Size: 1}}
	// 无下单执行器时不会 panic，意图只记录日志
	m.handleQuoteMessage(context.Background(), priceChangeJSON("up-token", "0.55", "0.53"))
	require.Len(t, strat.quotes, 1)
}

func TestBreakerBlocksDispatchAfterFailures(t *testing.T) {
	spec := testSpec(t)
	slug := spec.Slug(spec.CurrentPeriodStartUnix(testNow))

	strat := &fakeStrategy{}
	placer := &fakePlacer{err: errors.New("rejected")}
	breaker := risk.New(risk.Config{MaxConsecutiveErrors: 2})
	m := newTestManager(t, Deps{
		Markets:    &fakeFetcher{markets: map[string]*domain.Market{slug: testDescriptor(slug)}},
		Placer:     placer,
		Breaker:    breaker,
		Strategies: fakeToStrategy(strat),
	})
	m.rollover(context.Background(), testNow)

	intent := []domain.OrderIntent{{MarketSlug: slug, Kind: domain.OrderKindEntry, Price: domain.Price{Cents: 55}, Size: 1}}

	strat.pending = intent
	m.handleQuoteMessage(context.Background(), priceChangeJSON("up-token", "0.55", "0.53"))
	strat.pending = intent
	m.handleQuoteMessage(context.Background(), priceChangeJSON("up-token", "0.56", "0.54"))
	assert.False(t, breaker.Open())

	// 第三次失败触发熔断，后续意图被丢弃而不再下单
	strat.pending = intent
	m.handleQuoteMessage(context.Background(), priceChangeJSON("up-token", "0.57", "0.55"))
	assert.True(t, breaker.Open())
	assert.Empty(t, placer.intents)

	placer.err = nil
	strat.pending = intent
	m.handleQuoteMessage(context.Background(), priceChangeJSON("up-token", "0.58", "0.56"))
	assert.Empty(t, placer.intents)

	// 人工恢复后正常下单
	breaker.Resume()
	strat.pending = intent
	m.handleQuoteMessage(context.Background(), priceChangeJSON("up-token", "0.59", "0.57"))
	assert.Len(t, placer.intents, 1)
}

func TestStartPriceFallsBackToOpenPrice(t *testing.T) {
	spec := testSpec(t)
	slug := spec.Slug(spec.CurrentPeriodStartUnix(testNow))

	strat := &fakeStrategy{}
	m := newTestManager(t, Deps{
		Markets:    &fakeFetcher{markets: map[string]*domain.Market{slug: testDescriptor(slug)}},
		OpenPrice:  openPriceFunc(func(_ context.Context, symbol string, _, _ time.Time) (decimal.Decimal, error) {
			assert.Equal(t, "BTCUSDT", symbol)
			return decimal.NewFromInt(99500), nil
		}),
		Strategies: fakeToStrategy(strat),
	})
	m.cfg.BinanceSymbol = "BTCUSDT"

	m.rollover(context.Background(), testNow)
	require.Len(t, strat.cycles, 1)
	assert.True(t, strat.cycles[0].startPrice.Equal(decimal.NewFromInt(99500)))
}

type openPriceFunc func(ctx context.Context, symbol string, start, end time.Time) (decimal.Decimal, error)

func (f openPriceFunc) OpenPrice(ctx context.Context, symbol string, start, end time.Time) (decimal.Decimal, error) {
	return f(ctx, symbol, start, end)
}
