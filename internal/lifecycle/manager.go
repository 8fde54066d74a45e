// Package lifecycle 管理一个 (asset, period) 组合的“当前合约”：
// 周期对齐的 slug 计算、描述符获取、边界切换、报价快照维护与策略驱动。
package lifecycle

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/updown/internal/domain"
	"github.com/betbot/updown/internal/events"
	"github.com/betbot/updown/internal/feed"
	"github.com/betbot/updown/internal/risk"
	"github.com/betbot/updown/internal/strategies"
	"github.com/betbot/updown/pkg/marketspec"
)

// DefaultQuoteURL 合约报价流地址
const DefaultQuoteURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

// maxRecentSettlements 控制面保留的结算记录条数
const maxRecentSettlements = 64

// Config 管理器配置
type Config struct {
	Spec          marketspec.MarketSpec
	QuoteURL      string
	ProxyURL      string
	Feed          feed.Config   // 报价流连接参数
	BinanceSymbol string        // 开盘价兜底查询符号，如 "BTCUSDT"
	TickInterval  time.Duration // 周期边界检查间隔
	QuoteBuffer   int           // 报价消息通道容量
}

func (c *Config) applyDefaults() {
	if c.QuoteURL == "" {
		c.QuoteURL = DefaultQuoteURL
	}
	if c.TickInterval == 0 {
		c.TickInterval = time.Second
	}
	if c.QuoteBuffer <= 0 {
		c.QuoteBuffer = 256
	}
}

// Deps 构造注入的协作方。Placer/Archive/Refs/OpenPrice/Breaker 允许为 nil（对应能力关闭）。
type Deps struct {
	Markets    MarketFetcher
	OpenPrice  OpenPriceFetcher
	Placer     OrderPlacer
	Archive    TickArchiver
	Refs       ReferenceSource
	Breaker    *risk.Breaker
	Strategies []strategies.Strategy
}

// Manager 单实例独占一个 goroutine（Run），所有状态变更都在该 goroutine 内完成；
// 报价流的读 goroutine 只向 quoteC 投递原始消息。
// mu 仅用于对外暴露只读状态（控制面查询），引擎内部串行无竞争。
type Manager struct {
	cfg  Config
	deps Deps
	log  *logrus.Entry

	mu          sync.RWMutex
	current     *domain.Market
	periodStart int64
	snapshot    *QuoteSnapshot
	startPrice  decimal.Decimal
	lastRef     decimal.Decimal
	recent      []events.SettlementEvent

	feedConn *feed.Connection
	quoteC   chan []byte
}

// New 创建管理器。依赖全部显式注入，不使用任何进程级单例。
func New(cfg Config, deps Deps) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:  cfg,
		deps: deps,
		log: logrus.WithField("component", "lifecycle").
			WithField("market", cfg.Spec.SlugPrefix()),
		quoteC: make(chan []byte, cfg.QuoteBuffer),
	}
}

// Current 返回当前市场描述符（可能为 nil）
func (m *Manager) Current() *domain.Market {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Snapshot 返回当前报价快照（可能为 nil）
func (m *Manager) Snapshot() *QuoteSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// StartPrice 返回本周期起始参考价
func (m *Manager) StartPrice() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startPrice
}

// Status 控制面查询用的一致性只读快照
type Status struct {
	Slug         string          `json:"slug"`
	PeriodStart  time.Time       `json:"period_start"`
	PeriodEnd    time.Time       `json:"period_end"`
	StartPrice   decimal.Decimal `json:"start_price"`
	UpAskCents   int             `json:"up_ask_cents"`
	DownAskCents int             `json:"down_ask_cents"`
	Strategies   []string        `json:"strategies"`
}

// Status 返回当前周期状态。没有活跃合约时 ok=false。
func (m *Manager) Status() (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil || m.snapshot == nil {
		return Status{}, false
	}
	final := m.snapshot.Final()
	ids := make([]string, 0, len(m.deps.Strategies))
	for _, s := range m.deps.Strategies {
		ids = append(ids, s.ID())
	}
	return Status{
		Slug:         m.current.Slug,
		PeriodStart:  m.current.PeriodStart,
		PeriodEnd:    m.current.PeriodEnd,
		StartPrice:   m.startPrice,
		UpAskCents:   final.Up.Cents,
		DownAskCents: final.Down.Cents,
		Strategies:   ids,
	}, true
}

// RecentSettlements 返回最近若干周期的结算结果（新到旧）
func (m *Manager) RecentSettlements() []events.SettlementEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]events.SettlementEvent, len(m.recent))
	for i := range m.recent {
		out[i] = m.recent[len(m.recent)-1-i]
	}
	return out
}

// Run 驱动主循环直到 ctx 取消
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	var refC <-chan events.ReferencePriceEvent
	if m.deps.Refs != nil {
		refC = m.deps.Refs.Updates()
	}

	m.rollover(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			m.closeFeed()
			return ctx.Err()
		case now := <-ticker.C:
			m.rollover(ctx, now)
		case data := <-m.quoteC:
			m.handleQuoteMessage(ctx, data)
		case ev := <-refC:
			m.lastRef = ev.Point.Price
			for _, s := range m.deps.Strategies {
				if consumer, ok := s.(strategies.ReferencePriceConsumer); ok {
					consumer.OnReferencePrice(&ev)
				}
			}
		}
	}
}

// rollover 周期边界处理。描述符获取失败是可恢复的：
// 本周期暂无合约、报价被抑制，下一个 tick 重试。
func (m *Manager) rollover(ctx context.Context, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ps := m.cfg.Spec.CurrentPeriodStartUnix(now)
	newPeriod := ps != m.periodStart

	if !newPeriod && m.current != nil {
		return // 周期未变且合约正常
	}

	if newPeriod && m.current != nil {
		m.settleCurrent(ctx)
	}

	old := m.current
	if newPeriod {
		m.closeFeed()
		m.current = nil
		m.snapshot = nil
	}
	m.periodStart = ps

	slug := m.cfg.Spec.Slug(ps)
	mkt, err := m.deps.Markets.FetchMarket(ctx, slug)
	if err != nil {
		m.log.Warnf("⚠️ 获取市场描述符失败（下个 tick 重试）: %s: %v", slug, err)
		return
	}
	mkt.PeriodStart, mkt.PeriodEnd = m.cfg.Spec.PeriodBounds(ps)
	if err := mkt.Validate(); err != nil {
		m.log.Warnf("⚠️ 市场描述符无效（下个 tick 重试）: %v", err)
		return
	}

	m.closeFeed()
	m.current = mkt
	m.snapshot = NewQuoteSnapshot(mkt.Slug)
	m.startPrice = m.resolveStartPrice(ctx, ps)

	for _, s := range m.deps.Strategies {
		s.OnCycle(old, mkt, m.startPrice)
	}

	m.openFeed(ctx)
	m.log.Infof("🔄 切换到新周期 %s (up=%s... down=%s...)",
		mkt.Slug, head(mkt.UpAssetID, 8), head(mkt.DownAssetID, 8))
}

// settleCurrent 按快照的最终报价结算全部策略并归档
func (m *Manager) settleCurrent(ctx context.Context) {
	if m.current == nil || m.snapshot == nil {
		return
	}
	final := m.snapshot.Final()
	winner := final.Winner()

	for _, s := range m.deps.Strategies {
		result := s.Settle(final)
		m.log.Infof("📊 [%s] 周期 %s 结算: winner=%s entries=%d profit=%.1fc",
			s.ID(), m.current.Slug, result.Winner, result.Entries, result.ProfitCents)
		m.recent = append(m.recent, events.SettlementEvent{
			Strategy:   s.ID(),
			Settlement: result,
			Timestamp:  time.Now(),
		})
		m.deps.Breaker.AddPnLCents(int64(result.ProfitCents))
	}
	if len(m.recent) > maxRecentSettlements {
		m.recent = m.recent[len(m.recent)-maxRecentSettlements:]
	}

	if m.deps.Archive != nil {
		rec := domain.TickRecord{
			Slug:      m.current.Slug,
			Symbol:    m.cfg.Spec.Symbol,
			Timeframe: m.cfg.Spec.Timeframe.String(),
			At:        time.Now(),
			UpCents:   final.Up.Cents,
			DownCents: final.Down.Cents,
			Winner:    winner.String(),
		}
		if err := m.deps.Archive.WriteTick(ctx, rec); err != nil {
			m.log.Warnf("归档结算记录失败: %v", err)
		}
	}
}

// resolveStartPrice 优先沿用最近参考价，否则回退到权威开盘价查询
func (m *Manager) resolveStartPrice(ctx context.Context, periodStart int64) decimal.Decimal {
	if m.deps.Refs != nil {
		if point, ok := m.deps.Refs.Latest(); ok {
			return point.Price
		}
	}
	if !m.lastRef.IsZero() {
		return m.lastRef
	}
	if m.deps.OpenPrice != nil && m.cfg.BinanceSymbol != "" {
		start, end := m.cfg.Spec.PeriodBounds(periodStart)
		price, err := m.deps.OpenPrice.OpenPrice(ctx, m.cfg.BinanceSymbol, start, end)
		if err != nil {
			m.log.Warnf("⚠️ 获取开盘价失败: %v", err)
			return decimal.Zero
		}
		return price
	}
	return decimal.Zero
}

func (m *Manager) openFeed(ctx context.Context) {
	mkt := m.current
	fcfg := m.cfg.Feed
	fcfg.URL = m.cfg.QuoteURL
	if fcfg.ProxyURL == "" {
		fcfg.ProxyURL = m.cfg.ProxyURL
	}
	if fcfg.Logger == nil {
		fcfg.Logger = m.log.WithField("stream", "quotes")
	}

	m.feedConn = feed.New(fcfg, func() interface{} {
		return marketSubscription{
			Type:      "market",
			AssetsIDs: []string{mkt.UpAssetID, mkt.DownAssetID},
		}
	}, func(data []byte) {
		select {
		case m.quoteC <- data:
		default:
			m.log.Warn("报价通道已满，丢弃消息")
		}
	})

	if err := m.feedConn.Connect(ctx); err != nil {
		m.log.Errorf("🚨 报价流连接失败: %v", err)
	}
}

func (m *Manager) closeFeed() {
	if m.feedConn != nil {
		m.feedConn.Disconnect()
		m.feedConn = nil
	}
	// 丢弃通道里残留的上一周期消息
	for {
		select {
		case <-m.quoteC:
		default:
			return
		}
	}
}

// handleQuoteMessage 解析报价流消息并驱动策略。
// 不属于当前描述符的资产报价直接丢弃（过期合约的尾包）。
func (m *Manager) handleQuoteMessage(ctx context.Context, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.snapshot == nil {
		return
	}

	var msg quoteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		// 部分消息以数组形式推送
		var batch []quoteMessage
		if err2 := json.Unmarshal(data, &batch); err2 != nil {
			m.log.Debugf("无法解析报价消息: %v", err)
			return
		}
		for i := range batch {
			m.applyQuoteMessage(ctx, &batch[i])
		}
		return
	}
	m.applyQuoteMessage(ctx, &msg)
}

func (m *Manager) applyQuoteMessage(ctx context.Context, msg *quoteMessage) {
	if msg.EventType != "" && msg.EventType != "price_change" {
		return
	}
	changes := msg.PriceChanges
	if len(changes) == 0 && msg.AssetID != "" {
		changes = []priceChange{{AssetID: msg.AssetID, BestAsk: msg.BestAsk, BestBid: msg.BestBid}}
	}

	for _, change := range changes {
		token, ok := m.current.TokenTypeOf(change.AssetID)
		if !ok {
			continue // 过期/无关资产
		}
		askRaw := change.BestAsk
		if askRaw == "" {
			askRaw = change.Price
		}
		ask, err := domain.PriceFromString(askRaw)
		if err != nil {
			continue
		}
		bid := domain.Price{}
		if change.BestBid != "" {
			if b, err := domain.PriceFromString(change.BestBid); err == nil {
				bid = b
			}
		}

		changed, oldAsk, oldBid := m.snapshot.Apply(token, ask, bid)
		if !changed {
			continue
		}

		ev := events.QuoteChangedEvent{
			Market:    m.current,
			TokenType: token,
			OldAsk:    oldAsk,
			NewAsk:    ask,
			OldBid:    oldBid,
			NewBid:    bid,
			Timestamp: time.Now(),
		}
		for _, s := range m.deps.Strategies {
			for _, intent := range s.OnQuote(&ev) {
				m.dispatchIntent(ctx, s.ID(), intent)
			}
		}
		m.archiveQuote(ctx)
	}
}

func (m *Manager) dispatchIntent(ctx context.Context, strategyID string, intent domain.OrderIntent) {
	if m.deps.Placer == nil {
		m.log.Infof("📝 [%s] dry-run %s %s %s@%s size=%.1f",
			strategyID, intent.Kind, intent.TokenType, intent.MarketSlug, intent.Price, intent.Size)
		return
	}
	if err := m.deps.Breaker.Allow(); err != nil {
		m.log.Warnf("⚠️ [%s] 熔断中，丢弃意图 %s %s@%s", strategyID, intent.Kind, intent.TokenType, intent.Price)
		return
	}
	orderID, err := m.deps.Placer.PlaceIntent(ctx, intent)
	if err != nil {
		m.deps.Breaker.RecordError()
		m.log.Errorf("🚨 [%s] 下单失败 %s %s@%s: %v",
			strategyID, intent.Kind, intent.TokenType, intent.Price, err)
		return
	}
	m.deps.Breaker.RecordSuccess()
	m.log.Infof("✅ [%s] 已下单 %s %s@%s id=%s",
		strategyID, intent.Kind, intent.TokenType, intent.Price, orderID)
}

func (m *Manager) archiveQuote(ctx context.Context) {
	if m.deps.Archive == nil {
		return
	}
	final := m.snapshot.Final()
	rec := domain.TickRecord{
		Slug:      m.current.Slug,
		Symbol:    m.cfg.Spec.Symbol,
		Timeframe: m.cfg.Spec.Timeframe.String(),
		At:        time.Now(),
		UpCents:   final.Up.Cents,
		DownCents: final.Down.Cents,
	}
	if err := m.deps.Archive.WriteTick(ctx, rec); err != nil {
		m.log.Debugf("归档行情记录失败: %v", err)
	}
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
