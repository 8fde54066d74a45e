// Package coinprice 维护单个币种的最新参考价格（现货价）。
package coinprice

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
)

const (
	// DefaultURL 参考价格流地址
	DefaultURL = "wss://ws-live-data.polymarket.com"

	topicCryptoPrices = "crypto_prices"
	actionSubscribe   = "subscribe"
	typeUpdate        = "update"
)

// Config Tracker 配置
type Config struct {
	URL        string
	ProxyURL   string
	Symbol     string // 订阅符号，如 "btcusdt"
	BufferSize int    // 变化通知通道容量
	Feed       feed.Config
}

// Tracker 订阅参考价格流并保存最新价格点。
// 价格点不可变：新价格到达时替换指针，旧值不被修改。
type Tracker struct {
	symbol string
	conn   *feed.Connection
	log    *logrus.Entry

	mu     sync.RWMutex
	latest *domain.PricePoint

	updates chan events.ReferencePriceEvent
}

// New 创建 Tracker（不建立连接，Start 才会连接）
func New(cfg Config) *Tracker {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	log := logrus.WithField("component", "coinprice").WithField("symbol", cfg.Symbol)

	t := &Tracker{
		symbol:  cfg.Symbol,
		log:     log,
		updates: make(chan events.ReferencePriceEvent, cfg.BufferSize),
	}

	fcfg := cfg.Feed
	fcfg.URL = cfg.URL
	if fcfg.ProxyURL == "" {
		fcfg.ProxyURL = cfg.ProxyURL
	}
	if fcfg.Logger == nil {
		fcfg.Logger = log
	}
	t.conn = feed.New(fcfg, t.subscribePayload, t.handleMessage)
	return t
}

// Start 建立连接并订阅
func (t *Tracker) Start(ctx context.Context) error {
	return t.conn.Connect(ctx)
}

// Stop 终止连接（不可恢复）
func (t *Tracker) Stop() {
	t.conn.Disconnect()
}

// Latest 返回最新价格点；尚未收到任何价格时返回 false
func (t *Tracker) Latest() (domain.PricePoint, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.latest == nil {
		return domain.PricePoint{}, false
	}
	return *t.latest, true
}

// Updates 返回价格变化通知通道。
// 消费方跟不上时新事件被丢弃（Latest 始终保留最新值）。
func (t *Tracker) Updates() <-chan events.ReferencePriceEvent {
	return t.updates
}

func (t *Tracker) subscribePayload() interface{} {
	filters, _ := json.Marshal(map[string]string{"symbol": t.symbol})
	return subscribeRequest{
		Action: actionSubscribe,
		Subscriptions: []subscription{
			{Topic: topicCryptoPrices, Type: typeUpdate, Filters: string(filters)},
		},
	}
}

// handleMessage 在 feed 的读 goroutine 上执行
func (t *Tracker) handleMessage(data []byte) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.log.Warnf("解析消息失败: %v", err)
		return
	}
	if msg.Topic != topicCryptoPrices {
		return
	}
	if msg.Type != "" && msg.Type != typeUpdate {
		return
	}

	var cp cryptoPrice
	if err := json.Unmarshal(msg.Payload, &cp); err != nil {
		t.log.Warnf("解析价格 payload 失败: %v", err)
		return
	}
	if cp.Symbol != "" && cp.Symbol != t.symbol {
		return
	}

	at := time.Now()
	if cp.Timestamp > 1e12 {
		at = time.UnixMilli(cp.Timestamp)
	} else if cp.Timestamp > 0 {
		at = time.Unix(cp.Timestamp, 0)
	}

	point := domain.PricePoint{
		Symbol: t.symbol,
		Price:  decimal.NewFromFloat(cp.Value.Float64()),
		At:     at,
	}

	t.mu.Lock()
	var prev decimal.Decimal
	if t.latest != nil {
		prev = t.latest.Price
	}
	t.latest = &point
	t.mu.Unlock()

	select {
	case t.updates <- events.ReferencePriceEvent{Point: point, Prev: prev}:
	default:
		// 消费慢时丢弃通知，Latest 保留最新值
	}
}
