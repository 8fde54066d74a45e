// Package risk 提供下单熔断：连续下单失败或当日亏损超限时停止真实下单。
package risk

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrBreakerOpen 熔断器已打开，禁止继续下单
var ErrBreakerOpen = errors.New("熔断器已打开")

// Config 阈值 <= 0 表示关闭对应限制
type Config struct {
	MaxConsecutiveErrors int64 `yaml:"max_consecutive_errors"` // 连续下单失败上限
	DailyLossLimitCents  int64 `yaml:"daily_loss_limit_cents"` // 当日最大亏损（分）
}

// Breaker 全部使用原子变量，引擎热路径与控制面并发访问无需加锁。
// 亏损口径：周期结算时由引擎调用 AddPnLCents 累计。
type Breaker struct {
	open atomic.Bool

	consecutive atomic.Int64
	dailyPnl    atomic.Int64
	dayKey      atomic.Int64 // YYYYMMDD

	maxConsecutive atomic.Int64
	lossLimit      atomic.Int64
}

func New(cfg Config) *Breaker {
	b := &Breaker{}
	b.maxConsecutive.Store(cfg.MaxConsecutiveErrors)
	b.lossLimit.Store(cfg.DailyLossLimitCents)
	return b
}

// Allow 下单前检查。nil Breaker 始终放行。
func (b *Breaker) Allow() error {
	if b == nil {
		return nil
	}
	if b.open.Load() {
		return ErrBreakerOpen
	}
	if n := b.maxConsecutive.Load(); n > 0 && b.consecutive.Load() >= n {
		b.open.Store(true)
		return ErrBreakerOpen
	}
	if limit := b.lossLimit.Load(); limit > 0 {
		b.rollDay()
		if b.dailyPnl.Load() <= -limit {
			b.open.Store(true)
			return ErrBreakerOpen
		}
	}
	return nil
}

// RecordSuccess 下单成功，清空连续失败计数
func (b *Breaker) RecordSuccess() {
	if b == nil {
		return
	}
	b.consecutive.Store(0)
}

// RecordError 下单失败，累计连续失败计数
func (b *Breaker) RecordError() {
	if b == nil {
		return
	}
	b.consecutive.Add(1)
}

// AddPnLCents 累计当日盈亏（分，负数为亏损）
func (b *Breaker) AddPnLCents(delta int64) {
	if b == nil {
		return
	}
	b.rollDay()
	b.dailyPnl.Add(delta)
}

// Halt 人工熔断
func (b *Breaker) Halt() {
	if b == nil {
		return
	}
	b.open.Store(true)
}

// Resume 人工恢复，同时清空连续失败计数
func (b *Breaker) Resume() {
	if b == nil {
		return
	}
	b.open.Store(false)
	b.consecutive.Store(0)
}

// Open 返回当前是否处于熔断状态
func (b *Breaker) Open() bool {
	return b != nil && b.open.Load()
}

// rollDay 跨日时清零当日盈亏。本地时间口径，风控用途不要求跨时区精确。
func (b *Breaker) rollDay() {
	now := time.Now()
	key := int64(now.Year()*10000 + int(now.Month())*100 + now.Day())
	prev := b.dayKey.Load()
	if prev == key {
		return
	}
	if b.dayKey.CompareAndSwap(prev, key) {
		b.dailyPnl.Store(0)
	}
}
