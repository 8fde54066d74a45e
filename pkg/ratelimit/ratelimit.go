// Package ratelimit 提供 CLOB / Gamma API 的客户端速率限制。
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter 速率限制器接口
type Limiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	Remaining() int
}

// TokenBucket 令牌桶限制器（写操作：下单/撤单）
type TokenBucket struct {
	capacity   int
	tokens     int
	refillRate int // 每秒补充数
	lastRefill time.Time
	mu         sync.Mutex
}

func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	add := int(now.Sub(tb.lastRefill).Seconds()) * tb.refillRate
	if add > 0 {
		tb.tokens += add
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}
		wait := time.Second
		if tb.refillRate > 0 {
			wait = time.Second / time.Duration(tb.refillRate)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}

// SlidingWindow 滑动窗口限制器（读操作：行情/市场查询）
type SlidingWindow struct {
	limit      int
	windowSize time.Duration
	timestamps []time.Time
	mu         sync.Mutex
}

func NewSlidingWindow(limit int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{limit: limit, windowSize: windowSize}
}

func (sw *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.timestamps) && sw.timestamps[i].Before(cutoff) {
		i++
	}
	sw.timestamps = sw.timestamps[i:]
}

func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	now := time.Now()
	sw.prune(now)
	if len(sw.timestamps) < sw.limit {
		sw.timestamps = append(sw.timestamps, now)
		return true
	}
	return false
}

func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		if sw.Allow() {
			return nil
		}
		sw.mu.Lock()
		wait := sw.windowSize
		if len(sw.timestamps) > 0 {
			wait = time.Until(sw.timestamps[0].Add(sw.windowSize))
		}
		sw.mu.Unlock()
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (sw *SlidingWindow) Remaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.prune(time.Now())
	return sw.limit - len(sw.timestamps)
}

// Manager 按端点键管理限制器。键未注册时退化为宽松的默认限制。
type Manager struct {
	limiters map[string]Limiter
	mu       sync.RWMutex
}

// NewManager 创建管理器并预置官方文档公布的端点限额
func NewManager() *Manager {
	return &Manager{
		limiters: map[string]Limiter{
			// CLOB API
			"clob:order:post":   NewTokenBucket(2400, 240), // 2400/10s
			"clob:order:delete": NewTokenBucket(2400, 240),
			"clob:orders:get":   NewSlidingWindow(150, 10*time.Second),

			// Gamma API
			"gamma:markets:get": NewSlidingWindow(125, 10*time.Second),
		},
	}
}

func (m *Manager) limiter(key string) Limiter {
	m.mu.RLock()
	l, ok := m.limiters[key]
	m.mu.RUnlock()
	if ok {
		return l
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok = m.limiters[key]; ok {
		return l
	}
	l = NewSlidingWindow(500, 10*time.Second)
	m.limiters[key] = l
	return l
}

// Wait 等待直到指定端点允许请求
func (m *Manager) Wait(ctx context.Context, key string) error {
	return m.limiter(key).Wait(ctx)
}

// Allow 检查指定端点是否允许请求
func (m *Manager) Allow(key string) bool {
	return m.limiter(key).Allow()
}

// Remaining 返回指定端点的剩余配额
func (m *Manager) Remaining(key string) int {
	return m.limiter(key).Remaining()
}
