// Package strategies 定义策略接口与注册表。
// 策略按 ID 注册工厂，每个 (asset, period) 引擎实例化自己的策略副本，
// 实例之间不共享任何可变状态。
package strategies

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/betbot/updown/internal/domain"
	"github.com/betbot/updown/internal/events"
)

// Strategy 策略接口：输入为有序报价流与周期边界，
// 输出为下单意图与周期结算估值。
type Strategy interface {
	ID() string
	Defaults() error
	Validate() error

	// OnCycle 周期切换：重置本周期状态（网格状态绝不跨周期保留）。
	// old 可能为 nil（首个周期）；cur 为 nil 表示描述符获取失败、本周期空转。
	OnCycle(old, cur *domain.Market, startPrice decimal.Decimal)

	// OnQuote 消费一次报价变化，返回产生的下单意图（可为空）。
	// 由引擎 goroutine 串行调用，实现无需加锁。
	OnQuote(ev *events.QuoteChangedEvent) []domain.OrderIntent

	// Settle 按周期末的最终报价对本周期估值。幂等：重复调用返回相同结果。
	Settle(final domain.FinalQuotes) domain.Settlement
}

// ReferencePriceConsumer 需要参考价格（现货价）的策略实现该接口
type ReferencePriceConsumer interface {
	OnReferencePrice(ev *events.ReferencePriceEvent)
}

// Factory 创建一个全新的策略实例
type Factory func() Strategy

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register 注册策略工厂（通常在变体包的 init 中调用）
func Register(id string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[id]; exists {
		panic(fmt.Sprintf("策略 %s 重复注册", id))
	}
	registry[id] = factory
}

// New 按 ID 创建策略实例
func New(id string) (Strategy, error) {
	registryMu.RLock()
	factory, exists := registry[id]
	registryMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("策略 %s 未注册（已注册: %v）", id, IDs())
	}
	return factory(), nil
}

// IDs 返回所有已注册的策略 ID（升序）
func IDs() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
