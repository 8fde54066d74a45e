package gridhedge

import (
	"github.com/betbot/updown/internal/domain"
)

// pairPosition 一个 入场+对冲 配对。
// 入场按网格层级价成交记账；对冲挂在对侧，价格 = max(0, maxTotalCost - 入场价)。
type pairPosition struct {
	Token       domain.TokenType // 入场代币
	Level       int              // 触发层级（分）
	EntryPrice  int              // 入场价（分）
	HedgePrice  int              // 对冲价（分，对侧）
	HedgeFilled bool             // 对冲是否已成交
	Size        float64
	ReEntry     bool // 是否为再入场
}

// sideState 单侧（up 或 down）的周期内状态
type sideState struct {
	token   domain.TokenType
	lastAsk *int                  // 上一次观测的 best ask（分）；nil = 尚无基线
	active  map[int]*pairPosition // 层级 -> 最近一次在该层级开的配对
}

func newSideState(token domain.TokenType) *sideState {
	return &sideState{
		token:  token,
		active: make(map[int]*pairPosition),
	}
}

// canFire 判断层级是否可以触发入场：
// 从未触发过，或（enableRebuy 且上一配对的对冲已成交）。
func (s *sideState) canFire(level int, enableRebuy bool) (fire bool, reentry bool) {
	p, exists := s.active[level]
	if !exists || p == nil {
		return true, false
	}
	if enableRebuy && p.HedgeFilled {
		return true, true
	}
	return false, false
}
