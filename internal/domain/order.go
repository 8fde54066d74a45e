package domain

import (
	"time"
)

// OrderKind 订单意图类型
type OrderKind string

const (
	OrderKindEntry OrderKind = "entry" // 网格入场
	OrderKindHedge OrderKind = "hedge" // 对侧对冲
)

// OrderIntent 策略产出的下单意图。
// 策略本身不直接触达交易所，意图由生命周期管理器转交给下单执行器。
type OrderIntent struct {
	MarketSlug string    // 所属市场周期（如 btc-updown-15m-xxxx）
	AssetID    string    // 资产 ID
	TokenType  TokenType // 代币方向
	Kind       OrderKind // entry / hedge
	Price      Price     // 限价（分）
	Size       float64   // 数量（份）
	GridLevel  int       // 关联的网格层级（分）
	ReEntry    bool      // 是否为对冲成交后的再入场
	CreatedAt  time.Time
}

// FinalQuotes 周期结束时两侧的最终观测报价，用于判定赢方
type FinalQuotes struct {
	Up   Price
	Down Price
}

// Winner 返回最终报价更高的一侧。
// 两侧相等时视为 up 获胜（边界情形，实际市场中结算前总有一侧趋近 1）。
func (f FinalQuotes) Winner() TokenType {
	if f.Down.Cents > f.Up.Cents {
		return TokenTypeDown
	}
	return TokenTypeUp
}

// Settlement 一个周期的结算估值结果
type Settlement struct {
	MarketSlug   string
	Winner       TokenType
	Entries      int     // 入场笔数
	HedgesFilled int     // 成交的对冲笔数
	GrossCents   float64 // 各配对贡献之和（分）
	CostCents    float64 // 实际支付的入场+对冲成本（分）
	ProfitCents  float64 // Gross - Cost
	SettledAt    time.Time
}
