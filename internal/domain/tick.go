package domain

import "time"

// TickRecord 持久化的行情/结算记录（用于回测与复盘）
type TickRecord struct {
	Slug      string
	Symbol    string
	Timeframe string
	At        time.Time
	UpCents   int
	DownCents int
	Winner    string // 周期未结束时为空
}
