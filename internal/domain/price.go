package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Price 报价价格（分）。
// 行情推送的报价统一四舍五入到两位小数后以分为单位保存，
// 避免浮点误差进入网格判断。
type Price struct {
	Cents int
}

// PriceFromDecimal 将 0.xx 形式的小数价格转换为分（四舍五入到两位小数）
func PriceFromDecimal(v float64) Price {
	d := decimal.NewFromFloat(v).Round(2)
	cents := d.Mul(decimal.NewFromInt(100)).IntPart()
	return Price{Cents: int(cents)}
}

// PriceFromString 解析报价字符串（如 "0.555"）并四舍五入到分
func PriceFromString(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("无效的价格 %q: %w", s, err)
	}
	cents := d.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
	return Price{Cents: int(cents)}, nil
}

// Decimal 返回小数形式（0.xx）
func (p Price) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(p.Cents)).Div(decimal.NewFromInt(100))
}

func (p Price) Float64() float64 { return float64(p.Cents) / 100.0 }

func (p Price) String() string { return fmt.Sprintf("%dc", p.Cents) }

// IsZero 报价为 0 视为未知/无效
func (p Price) IsZero() bool { return p.Cents == 0 }

// PricePoint 参考价格点（外部现货价，不是合约报价）。
// 不可变：新价格到达时生成新的 PricePoint，旧值不被修改。
type PricePoint struct {
	Symbol string
	Price  decimal.Decimal
	At     time.Time
}
