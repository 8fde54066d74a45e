package domain

import (
	"fmt"
	"strings"
	"time"
)

// TokenType 结果代币类型（二元市场的两个方向）
type TokenType string

const (
	TokenTypeUp   TokenType = "up"
	TokenTypeDown TokenType = "down"
)

// Opposite 返回对侧代币
func (t TokenType) Opposite() TokenType {
	if t == TokenTypeUp {
		return TokenTypeDown
	}
	return TokenTypeUp
}

func (t TokenType) String() string { return string(t) }

// Market 表示一个 updown 合约周期的市场描述符。
// 由 Gamma API 按 slug 获取；token ids 的顺序约定：索引 0 = up，索引 1 = down。
// 上游若调整顺序，可通过 SwapTokens 覆盖该约定。
type Market struct {
	ID          string
	Slug        string
	Question    string
	ConditionID string
	UpAssetID   string // clobTokenIds[0]
	DownAssetID string // clobTokenIds[1]
	PeriodStart time.Time
	PeriodEnd   time.Time
	FetchedAt   time.Time
}

// GetAssetID 根据代币类型获取资产 ID
func (m *Market) GetAssetID(t TokenType) string {
	if t == TokenTypeUp {
		return m.UpAssetID
	}
	return m.DownAssetID
}

// TokenTypeOf 按资产 ID 反查代币类型；不属于本市场返回 false
func (m *Market) TokenTypeOf(assetID string) (TokenType, bool) {
	switch assetID {
	case m.UpAssetID:
		return TokenTypeUp, true
	case m.DownAssetID:
		return TokenTypeDown, true
	default:
		return "", false
	}
}

// Contains 判断资产 ID 是否属于本市场
func (m *Market) Contains(assetID string) bool {
	_, ok := m.TokenTypeOf(assetID)
	return ok
}

// SwapTokens 交换 up/down 资产 ID（覆盖默认的 0=up/1=down 约定）
func (m *Market) SwapTokens() {
	m.UpAssetID, m.DownAssetID = m.DownAssetID, m.UpAssetID
}

// Validate 校验描述符完整性
func (m *Market) Validate() error {
	if m == nil {
		return fmt.Errorf("market 为空")
	}
	if strings.TrimSpace(m.Slug) == "" {
		return fmt.Errorf("market slug 为空")
	}
	if m.UpAssetID == "" || m.DownAssetID == "" {
		return fmt.Errorf("market %s 缺少 token id（需要 up/down 两个）", m.Slug)
	}
	if m.UpAssetID == m.DownAssetID {
		return fmt.Errorf("market %s 的 up/down token id 相同", m.Slug)
	}
	return nil
}
