// Package all 通过空白导入注册全部策略变体
package all

import (
	_ "github.com/betbot/updown/internal/strategies/biashedge"
	_ "github.com/betbot/updown/internal/strategies/gridhedge"
)
