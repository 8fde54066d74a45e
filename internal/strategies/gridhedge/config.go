package gridhedge

import "fmt"

// Config 网格对冲策略参数（价格一律以分为单位）
type Config struct {
	MaxTotalCost     int     `yaml:"maxTotalCost" json:"maxTotalCost"`         // 配对最大总成本（分），也是网格层级上限
	GridGap          int     `yaml:"gridGap" json:"gridGap"`                   // 网格间距（分）
	OrderSize        float64 `yaml:"orderSize" json:"orderSize"`               // 每次入场数量（份）
	EnableRebuy      bool    `yaml:"enableRebuy" json:"enableRebuy"`           // 对冲成交后允许同层级再入场
	EnableDoubleSide bool    `yaml:"enableDoubleSide" json:"enableDoubleSide"` // 双侧入场（false 时仅 up 侧）
}

// ApplyDefaults 填充默认参数
func (c *Config) ApplyDefaults() {
	if c.MaxTotalCost == 0 {
		c.MaxTotalCost = 97
	}
	if c.GridGap == 0 {
		c.GridGap = 5
	}
	if c.OrderSize == 0 {
		c.OrderSize = 10
	}
}

// Validate 校验参数合法性
func (c *Config) Validate() error {
	if c.MaxTotalCost <= 50 || c.MaxTotalCost >= 100 {
		return fmt.Errorf("maxTotalCost 必须在 (50, 100) 区间（分），当前 %d", c.MaxTotalCost)
	}
	if c.GridGap <= 0 {
		return fmt.Errorf("gridGap 必须为正，当前 %d", c.GridGap)
	}
	if c.OrderSize <= 0 {
		return fmt.Errorf("orderSize 必须为正，当前 %f", c.OrderSize)
	}
	return nil
}
