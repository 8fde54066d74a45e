package domain

// Grid 网格领域模型。
// 层级从 50 分（不含）开始按间距递增，上限为 maxTotalCost（含）。
// 例如 gap=5、max=97 时层级为 [55, 60, ..., 95]。
type Grid struct {
	Levels     []int // 网格层级列表（分），升序
	StartLevel int   // 起始基准（分），层级均大于该值
	Gap        int   // 网格间距（分）
	EndLevel   int   // 层级上限（分，含）
}

// NewGrid 创建新网格（层级 = startLevel+gap, startLevel+2*gap, ... <= endLevel）
func NewGrid(startLevel, gap, endLevel int) *Grid {
	levels := make([]int, 0)
	if gap > 0 {
		for level := startLevel + gap; level <= endLevel; level += gap {
			levels = append(levels, level)
		}
	}
	return &Grid{
		Levels:     levels,
		StartLevel: startLevel,
		Gap:        gap,
		EndLevel:   endLevel,
	}
}

// CrossedLevels 返回价格从 oldCents 变动到 newCents 时向上穿越的层级
// （旧价严格低于层级、新价到达或越过层级），升序。
// 同一次跳变越过多个层级时全部返回。
func (g *Grid) CrossedLevels(oldCents, newCents int) []int {
	if newCents <= oldCents {
		return nil
	}
	crossed := make([]int, 0)
	for _, level := range g.Levels {
		if oldCents < level && newCents >= level {
			crossed = append(crossed, level)
		}
	}
	return crossed
}

// Contains 判断价格是否恰好位于某个网格层级
func (g *Grid) Contains(priceCents int) bool {
	for _, level := range g.Levels {
		if level == priceCents {
			return true
		}
	}
	return false
}
