package marketspec

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Timeframe 表示市场周期（用于 polymarket updown market slug）。
// 支持：15m / 1h
type Timeframe string

const (
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
)

func ParseTimeframe(v string) (Timeframe, error) {
	s := strings.ToLower(strings.TrimSpace(v))
	switch s {
	case "15m", "15min", "15mins", "15-minute", "15minutes":
		return Timeframe15m, nil
	case "1h", "1hour", "1-hour", "60m", "60min", "60mins":
		return Timeframe1h, nil
	default:
		return "", fmt.Errorf("不支持的 timeframe: %q（支持: 15m/1h）", v)
	}
}

func (t Timeframe) String() string { return string(t) }

func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return 1 * time.Hour
	default:
		// 未知值按 15m 处理，避免 panic（Validate 会兜底）
		return 15 * time.Minute
	}
}

// MarketSpec 表示要订阅/交易的 polymarket updown 市场规格。
type MarketSpec struct {
	Symbol    string // 短符号，如 "btc"、"eth"（15m slug 用）
	AssetName string // 完整名称，如 "bitcoin"、"ethereum"（1h slug 用）
	Timeframe Timeframe
}

var symbolRe = regexp.MustCompile(`^[a-z0-9]+$`)

// 常见符号到完整名称的映射（1h slug 需要完整名称）
var assetNames = map[string]string{
	"btc": "bitcoin",
	"eth": "ethereum",
	"sol": "solana",
	"xrp": "xrp",
}

func New(symbol, timeframe string) (MarketSpec, error) {
	tf, err := ParseTimeframe(timeframe)
	if err != nil {
		return MarketSpec{}, err
	}
	s := strings.ToLower(strings.TrimSpace(symbol))
	if s == "" {
		s = "btc"
	}
	if !symbolRe.MatchString(s) {
		return MarketSpec{}, fmt.Errorf("无效的 symbol: %q（仅允许小写字母/数字）", symbol)
	}
	name := assetNames[s]
	if name == "" {
		name = s
	}
	return MarketSpec{Symbol: s, AssetName: name, Timeframe: tf}, nil
}

func (m MarketSpec) Duration() time.Duration { return m.Timeframe.Duration() }

// CurrentPeriodStartUnix 返回包含 now 的周期起点（UTC 对齐）。
// 例如 15m 周期、now=12:07 时返回 12:00 的时间戳；12:15 起进入下一周期。
func (m MarketSpec) CurrentPeriodStartUnix(now time.Time) int64 {
	utc := now.UTC()
	switch m.Timeframe {
	case Timeframe15m:
		min := (utc.Minute() / 15) * 15
		t := time.Date(utc.Year(), utc.Month(), utc.Day(), utc.Hour(), min, 0, 0, time.UTC)
		return t.Unix()
	case Timeframe1h:
		t := time.Date(utc.Year(), utc.Month(), utc.Day(), utc.Hour(), 0, 0, 0, time.UTC)
		return t.Unix()
	default:
		return utc.Truncate(m.Duration()).Unix()
	}
}

var (
	etOnce sync.Once
	etLoc  *time.Location
)

// eastern 返回美东时区；加载失败时退化为固定 UTC-5
func eastern() *time.Location {
	etOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.FixedZone("ET", -5*3600)
		}
		etLoc = loc
	})
	return etLoc
}

// Slug 根据周期起点生成市场 slug。
//   - 15m: {symbol}-updown-15m-{unixSeconds}，如 btc-updown-15m-1765985400
//   - 1h:  {assetName}-up-or-down-{month}-{day}-{hour}{am|pm}-et，
//     按美东时间、12 小时制、月份小写，如 bitcoin-up-or-down-july-25-3pm-et
func (m MarketSpec) Slug(periodStartUnix int64) string {
	switch m.Timeframe {
	case Timeframe1h:
		et := time.Unix(periodStartUnix, 0).In(eastern())
		month := strings.ToLower(et.Format("January"))
		hour := strings.ToLower(et.Format("3pm"))
		return fmt.Sprintf("%s-up-or-down-%s-%d-%s-et", m.AssetName, month, et.Day(), hour)
	default:
		return fmt.Sprintf("%s-updown-%s-%d", m.Symbol, m.Timeframe.String(), periodStartUnix)
	}
}

func (m MarketSpec) SlugPrefix() string {
	if m.Timeframe == Timeframe1h {
		return fmt.Sprintf("%s-up-or-down-", m.AssetName)
	}
	return fmt.Sprintf("%s-updown-%s-", m.Symbol, m.Timeframe.String())
}

func (m MarketSpec) NextPeriodStartUnix(periodStartUnix int64) int64 {
	return periodStartUnix + int64(m.Duration().Seconds())
}

// NextSlugs 返回从当前周期起的 count 个 slug（预取用）
func (m MarketSpec) NextSlugs(now time.Time, count int) []string {
	if count <= 0 {
		return nil
	}
	start := m.CurrentPeriodStartUnix(now)
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		ts := start + int64(i)*int64(m.Duration().Seconds())
		out = append(out, m.Slug(ts))
	}
	return out
}

// PeriodBounds 返回周期起止时间
func (m MarketSpec) PeriodBounds(periodStartUnix int64) (time.Time, time.Time) {
	start := time.Unix(periodStartUnix, 0).UTC()
	return start, start.Add(m.Duration())
}
