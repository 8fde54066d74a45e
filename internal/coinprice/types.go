package coinprice

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// 上游消息信封（topic/type/payload）
type wsMessage struct {
	Topic     string          `json:"topic"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type subscription struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Filters string `json:"filters,omitempty"`
}

type subscribeRequest struct {
	Action        string         `json:"action"`
	Subscriptions []subscription `json:"subscriptions"`
}

// cryptoPrice 价格更新 payload
type cryptoPrice struct {
	Symbol    string      `json:"symbol"`
	Timestamp int64       `json:"timestamp"`
	Value     flexFloat64 `json:"value"`
}

// flexFloat64 兼容数字与数字字符串两种编码（上游经过代理/网关后两种都可能出现）
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(b []byte) error {
	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		v, err := num.Float64()
		if err != nil {
			return err
		}
		*f = flexFloat64(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat64(v)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into flexFloat64", string(b))
}

func (f flexFloat64) Float64() float64 { return float64(f) }
