// Package openprice resolves the authoritative opening price of a market
// period from Binance klines. Used as a fallback when the live reference
// price feed has not produced a point yet.
package openprice

import (
	"context"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://api.binance.com"

// Kline is a single candlestick data point.
type Kline struct {
	OpenTime  int64
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	CloseTime int64
}

// Client fetches kline data from the Binance public API.
type Client struct {
	http *resty.Client
	log  *logrus.Entry
}

// New creates a Binance klines client. baseURL and proxyURL may be empty.
func New(baseURL, proxyURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)
	if proxyURL != "" {
		http.SetProxy(proxyURL)
	}
	return &Client{
		http: http,
		log:  logrus.WithField("component", "openprice"),
	}
}

// GetKlines fetches candlesticks. startTime/endTime are in milliseconds;
// zero values are omitted. Binance caps limit at 1000.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, startTime, endTime int64, limit int) ([]Kline, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetQueryParam("interval", interval).
		SetQueryParam("limit", strconv.Itoa(limit))
	if startTime > 0 {
		req.SetQueryParam("startTime", strconv.FormatInt(startTime, 10))
	}
	if endTime > 0 {
		req.SetQueryParam("endTime", strconv.FormatInt(endTime, 10))
	}

	// Binance returns klines as an array of arrays.
	var raw [][]interface{}
	resp, err := req.SetResult(&raw).Get("/api/v3/klines")
	if err != nil {
		return nil, errors.Wrapf(err, "fetch klines %s %s", symbol, interval)
	}
	if resp.IsError() {
		return nil, errors.Errorf("binance API error %d: %s", resp.StatusCode(), resp.String())
	}

	klines := make([]Kline, 0, len(raw))
	for _, row := range raw {
		if len(row) < 7 {
			continue
		}
		k := Kline{}
		if v, ok := row[0].(float64); ok {
			k.OpenTime = int64(v)
		}
		if v, ok := row[6].(float64); ok {
			k.CloseTime = int64(v)
		}
		k.Open = parseDecimal(row[1])
		k.High = parseDecimal(row[2])
		k.Low = parseDecimal(row[3])
		k.Close = parseDecimal(row[4])
		klines = append(klines, k)
	}
	return klines, nil
}

// OpenPrice returns the open of the 1m candle at the period start
// (implements lifecycle.OpenPriceFetcher).
func (c *Client) OpenPrice(ctx context.Context, symbol string, start, end time.Time) (decimal.Decimal, error) {
	klines, err := c.GetKlines(ctx, symbol, "1m", start.UnixMilli(), end.UnixMilli(), 1)
	if err != nil {
		return decimal.Zero, err
	}
	if len(klines) == 0 {
		return decimal.Zero, errors.Errorf("no klines for %s at %s", symbol, start.UTC().Format(time.RFC3339))
	}
	c.log.Debugf("open price %s @ %s = %s", symbol, start.UTC().Format(time.RFC3339), klines[0].Open)
	return klines[0].Open, nil
}

func parseDecimal(v interface{}) decimal.Decimal {
	s, ok := v.(string)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
