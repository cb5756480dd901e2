// Package price 提供币种的 USD 价格：缓存优先，实时接口其次，失败时使用配置的兜底价。
package price

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"custody-core/pkg/cache"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoPrice 实时价格和兜底价格都没有
var ErrNoPrice = errors.New("price: 无可用价格")

// Source 实时价格来源
type Source interface {
	Fetch(ctx context.Context, currencies []string) (map[string]decimal.Decimal, error)
}

type cachedPrice struct {
	USD       decimal.Decimal `json:"usd"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Oracle 价格预言机
type Oracle struct {
	source   Source
	cache    cache.Cache
	ttl      time.Duration
	fallback map[string]decimal.Decimal
}

// NewOracle fallback 的 key 大小写不敏感
func NewOracle(source Source, c cache.Cache, ttl time.Duration, fallback map[string]float64) *Oracle {
	fb := make(map[string]decimal.Decimal, len(fallback))
	for k, v := range fallback {
		fb[strings.ToUpper(k)] = decimal.NewFromFloat(v)
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Oracle{source: source, cache: c, ttl: ttl, fallback: fb}
}

// Price 返回 (USD 价格, 是否实时)
// 1. 缓存 2. 实时接口 3. 兜底价 (live=false)
func (o *Oracle) Price(ctx context.Context, currency string) (decimal.Decimal, bool, error) {
	currency = strings.ToUpper(currency)

	var cached cachedPrice
	if err := o.cache.Get(ctx, cacheKey(currency), &cached); err == nil && cached.USD.IsPositive() {
		return cached.USD, true, nil
	}

	prices, err := o.source.Fetch(ctx, []string{currency})
	if err == nil {
		usd := prices[currency]
		o.store(ctx, currency, usd)
		return usd, true, nil
	}

	fb, ok := o.fallback[currency]
	if !ok || !fb.IsPositive() {
		return decimal.Zero, false, fmt.Errorf("%w: %s: %v", ErrNoPrice, currency, err)
	}
	monitor.Business.PriceFallbackTotal.WithLabelValues(currency).Inc()
	logger.Warn("[Price] 实时价格获取失败，使用兜底价格",
		zap.String("currency", currency), zap.String("fallback", fb.String()), zap.Error(err))
	return fb, false, nil
}

// Refresh 刷新所有已知币种的缓存，由定时任务调用
func (o *Oracle) Refresh(ctx context.Context) error {
	currencies := o.Currencies()
	prices, err := o.source.Fetch(ctx, currencies)
	if err != nil {
		monitor.Business.ExternalErrorsTotal.WithLabelValues("price").Inc()
		return err
	}
	for c, usd := range prices {
		o.store(ctx, c, usd)
	}
	return nil
}

// Currencies 配置了兜底价的币种
func (o *Oracle) Currencies() []string {
	out := make([]string, 0, len(o.fallback))
	for c := range o.fallback {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (o *Oracle) store(ctx context.Context, currency string, usd decimal.Decimal) {
	if err := o.cache.Set(ctx, cacheKey(currency), cachedPrice{USD: usd, FetchedAt: time.Now().UTC()}, o.ttl); err != nil {
		logger.Warn("[Price] 写入缓存失败", zap.String("currency", currency), zap.Error(err))
	}
}

func cacheKey(currency string) string {
	return "price:" + currency
}
