package data

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// PricePoint is one adjusted daily close.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceAPI is the external price source. Implementations handle their own
// transport; the loader wraps calls with a breaker and rate limiter.
type PriceAPI interface {
	DailyCloses(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error)
}

// PriceLoaderConfig tunes the layered source chain.
type PriceLoaderConfig struct {
	CacheDir string        // disk cache location
	CacheTTL time.Duration // disk/redis entry freshness bound
	RedisTTL time.Duration // warm tier expiry, defaults to CacheTTL
	APIRate  float64       // API requests per second
}

// DefaultPriceLoaderConfig returns the standard chain settings.
func DefaultPriceLoaderConfig() PriceLoaderConfig {
	return PriceLoaderConfig{
		CacheDir: "cache/prices",
		CacheTTL: 24 * time.Hour,
		APIRate:  4,
	}
}

// PriceLoader fetches daily closes through a layered chain: disk cache with
// TTL, then redis warm tier, then the external API. The API is guarded by a
// circuit breaker so one flaky provider cannot stall a whole load.
type PriceLoader struct {
	cfg     PriceLoaderConfig
	api     PriceAPI
	redis   *redis.Client // optional, nil disables the warm tier
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewPriceLoader creates a loader. redisClient may be nil.
func NewPriceLoader(cfg PriceLoaderConfig, api PriceAPI, redisClient *redis.Client) *PriceLoader {
	if cfg.RedisTTL == 0 {
		cfg.RedisTTL = cfg.CacheTTL
	}
	if cfg.APIRate <= 0 {
		cfg.APIRate = 4
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "price_api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &PriceLoader{
		cfg:     cfg,
		api:     api,
		redis:   redisClient,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(cfg.APIRate), 1),
	}
}

type cachedSeries struct {
	FetchedAt time.Time    `json:"fetched_at"`
	Points    []PricePoint `json:"points"`
}

// Load assembles a PriceMatrix for the symbols over [from, to]. Symbols whose
// history cannot be obtained from any tier are dropped with a warning; the
// load fails only when nothing at all could be fetched.
func (l *PriceLoader) Load(ctx context.Context, symbols []string, from, to time.Time) (*PriceMatrix, error) {
	series := make(map[string][]PricePoint, len(symbols))
	var failed []string

	for _, sym := range symbols {
		points, err := l.loadSymbol(ctx, sym, from, to)
		if err != nil {
			log.Warn().Str("symbol", sym).Err(err).Msg("price load failed, dropping symbol")
			failed = append(failed, sym)
			continue
		}
		series[sym] = points
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("no prices loaded for any of %d symbols", len(symbols))
	}
	if len(failed) > 0 {
		log.Warn().Int("dropped", len(failed)).Int("loaded", len(series)).
			Msg("partial price load")
	}

	return buildMatrix(series)
}

func (l *PriceLoader) loadSymbol(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error) {
	if points, ok := l.fromDisk(symbol, from, to); ok {
		return points, nil
	}

	if points, ok := l.fromRedis(ctx, symbol, from, to); ok {
		l.toDisk(symbol, from, to, points)
		return points, nil
	}

	points, err := l.fromAPI(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	l.toDisk(symbol, from, to, points)
	l.toRedis(ctx, symbol, from, to, points)
	return points, nil
}

func (l *PriceLoader) cachePath(symbol string, from, to time.Time) string {
	name := fmt.Sprintf("%s_%s_%s.json", symbol, from.Format("20060102"), to.Format("20060102"))
	return filepath.Join(l.cfg.CacheDir, name)
}

func (l *PriceLoader) redisKey(symbol string, from, to time.Time) string {
	return fmt.Sprintf("prices:%s:%s:%s", symbol, from.Format("20060102"), to.Format("20060102"))
}

func (l *PriceLoader) fromDisk(symbol string, from, to time.Time) ([]PricePoint, bool) {
	raw, err := os.ReadFile(l.cachePath(symbol, from, to))
	if err != nil {
		return nil, false
	}

	var cached cachedSeries
	if err := json.Unmarshal(raw, &cached); err != nil {
		log.Debug().Str("symbol", symbol).Err(err).Msg("corrupt disk cache entry")
		return nil, false
	}

	if time.Since(cached.FetchedAt) > l.cfg.CacheTTL {
		return nil, false
	}
	return cached.Points, true
}

func (l *PriceLoader) toDisk(symbol string, from, to time.Time, points []PricePoint) {
	if err := os.MkdirAll(l.cfg.CacheDir, 0o755); err != nil {
		log.Debug().Err(err).Msg("cannot create price cache dir")
		return
	}

	raw, err := json.Marshal(cachedSeries{FetchedAt: time.Now(), Points: points})
	if err != nil {
		return
	}
	if err := os.WriteFile(l.cachePath(symbol, from, to), raw, 0o644); err != nil {
		log.Debug().Str("symbol", symbol).Err(err).Msg("disk cache write failed")
	}
}

func (l *PriceLoader) fromRedis(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, bool) {
	if l.redis == nil {
		return nil, false
	}

	raw, err := l.redis.Get(ctx, l.redisKey(symbol, from, to)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Str("symbol", symbol).Err(err).Msg("redis price read failed")
		}
		return nil, false
	}

	var cached cachedSeries
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false
	}
	if time.Since(cached.FetchedAt) > l.cfg.CacheTTL {
		return nil, false
	}
	return cached.Points, true
}

func (l *PriceLoader) toRedis(ctx context.Context, symbol string, from, to time.Time, points []PricePoint) {
	if l.redis == nil {
		return
	}

	raw, err := json.Marshal(cachedSeries{FetchedAt: time.Now(), Points: points})
	if err != nil {
		return
	}
	if err := l.redis.Set(ctx, l.redisKey(symbol, from, to), raw, l.cfg.RedisTTL).Err(); err != nil {
		log.Debug().Str("symbol", symbol).Err(err).Msg("redis price write failed")
	}
}

func (l *PriceLoader) fromAPI(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error) {
	if l.api == nil {
		return nil, fmt.Errorf("no price API configured and caches missed for %s", symbol)
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := l.breaker.Execute(func() (interface{}, error) {
		return l.api.DailyCloses(ctx, symbol, from, to)
	})
	if err != nil {
		return nil, fmt.Errorf("price API fetch for %s: %w", symbol, err)
	}

	points := result.([]PricePoint)
	if len(points) == 0 {
		return nil, fmt.Errorf("price API returned no data for %s", symbol)
	}
	return points, nil
}

// buildMatrix unions per-symbol series onto one ascending calendar, filling
// gaps with NaN.
func buildMatrix(series map[string][]PricePoint) (*PriceMatrix, error) {
	dateSet := make(map[time.Time]struct{})
	for _, points := range series {
		for _, p := range points {
			dateSet[p.Date.Truncate(24*time.Hour)] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	dateIdx := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		dateIdx[d] = i
	}

	symbols := make([]string, 0, len(series))
	for sym := range series {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	prices := make([][]float64, len(dates))
	for i := range prices {
		row := make([]float64, len(symbols))
		for j := range row {
			row[j] = math.NaN()
		}
		prices[i] = row
	}

	for col, sym := range symbols {
		for _, p := range series[sym] {
			if i, ok := dateIdx[p.Date.Truncate(24*time.Hour)]; ok {
				prices[i][col] = p.Close
			}
		}
	}

	return NewPriceMatrix(dates, symbols, prices)
}
