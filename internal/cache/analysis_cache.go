package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/telemetry"
)

const (
	compositePrefix = "composite:"
	runReportPrefix = "run_report:"
	latestRunKey    = runReportPrefix + "latest"
)

// Stats tracks cache performance.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

// HitRate is the hit percentage, 0 when nothing was read.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

type counters struct {
	mu sync.RWMutex
	Stats
}

func (c *counters) hit() {
	c.mu.Lock()
	c.Hits++
	c.mu.Unlock()
}

func (c *counters) miss() {
	c.mu.Lock()
	c.Misses++
	c.mu.Unlock()
}

func (c *counters) set() {
	c.mu.Lock()
	c.Sets++
	c.mu.Unlock()
}

func (c *counters) snapshot() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Stats
}

// jsonCache stores JSON values under string keys with a fixed TTL. Read
// failures are logged and reported as misses so callers fall back to the
// database.
type jsonCache[T any] struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
	stats  *counters
	tracer trace.Tracer
}

func newJSONCache[T any](client *redis.Client, ttl time.Duration, logger *logrus.Logger) jsonCache[T] {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return jsonCache[T]{redis: client, ttl: ttl, logger: logger, stats: &counters{}, tracer: telemetry.GetCacheTracer()}
}

func (c jsonCache[T]) get(ctx context.Context, key string) (*T, bool) {
	ctx, span := telemetry.StartSpan(ctx, c.tracer, "cache.get")
	defer span.End()
	telemetry.SetSpanAttributes(span, telemetry.StringAttribute("cache.key", key))

	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.miss(span)
		return nil, false
	}
	if err != nil {
		telemetry.RecordError(span, err)
		c.logger.WithError(err).WithField("key", key).Warn("Redis error reading cache entry")
		c.miss(span)
		return nil, false
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		telemetry.RecordError(span, err)
		c.logger.WithError(err).WithField("key", key).Warn("Discarding undecodable cache entry")
		c.miss(span)
		return nil, false
	}
	c.stats.hit()
	telemetry.SetSpanAttributes(span, telemetry.BoolAttribute("cache.hit", true))
	return &value, true
}

func (c jsonCache[T]) miss(span trace.Span) {
	c.stats.miss()
	telemetry.SetSpanAttributes(span, telemetry.BoolAttribute("cache.hit", false))
}

func (c jsonCache[T]) set(ctx context.Context, value T, keys ...string) error {
	ctx, span := telemetry.StartSpan(ctx, c.tracer, "cache.set")
	defer span.End()
	telemetry.SetSpanAttributes(span, telemetry.Int64Attribute("cache.keys", int64(len(keys))))

	data, err := json.Marshal(value)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("error serializing cache entry: %w", err)
	}

	pipe := c.redis.TxPipeline()
	for _, key := range keys {
		pipe.Set(ctx, key, data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("redis error setting %v: %w", keys, err)
	}
	c.stats.set()
	return nil
}

func (c jsonCache[T]) clear(ctx context.Context, pattern string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, c.tracer, "cache.clear")
	defer span.End()
	telemetry.SetSpanAttributes(span, telemetry.StringAttribute("cache.pattern", pattern))

	var keys []string
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("error scanning cache keys: %w", err)
	}
	if len(keys) > 0 {
		if err := c.redis.Del(ctx, keys...).Err(); err != nil {
			telemetry.RecordError(span, err)
			return 0, fmt.Errorf("error clearing cache: %w", err)
		}
	}
	telemetry.SetSpanAttributes(span, telemetry.Int64Attribute("cache.cleared", int64(len(keys))))
	return len(keys), nil
}

// CompositeCache holds the benchmark composite of each analysis date, so
// reruns of one date skip reloading the benchmark series.
type CompositeCache struct {
	jsonCache[models.MarketComposite]
}

// NewCompositeCache creates a composite cache with the given TTL.
func NewCompositeCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *CompositeCache {
	return &CompositeCache{newJSONCache[models.MarketComposite](client, ttl, logger)}
}

// CompositeKey is the Redis key of the composite for date.
func CompositeKey(date time.Time) string {
	return compositePrefix + models.DateOnly(date).Format(models.DateLayout)
}

func (c *CompositeCache) GetComposite(ctx context.Context, date time.Time) (*models.MarketComposite, bool) {
	return c.get(ctx, CompositeKey(date))
}

func (c *CompositeCache) SetComposite(ctx context.Context, date time.Time, composite models.MarketComposite) error {
	return c.set(ctx, composite, CompositeKey(date))
}

// Clear removes every cached composite.
func (c *CompositeCache) Clear(ctx context.Context) (int, error) {
	return c.clear(ctx, compositePrefix+"*")
}

// GetStats returns current cache statistics.
func (c *CompositeCache) GetStats() Stats { return c.stats.snapshot() }

// RunReportCache keeps the most recent run report and the report of each
// date for the admin API.
type RunReportCache struct {
	jsonCache[models.RunReport]
}

// NewRunReportCache creates a run report cache with the given TTL.
func NewRunReportCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RunReportCache {
	return &RunReportCache{newJSONCache[models.RunReport](client, ttl, logger)}
}

// RunReportKey is the Redis key of the report for date.
func RunReportKey(date time.Time) string {
	return runReportPrefix + models.DateOnly(date).Format(models.DateLayout)
}

// SetRunReport stores report as both the latest and its date's report.
func (c *RunReportCache) SetRunReport(ctx context.Context, report models.RunReport) error {
	return c.set(ctx, report, latestRunKey, RunReportKey(report.Date))
}

func (c *RunReportCache) LatestRunReport(ctx context.Context) (*models.RunReport, bool) {
	return c.get(ctx, latestRunKey)
}

func (c *RunReportCache) RunReportFor(ctx context.Context, date time.Time) (*models.RunReport, bool) {
	return c.get(ctx, RunReportKey(date))
}

// GetStats returns current cache statistics.
func (c *RunReportCache) GetStats() Stats { return c.stats.snapshot() }

// LogStats logs the statistics of both caches.
func LogStats(logger *logrus.Logger, composite *CompositeCache, reports *RunReportCache) {
	for name, s := range map[string]Stats{"composite": composite.GetStats(), "run_report": reports.GetStats()} {
		logger.WithFields(logrus.Fields{
			"cache":    name,
			"hits":     s.Hits,
			"misses":   s.Misses,
			"sets":     s.Sets,
			"hit_rate": fmt.Sprintf("%.2f%%", s.HitRate()),
		}).Info("Cache stats")
	}
}
