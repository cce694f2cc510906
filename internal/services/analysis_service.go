package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/irfndi/sepa-screener/internal/config"
	"github.com/irfndi/sepa-screener/internal/database"
	"github.com/irfndi/sepa-screener/internal/logging"
	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/screener"
	"github.com/irfndi/sepa-screener/internal/strength"
	"github.com/irfndi/sepa-screener/internal/telemetry"
	"github.com/irfndi/sepa-screener/internal/utils"
)

// PriceStore reads daily bars.
type PriceStore interface {
	UniverseForDate(ctx context.Context, date time.Time) ([]string, error)
	GetSeries(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error)
}

// FundamentalsStore reads earnings and reference data.
type FundamentalsStore interface {
	GetFundamentals(ctx context.Context, symbol string) (models.Fundamentals, error)
	GetDetails(ctx context.Context, symbol string) (*models.TickerDetails, error)
}

// ScorecardStore persists scorecards.
type ScorecardStore interface {
	Upsert(ctx context.Context, card models.Scorecard) error
	Previous(ctx context.Context, symbol string, date time.Time) (*models.Scorecard, error)
}

type NotificationStore interface {
	UpsertMany(ctx context.Context, notifications []models.Notification) error
}

type WatchlistStore interface {
	WatchedSymbols(ctx context.Context) (map[string]bool, error)
}

// CompositeStore caches the market composite per date.
type CompositeStore interface {
	GetComposite(ctx context.Context, date time.Time) (*models.MarketComposite, bool)
	SetComposite(ctx context.Context, date time.Time, composite models.MarketComposite) error
}

// RunReportStore keeps the latest run reports.
type RunReportStore interface {
	SetRunReport(ctx context.Context, report models.RunReport) error
}

// AnalysisStores groups the persistence the service reads and writes.
type AnalysisStores struct {
	Prices        PriceStore
	Fundamentals  FundamentalsStore
	Scorecards    ScorecardStore
	Notifications NotificationStore
	Watchlist     WatchlistStore
}

// StoresFromRepositories adapts the Postgres repositories.
func StoresFromRepositories(repos *database.Repositories) AnalysisStores {
	return AnalysisStores{
		Prices:        repos.Prices,
		Fundamentals:  repos.Fundamentals,
		Scorecards:    repos.Scorecards,
		Notifications: repos.Notifications,
		Watchlist:     repos.Watchlist,
	}
}

// AnalysisService runs the daily screen over every symbol with a bar on the
// run date.
type AnalysisService struct {
	stores     AnalysisStores
	composites CompositeStore
	reports    RunReportStore
	notifier   Notifier
	analyzer   *screener.Analyzer
	recovery   *ErrorRecoveryManager
	optimizer  *ResourceOptimizer
	tracer     *telemetry.AnalysisTracer
	events     logging.Logger
	logger     *logrus.Logger
	analysis   config.AnalysisConfig
	notify     config.NotificationsConfig
	now        func() time.Time
}

// NewAnalysisService wires the run. composites, reports and notifier may be
// nil; the run then skips caching or delivery.
func NewAnalysisService(
	cfg *config.Config,
	stores AnalysisStores,
	composites CompositeStore,
	reports RunReportStore,
	notifier Notifier,
	recovery *ErrorRecoveryManager,
	events logging.Logger,
	logger *logrus.Logger,
) *AnalysisService {
	if backoff, err := time.ParseDuration(cfg.Analysis.RetryBackoff); err == nil && cfg.Analysis.MaxRetries >= 0 {
		recovery.RegisterRetryPolicy(PolicyDatabase, DatabasePolicy(cfg.Analysis.MaxRetries, backoff))
	}
	return &AnalysisService{
		stores:     stores,
		composites: composites,
		reports:    reports,
		notifier:   notifier,
		analyzer:   screener.NewAnalyzer(cfg.Analysis.Engine),
		recovery:   recovery,
		optimizer:  NewResourceOptimizer(),
		tracer:     telemetry.NewAnalysisTracer(),
		events:     events,
		logger:     logger,
		analysis:   cfg.Analysis,
		notify:     cfg.Notifications,
		now:        time.Now,
	}
}

// symbolWork carries one symbol through the load and evaluate phases.
type symbolWork struct {
	input    screener.SymbolInput
	previous *models.Scorecard
	card     *models.Scorecard
	outcome  models.SymbolOutcome
	loaded   bool
}

// Run screens date. It fails with utils.ErrNoPriceData when no symbol has a
// bar on date. Per-symbol problems are recorded in the report and never
// abort the run. On cancellation the partial report is returned together
// with the context error; rows already written stay written.
func (s *AnalysisService) Run(ctx context.Context, date time.Time) (*models.RunReport, error) {
	date = models.DateOnly(date)
	day := date.Format(models.DateLayout)
	started := s.now()

	if d, err := time.ParseDuration(s.analysis.Timeout); err == nil && d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	symbols, err := withRetry(ctx, s.recovery, PolicyDatabase, func() ([]string, error) {
		return s.stores.Prices.UniverseForDate(ctx, date)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load universe for %s: %w", day, err)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%s: %w", day, utils.ErrNoPriceData)
	}

	ctx, span := s.tracer.TraceRun(ctx, day, len(symbols))
	defer span.End()

	report := models.RunReport{
		RunID:     uuid.New(),
		Date:      date,
		StartedAt: started,
		Universe:  len(symbols),
	}
	report.Composite = s.marketComposite(ctx, date)

	workers := s.optimizer.WorkerCount(ctx, s.analysis.Workers)
	s.logger.WithFields(logrus.Fields{
		"run_id":   report.RunID.String(),
		"date":     day,
		"universe": len(symbols),
		"workers":  workers,
	}).Info("Starting analysis run")

	work := s.loadAll(ctx, symbols, date, workers)

	returns := make(map[string]*float64, len(work))
	sectorOf := make(map[string]string, len(work))
	for _, w := range work {
		if !w.loaded || !s.analyzer.Scorable(w.input.Series, date) {
			continue
		}
		returns[w.outcome.Symbol] = screener.Return90d(w.input.Series, date)
		if w.input.Details != nil && w.input.Details.Sector != "" {
			sectorOf[w.outcome.Symbol] = w.input.Details.Sector
		}
	}
	run := screener.NewRunContext(date, report.Composite, returns, sectorOf)

	s.evaluateAll(ctx, work, run, workers)

	report.Cancelled = ctx.Err() != nil
	if !report.Cancelled && s.notify.Enabled {
		report.Notifications = s.notifyChanges(ctx, date, work)
	}

	report.Outcomes = make([]models.SymbolOutcome, len(work))
	for i, w := range work {
		report.Outcomes[i] = w.outcome
	}
	report.Tally()
	report.FinishedAt = s.now()
	s.finish(ctx, report)
	s.tracer.RecordRunReport(span, report)

	if report.Cancelled {
		return &report, fmt.Errorf("analysis run for %s cancelled: %w", day, ctx.Err())
	}
	return &report, nil
}

// marketComposite returns the cached composite of date or computes it from
// the benchmark series. A composite with no benchmark data is not cached so
// a later backfill is picked up.
func (s *AnalysisService) marketComposite(ctx context.Context, date time.Time) models.MarketComposite {
	if s.composites != nil {
		if cached, ok := s.composites.GetComposite(ctx, date); ok {
			return *cached
		}
	}

	weights := s.analysis.BenchmarkWeights()
	if len(weights) == 0 {
		weights = strength.DefaultBenchmarks
	}
	from := s.historyStart(date)
	series := make(map[string]models.PriceSeries, len(weights))
	for _, bw := range weights {
		bars, err := withRetry(ctx, s.recovery, PolicyDatabase, func() (models.PriceSeries, error) {
			return s.stores.Prices.GetSeries(ctx, bw.Symbol, from, date)
		})
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"benchmark": bw.Symbol,
				"error":     err.Error(),
			}).Warn("Benchmark series unavailable, excluding from composite")
			continue
		}
		if len(bars.Bars) > 0 {
			series[bw.Symbol] = bars
		}
	}

	composite := strength.ComputeComposite(date, weights, series)
	if s.composites != nil && composite.WeightUsed > 0 {
		if err := s.composites.SetComposite(ctx, date, composite); err != nil {
			s.logger.WithError(err).Warn("Failed to cache market composite")
		}
	}
	return composite
}

func (s *AnalysisService) historyStart(date time.Time) time.Time {
	days := s.analysis.HistoryDays
	if days <= 0 {
		days = 400
	}
	return date.AddDate(0, 0, -days)
}

// loadAll fetches every symbol's inputs with at most workers loads in
// flight. Dispatch stops once ctx is done.
func (s *AnalysisService) loadAll(ctx context.Context, symbols []string, date time.Time, workers int) []symbolWork {
	work := make([]symbolWork, len(symbols))
	from := s.historyStart(date)

	var g errgroup.Group
	g.SetLimit(workers)
	for i, symbol := range symbols {
		if ctx.Err() != nil {
			work[i] = symbolWork{outcome: cancelled(symbol)}
			continue
		}
		i, symbol := i, symbol
		g.Go(func() error {
			work[i] = s.load(ctx, symbol, from, date)
			return nil
		})
	}
	_ = g.Wait()
	return work
}

func (s *AnalysisService) load(ctx context.Context, symbol string, from, to time.Time) symbolWork {
	w := symbolWork{outcome: models.SymbolOutcome{Symbol: symbol}}

	series, err := withRetry(ctx, s.recovery, PolicyDatabase, func() (models.PriceSeries, error) {
		return s.stores.Prices.GetSeries(ctx, symbol, from, to)
	})
	if err != nil {
		return s.loadFailed(ctx, w, err)
	}
	series.Symbol = symbol
	w.input.Series = series

	w.input.Fundamentals, err = withRetry(ctx, s.recovery, PolicyDatabase, func() (models.Fundamentals, error) {
		return s.stores.Fundamentals.GetFundamentals(ctx, symbol)
	})
	if err != nil {
		return s.loadFailed(ctx, w, err)
	}

	w.input.Details, err = withRetry(ctx, s.recovery, PolicyDatabase, func() (*models.TickerDetails, error) {
		return s.stores.Fundamentals.GetDetails(ctx, symbol)
	})
	if err != nil {
		return s.loadFailed(ctx, w, err)
	}

	w.previous, err = withRetry(ctx, s.recovery, PolicyDatabase, func() (*models.Scorecard, error) {
		return s.stores.Scorecards.Previous(ctx, symbol, to)
	})
	if err != nil {
		return s.loadFailed(ctx, w, err)
	}
	if w.previous != nil {
		stage := w.previous.Template.Stage
		w.input.PreviousStage = &stage
	}

	w.loaded = true
	return w
}

func (s *AnalysisService) loadFailed(ctx context.Context, w symbolWork, err error) symbolWork {
	if ctx.Err() != nil {
		w.outcome = cancelled(w.outcome.Symbol)
		return w
	}
	s.logger.WithFields(logrus.Fields{
		"symbol": w.outcome.Symbol,
		"error":  err.Error(),
	}).Warn("Failed to load symbol inputs")
	w.outcome.Status = models.OutcomeFailed
	w.outcome.SkipReason = string(utils.SkipLoadFailed)
	w.outcome.Error = err.Error()
	return w
}

// evaluateAll scores and persists loaded symbols. The run context is shared
// read-only across workers.
func (s *AnalysisService) evaluateAll(ctx context.Context, work []symbolWork, run screener.RunContext, workers int) {
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range work {
		if !work[i].loaded {
			continue
		}
		if ctx.Err() != nil {
			work[i].outcome = cancelled(work[i].outcome.Symbol)
			continue
		}
		i := i
		g.Go(func() error {
			s.evaluate(ctx, &work[i], run)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *AnalysisService) evaluate(ctx context.Context, w *symbolWork, run screener.RunContext) {
	symbol := w.outcome.Symbol
	ctx, span := s.tracer.TraceSymbol(ctx, symbol)
	defer span.End()

	card, err := s.analyzer.Evaluate(w.input, run)
	if err != nil {
		reason := utils.SkipReasonFor(err)
		w.outcome.SkipReason = string(reason)
		w.outcome.Error = err.Error()
		if reason == utils.SkipLoadFailed {
			w.outcome.Status = models.OutcomeFailed
			telemetry.RecordError(span, err)
		} else {
			w.outcome.Status = models.OutcomeSkipped
		}
		s.logger.WithFields(logrus.Fields{
			"symbol": symbol,
			"reason": reason,
		}).Debug("Symbol not scored")
		return
	}
	s.tracer.RecordScorecard(span, card)

	err = s.recovery.ExecuteWithRetry(ctx, PolicyDatabase, func() error {
		return s.stores.Scorecards.Upsert(ctx, card)
	})
	if err != nil {
		if ctx.Err() != nil {
			w.outcome = cancelled(symbol)
			return
		}
		telemetry.RecordError(span, err)
		s.logger.WithFields(logrus.Fields{
			"symbol": symbol,
			"error":  err.Error(),
		}).Error("Failed to store scorecard")
		w.outcome.Status = models.OutcomeFailed
		w.outcome.Error = err.Error()
		return
	}

	w.card = &card
	w.outcome.Status = models.OutcomeOK
	if w.input.Fundamentals.Empty() {
		w.outcome.SkipReason = string(utils.SkipNoFundamentals)
	}
}

// notifyChanges stores and delivers the day's changes for watch-listed
// symbols. Failures are logged; they never fail the run.
func (s *AnalysisService) notifyChanges(ctx context.Context, date time.Time, work []symbolWork) int {
	var changes []models.Notification
	for _, w := range work {
		if w.card == nil {
			continue
		}
		changes = append(changes, screener.DetectChanges(w.previous, *w.card, s.notify.Thresholds)...)
	}
	if len(changes) == 0 {
		return 0
	}

	watched, err := withRetry(ctx, s.recovery, PolicyDatabase, func() (map[string]bool, error) {
		return s.stores.Watchlist.WatchedSymbols(ctx)
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to load watch list, skipping notifications")
		return 0
	}
	notes := screener.WatchlistFilter(changes, watched)
	if len(notes) == 0 {
		return 0
	}
	screener.Stamp(notes, s.now().UTC())

	err = s.recovery.ExecuteWithRetry(ctx, PolicyDatabase, func() error {
		return s.stores.Notifications.UpsertMany(ctx, notes)
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to store notifications")
		return 0
	}

	if s.notifier != nil {
		nctx, span := s.tracer.TraceNotification(ctx, "watchlist_digest", "telegram")
		sent, err := s.notifier.Notify(nctx, date, notes)
		s.tracer.RecordNotificationResult(span, sent, err)
		span.End()
		if err != nil {
			s.logger.WithError(err).Warn("Notification delivery incomplete")
		}
	}
	return len(notes)
}

// finish logs the report and caches it. Caching outlives a cancelled run.
func (s *AnalysisService) finish(ctx context.Context, report models.RunReport) {
	ctx = context.WithoutCancel(ctx)
	day := report.Date.Format(models.DateLayout)
	duration := report.FinishedAt.Sub(report.StartedAt)

	s.logger.WithFields(logrus.Fields{
		"run_id":        report.RunID.String(),
		"date":          day,
		"universe":      report.Universe,
		"processed":     report.Processed,
		"skipped":       report.Skipped,
		"failed":        report.Failed,
		"notifications": report.Notifications,
		"cancelled":     report.Cancelled,
		"market_return": report.Composite.Return90d,
		"duration_ms":   duration.Milliseconds(),
	}).Info("Analysis run finished")

	if s.events != nil {
		s.events.LogRunSummary(day, map[string]int{
			"universe":      report.Universe,
			"processed":     report.Processed,
			"skipped":       report.Skipped,
			"failed":        report.Failed,
			"notifications": report.Notifications,
		}, duration.Milliseconds())
	}

	res := s.optimizer.Snapshot(ctx)
	s.logger.WithFields(logrus.Fields{
		"cpu_percent":    res.CPUPercent,
		"memory_percent": res.MemoryPercent,
		"goroutines":     res.Goroutines,
	}).Debug("Host load after run")

	if s.reports != nil {
		if err := s.reports.SetRunReport(ctx, report); err != nil {
			s.logger.WithError(err).Warn("Failed to cache run report")
		}
	}
}

func cancelled(symbol string) models.SymbolOutcome {
	return models.SymbolOutcome{
		Symbol:     symbol,
		Status:     models.OutcomeSkipped,
		SkipReason: string(utils.SkipCancelled),
	}
}

// withRetry runs fn under the named retry policy and returns its value.
func withRetry[T any](ctx context.Context, erm *ErrorRecoveryManager, policy string, fn func() (T, error)) (T, error) {
	var out T
	err := erm.ExecuteWithRetry(ctx, policy, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// IsNoPriceData reports whether err means the run date has no bars at all.
func IsNoPriceData(err error) bool {
	return errors.Is(err, utils.ErrNoPriceData)
}
