package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/sepa-screener/internal/config"
	"github.com/irfndi/sepa-screener/internal/logging"
	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/screener"
	"github.com/irfndi/sepa-screener/internal/utils"
)

var (
	seriesStart = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	runNow      = time.Date(2023, 10, 28, 22, 30, 0, 0, time.UTC)
)

// trendSeries ends on the run date and climbs slope points a day.
func trendSeries(symbol string, n int, slope float64) models.PriceSeries {
	bars := make([]models.PriceBar, n)
	first := seriesStart.AddDate(0, 0, 300-n)
	for i := range bars {
		c := 20 + slope*float64(i)
		bars[i] = models.PriceBar{
			Date:   first.AddDate(0, 0, i),
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: 1000,
		}
	}
	return models.PriceSeries{Symbol: symbol, Bars: bars}
}

var runDate = seriesStart.AddDate(0, 0, 299)

type fakePrices struct {
	mu          sync.Mutex
	universe    []string
	universeErr error
	series      map[string]models.PriceSeries
	seriesErr   map[string]error
	calls       map[string]int
}

func (f *fakePrices) UniverseForDate(context.Context, time.Time) ([]string, error) {
	return f.universe, f.universeErr
}

func (f *fakePrices) GetSeries(_ context.Context, symbol string, _, _ time.Time) (models.PriceSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	if err := f.seriesErr[symbol]; err != nil {
		return models.PriceSeries{}, err
	}
	return f.series[symbol], nil
}

func (f *fakePrices) callsFor(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

type fakeFundamentals struct {
	details map[string]*models.TickerDetails
}

func (f *fakeFundamentals) GetFundamentals(context.Context, string) (models.Fundamentals, error) {
	return models.Fundamentals{}, nil
}

func (f *fakeFundamentals) GetDetails(_ context.Context, symbol string) (*models.TickerDetails, error) {
	return f.details[symbol], nil
}

type fakeScorecards struct {
	mu        sync.Mutex
	stored    map[string]models.Scorecard
	previous  map[string]*models.Scorecard
	upsertErr map[string]error
	onUpsert  func(symbol string)
}

func (f *fakeScorecards) Upsert(_ context.Context, card models.Scorecard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.upsertErr[card.Symbol]; err != nil {
		return err
	}
	f.stored[card.Symbol] = card
	if f.onUpsert != nil {
		f.onUpsert(card.Symbol)
	}
	return nil
}

func (f *fakeScorecards) Previous(_ context.Context, symbol string, _ time.Time) (*models.Scorecard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.previous[symbol], nil
}

type fakeNotificationStore struct {
	stored []models.Notification
}

func (f *fakeNotificationStore) UpsertMany(_ context.Context, notes []models.Notification) error {
	f.stored = append(f.stored, notes...)
	return nil
}

type fakeWatchlist struct {
	watched map[string]bool
}

func (f *fakeWatchlist) WatchedSymbols(context.Context) (map[string]bool, error) {
	return f.watched, nil
}

type fakeComposites struct {
	cached map[string]models.MarketComposite
	sets   int
}

func (f *fakeComposites) GetComposite(_ context.Context, date time.Time) (*models.MarketComposite, bool) {
	c, ok := f.cached[date.Format(models.DateLayout)]
	if !ok {
		return nil, false
	}
	return &c, true
}

func (f *fakeComposites) SetComposite(_ context.Context, date time.Time, c models.MarketComposite) error {
	f.cached[date.Format(models.DateLayout)] = c
	f.sets++
	return nil
}

type fakeReports struct {
	last *models.RunReport
}

func (f *fakeReports) SetRunReport(_ context.Context, report models.RunReport) error {
	f.last = &report
	return nil
}

type fakeNotifier struct {
	calls int
	notes []models.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, _ time.Time, notes []models.Notification) (int, error) {
	f.calls++
	f.notes = notes
	return 1, nil
}

type analysisFixture struct {
	cfg          *config.Config
	prices       *fakePrices
	fundamentals *fakeFundamentals
	scorecards   *fakeScorecards
	notes        *fakeNotificationStore
	watchlist    *fakeWatchlist
	composites   *fakeComposites
	reports      *fakeReports
	notifier     *fakeNotifier
	events       bytes.Buffer
}

func newAnalysisFixture() *analysisFixture {
	return &analysisFixture{
		cfg: &config.Config{
			Analysis: config.AnalysisConfig{
				Workers:      4,
				HistoryDays:  400,
				MaxRetries:   2,
				RetryBackoff: "1ms",
				Benchmarks:   []config.BenchmarkConfig{{Symbol: "SPY", Weight: 1}},
				Engine:       screener.DefaultConfig(),
			},
			Notifications: config.NotificationsConfig{
				Enabled:    true,
				Thresholds: screener.DefaultThresholds(),
			},
		},
		prices: &fakePrices{
			universe: []string{"AAPL", "NEWCO", "NVDA"},
			series: map[string]models.PriceSeries{
				"SPY":   trendSeries("SPY", 300, 0.1),
				"AAPL":  trendSeries("AAPL", 300, 0.25),
				"NVDA":  trendSeries("NVDA", 300, 0.5),
				"NEWCO": trendSeries("NEWCO", 20, 0.25),
			},
			seriesErr: map[string]error{},
			calls:     map[string]int{},
		},
		fundamentals: &fakeFundamentals{details: map[string]*models.TickerDetails{
			"AAPL": {Symbol: "AAPL", Sector: "Technology", MarketCap: utils.Float(3e12), Active: true},
			"NVDA": {Symbol: "NVDA", Sector: "Technology", MarketCap: utils.Float(1e12), Active: true},
		}},
		scorecards: &fakeScorecards{
			stored:    map[string]models.Scorecard{},
			previous:  map[string]*models.Scorecard{},
			upsertErr: map[string]error{},
		},
		notes:      &fakeNotificationStore{},
		watchlist:  &fakeWatchlist{watched: map[string]bool{"AAPL": true}},
		composites: &fakeComposites{cached: map[string]models.MarketComposite{}},
		reports:    &fakeReports{},
		notifier:   &fakeNotifier{},
	}
}

func (f *analysisFixture) service() *AnalysisService {
	svc := NewAnalysisService(
		f.cfg,
		AnalysisStores{
			Prices:        f.prices,
			Fundamentals:  f.fundamentals,
			Scorecards:    f.scorecards,
			Notifications: f.notes,
			Watchlist:     f.watchlist,
		},
		f.composites,
		f.reports,
		f.notifier,
		noWaitRecovery(),
		logging.NewStandardLoggerWithWriter(&f.events, "info", "test"),
		quietLogger(),
	)
	svc.now = func() time.Time { return runNow }
	return svc
}

func outcomesBySymbol(report *models.RunReport) map[string]models.SymbolOutcome {
	out := make(map[string]models.SymbolOutcome, len(report.Outcomes))
	for _, o := range report.Outcomes {
		out[o.Symbol] = o
	}
	return out
}

func TestAnalysisService_Run_ScoresUniverse(t *testing.T) {
	f := newAnalysisFixture()

	report, err := f.service().Run(context.Background(), runDate)
	require.NoError(t, err)

	assert.Equal(t, runDate, report.Date)
	assert.Equal(t, 3, report.Universe)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	assert.False(t, report.Cancelled)
	assert.Equal(t, runNow, report.StartedAt)

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, []string{"AAPL", "NEWCO", "NVDA"},
		[]string{report.Outcomes[0].Symbol, report.Outcomes[1].Symbol, report.Outcomes[2].Symbol})
	outcomes := outcomesBySymbol(report)
	assert.Equal(t, models.OutcomeOK, outcomes["AAPL"].Status)
	assert.Equal(t, string(utils.SkipNoFundamentals), outcomes["AAPL"].SkipReason)
	assert.Equal(t, models.OutcomeSkipped, outcomes["NEWCO"].Status)
	assert.Equal(t, string(utils.SkipInsufficientHistory), outcomes["NEWCO"].SkipReason)

	aapl, ok := f.scorecards.stored["AAPL"]
	require.True(t, ok)
	nvda, ok := f.scorecards.stored["NVDA"]
	require.True(t, ok)
	assert.NotContains(t, f.scorecards.stored, "NEWCO")

	require.NotNil(t, aapl.RSRating)
	require.NotNil(t, nvda.RSRating)
	assert.Greater(t, *nvda.RSRating, *aapl.RSRating)
	assert.Equal(t, "Technology", aapl.Sector)
	assert.NotNil(t, aapl.SectorRS)

	assert.Equal(t, 1.0, report.Composite.WeightUsed)
	assert.Greater(t, report.Composite.Return90d, 0.0)
	assert.Equal(t, report.Composite.Return90d, aapl.MarketReturn90d)
	assert.Equal(t, 1, f.composites.sets)

	require.NotNil(t, f.reports.last)
	assert.Equal(t, report.RunID, f.reports.last.RunID)
	assert.Contains(t, f.events.String(), `"event":"run_summary"`)
}

func TestAnalysisService_Run_RanksOnlyScorableSymbols(t *testing.T) {
	f := newAnalysisFixture()
	// 46 bars every other day: a full 90-day return but too few bars to score.
	sparse := models.PriceSeries{Symbol: "SPARSE", Bars: make([]models.PriceBar, 46)}
	for i := range sparse.Bars {
		c := 20 + 5*float64(i)
		sparse.Bars[i] = models.PriceBar{
			Date:  runDate.AddDate(0, 0, -2*(45-i)),
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: 1000,
		}
	}
	f.prices.universe = []string{"AAPL", "NVDA", "SPARSE"}
	f.prices.series["SPARSE"] = sparse

	report, err := f.service().Run(context.Background(), runDate)
	require.NoError(t, err)

	outcomes := outcomesBySymbol(report)
	assert.Equal(t, string(utils.SkipInsufficientHistory), outcomes["SPARSE"].SkipReason)
	require.NotNil(t, screener.Return90d(sparse, runDate))

	nvda := f.scorecards.stored["NVDA"]
	require.NotNil(t, nvda.RSRating)
	assert.Equal(t, 100.0, *nvda.RSRating)
	assert.Equal(t, 0.0, *f.scorecards.stored["AAPL"].RSRating)
}

func TestAnalysisService_Run_UsesCachedComposite(t *testing.T) {
	f := newAnalysisFixture()
	cached := models.MarketComposite{Date: runDate, Return90d: 12.5, WeightUsed: 1}
	f.composites.cached[runDate.Format(models.DateLayout)] = cached

	report, err := f.service().Run(context.Background(), runDate)
	require.NoError(t, err)

	assert.Equal(t, cached, report.Composite)
	assert.Equal(t, 0, f.prices.callsFor("SPY"))
	assert.Equal(t, 0, f.composites.sets)
	assert.Equal(t, 12.5, f.scorecards.stored["AAPL"].MarketReturn90d)
}

func TestAnalysisService_Run_MissingBenchmarksAreNotCached(t *testing.T) {
	f := newAnalysisFixture()
	delete(f.prices.series, "SPY")

	report, err := f.service().Run(context.Background(), runDate)
	require.NoError(t, err)

	assert.Equal(t, 0.0, report.Composite.WeightUsed)
	assert.Equal(t, 0.0, report.Composite.Return90d)
	assert.Equal(t, 0, f.composites.sets)
	assert.Equal(t, 2, report.Processed)
}

func TestAnalysisService_Run_EmptyUniverse(t *testing.T) {
	f := newAnalysisFixture()
	f.prices.universe = nil

	report, err := f.service().Run(context.Background(), runDate)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, utils.ErrNoPriceData)
	assert.True(t, IsNoPriceData(err))
	assert.Nil(t, f.reports.last)
}

func TestAnalysisService_Run_UniverseError(t *testing.T) {
	f := newAnalysisFixture()
	f.prices.universeErr = errors.New("connection refused")

	report, err := f.service().Run(context.Background(), runDate)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "failed to load universe")
	assert.False(t, IsNoPriceData(err))
}

func TestAnalysisService_Run_LoadFailureIsPerSymbol(t *testing.T) {
	f := newAnalysisFixture()
	f.prices.seriesErr["NVDA"] = errors.New("connection reset")

	report, err := f.service().Run(context.Background(), runDate)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Failed)
	nvda := outcomesBySymbol(report)["NVDA"]
	assert.Equal(t, models.OutcomeFailed, nvda.Status)
	assert.Equal(t, string(utils.SkipLoadFailed), nvda.SkipReason)
	assert.Contains(t, nvda.Error, "connection reset")
	// One attempt plus two retries.
	assert.Equal(t, 3, f.prices.callsFor("NVDA"))
	assert.Contains(t, f.scorecards.stored, "AAPL")
}

func TestAnalysisService_Run_UpsertFailure(t *testing.T) {
	f := newAnalysisFixture()
	f.scorecards.upsertErr["AAPL"] = errors.New("disk full")

	report, err := f.service().Run(context.Background(), runDate)
	require.NoError(t, err)

	aapl := outcomesBySymbol(report)["AAPL"]
	assert.Equal(t, models.OutcomeFailed, aapl.Status)
	assert.Contains(t, aapl.Error, "disk full")
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)
}

func TestAnalysisService_Run_NotifiesWatchedChanges(t *testing.T) {
	f := newAnalysisFixture()
	for _, symbol := range []string{"AAPL", "NVDA"} {
		f.scorecards.previous[symbol] = &models.Scorecard{
			Symbol:   symbol,
			Date:     runDate.AddDate(0, 0, -1),
			Template: models.StageClassification{Stage: models.StageDeclining},
			Buy:      models.BuySignal{Signal: models.SignalPass},
			Holder:   models.HolderSignal{Signal: models.SignalSell},
		}
	}

	report, err := f.service().Run(context.Background(), runDate)
	require.NoError(t, err)

	require.NotEmpty(t, f.notes.stored)
	assert.Equal(t, len(f.notes.stored), report.Notifications)

	var stage *models.Notification
	for i, n := range f.notes.stored {
		assert.Equal(t, "AAPL", n.Symbol)
		assert.Equal(t, runNow, n.CreatedAt)
		assert.Equal(t, runDate, n.Date)
		if n.Metric == screener.MetricStage {
			stage = &f.notes.stored[i]
		}
	}
	require.NotNil(t, stage)
	assert.Equal(t, "4", stage.OldValue)
	assert.Equal(t, models.NotificationID("AAPL", runDate, models.NotifyMetricChange, screener.MetricStage), stage.ID)

	assert.Equal(t, 1, f.notifier.calls)
	assert.Equal(t, f.notes.stored, f.notifier.notes)
}

func TestAnalysisService_Run_NotificationsDisabled(t *testing.T) {
	f := newAnalysisFixture()
	f.cfg.Notifications.Enabled = false
	f.scorecards.previous["AAPL"] = &models.Scorecard{
		Symbol:   "AAPL",
		Template: models.StageClassification{Stage: models.StageDeclining},
	}

	report, err := f.service().Run(context.Background(), runDate)
	require.NoError(t, err)

	assert.Zero(t, report.Notifications)
	assert.Empty(t, f.notes.stored)
	assert.Zero(t, f.notifier.calls)
}

func TestAnalysisService_Run_CancellationKeepsCommittedRows(t *testing.T) {
	f := newAnalysisFixture()
	f.cfg.Analysis.Workers = 1
	f.prices.universe = []string{"AAPL", "NVDA"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.scorecards.onUpsert = func(symbol string) {
		if symbol == "AAPL" {
			cancel()
		}
	}

	report, err := f.service().Run(ctx, runDate)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)

	assert.True(t, report.Cancelled)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	nvda := outcomesBySymbol(report)["NVDA"]
	assert.Equal(t, models.OutcomeSkipped, nvda.Status)
	assert.Equal(t, string(utils.SkipCancelled), nvda.SkipReason)

	assert.Contains(t, f.scorecards.stored, "AAPL")
	assert.NotContains(t, f.scorecards.stored, "NVDA")
	assert.Zero(t, f.notifier.calls)

	require.NotNil(t, f.reports.last)
	assert.True(t, f.reports.last.Cancelled)
}

func TestAnalysisService_Run_WithoutOptionalCollaborators(t *testing.T) {
	f := newAnalysisFixture()
	f.scorecards.previous["AAPL"] = &models.Scorecard{
		Symbol:   "AAPL",
		Template: models.StageClassification{Stage: models.StageDeclining},
	}
	svc := NewAnalysisService(
		f.cfg,
		AnalysisStores{
			Prices:        f.prices,
			Fundamentals:  f.fundamentals,
			Scorecards:    f.scorecards,
			Notifications: f.notes,
			Watchlist:     f.watchlist,
		},
		nil, nil, nil,
		noWaitRecovery(),
		nil,
		quietLogger(),
	)

	report, err := svc.Run(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.NotEmpty(t, f.notes.stored)
}
