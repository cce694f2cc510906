package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/irfndi/sepa-screener/internal/models"
)

// ScorecardRepository persists one analysis row per (symbol, date). The
// full scorecard is stored as JSONB next to the columns used for filtering.
type ScorecardRepository struct {
	pool DatabasePool
}

func NewScorecardRepository(pool DatabasePool) *ScorecardRepository {
	return &ScorecardRepository{pool: pool}
}

// ScorecardFilter narrows List. Zero values mean no filter; Limit defaults
// to 50 and is capped at 500.
type ScorecardFilter struct {
	Date   time.Time
	Signal models.BuySignalType
	Limit  int
}

const scorecardColumns = `payload`

// Upsert writes card, overwriting every column of an existing row.
func (r *ScorecardRepository) Upsert(ctx context.Context, card models.Scorecard) error {
	payload, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("failed to encode scorecard for %s: %w", card.Symbol, err)
	}

	query := `
		INSERT INTO scorecards (
			symbol, date, close, stage, passes_minervini, rs_rating, sector_rs,
			market_return_90d, vcp_detected, vcp_score, buy_signal, holder_signal,
			sector, market_cap_tier, payload, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, CURRENT_TIMESTAMP)
		ON CONFLICT (symbol, date) DO UPDATE SET
			close = EXCLUDED.close,
			stage = EXCLUDED.stage,
			passes_minervini = EXCLUDED.passes_minervini,
			rs_rating = EXCLUDED.rs_rating,
			sector_rs = EXCLUDED.sector_rs,
			market_return_90d = EXCLUDED.market_return_90d,
			vcp_detected = EXCLUDED.vcp_detected,
			vcp_score = EXCLUDED.vcp_score,
			buy_signal = EXCLUDED.buy_signal,
			holder_signal = EXCLUDED.holder_signal,
			sector = EXCLUDED.sector,
			market_cap_tier = EXCLUDED.market_cap_tier,
			payload = EXCLUDED.payload,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = r.pool.Exec(ctx, query,
		card.Symbol,
		models.DateOnly(card.Date),
		card.Close,
		int(card.Template.Stage),
		card.Template.PassesMinervini,
		card.RSRating,
		card.SectorRS,
		card.MarketReturn90d,
		card.VCP.Detected,
		card.VCP.Score,
		string(card.Buy.Signal),
		string(card.Holder.Signal),
		card.Sector,
		string(card.MarketCapTier),
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert scorecard for %s: %w", card.Symbol, err)
	}
	return nil
}

// Get returns the row of symbol on date, or ErrNotFound.
func (r *ScorecardRepository) Get(ctx context.Context, symbol string, date time.Time) (*models.Scorecard, error) {
	query := `SELECT ` + scorecardColumns + ` FROM scorecards WHERE symbol = $1 AND date = $2`
	return r.one(ctx, query, symbol, models.DateOnly(date))
}

// Latest returns the most recent row of symbol, or ErrNotFound.
func (r *ScorecardRepository) Latest(ctx context.Context, symbol string) (*models.Scorecard, error) {
	query := `SELECT ` + scorecardColumns + ` FROM scorecards WHERE symbol = $1 ORDER BY date DESC LIMIT 1`
	return r.one(ctx, query, symbol)
}

// Previous returns the last row of symbol strictly before date, or nil when
// the symbol was never scored before.
func (r *ScorecardRepository) Previous(ctx context.Context, symbol string, date time.Time) (*models.Scorecard, error) {
	query := `SELECT ` + scorecardColumns + ` FROM scorecards WHERE symbol = $1 AND date < $2 ORDER BY date DESC LIMIT 1`
	card, err := r.one(ctx, query, symbol, models.DateOnly(date))
	if err == ErrNotFound {
		return nil, nil
	}
	return card, err
}

// LatestDate returns the most recent analysis date, or ErrNotFound.
func (r *ScorecardRepository) LatestDate(ctx context.Context) (time.Time, error) {
	var date *time.Time
	if err := r.pool.QueryRow(ctx, `SELECT MAX(date) FROM scorecards`).Scan(&date); err != nil {
		return time.Time{}, fmt.Errorf("failed to load latest scorecard date: %w", err)
	}
	if date == nil {
		return time.Time{}, ErrNotFound
	}
	return models.DateOnly(*date), nil
}

// List returns the rows of one date ordered by RS rating, strongest first.
func (r *ScorecardRepository) List(ctx context.Context, filter ScorecardFilter) ([]models.Scorecard, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	limit = min(limit, 500)

	query := `
		SELECT ` + scorecardColumns + `
		FROM scorecards
		WHERE date = $1 AND ($2 = '' OR buy_signal = $2)
		ORDER BY rs_rating DESC NULLS LAST, symbol ASC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, models.DateOnly(filter.Date), string(filter.Signal), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scorecards: %w", err)
	}
	defer rows.Close()

	cards := []models.Scorecard{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan scorecard: %w", err)
		}
		card, err := decodeScorecard(payload)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scorecards: %w", err)
	}
	return cards, nil
}

func (r *ScorecardRepository) one(ctx context.Context, query string, args ...interface{}) (*models.Scorecard, error) {
	var payload []byte
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&payload); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load scorecard: %w", err)
	}
	return decodeScorecard(payload)
}

func decodeScorecard(payload []byte) (*models.Scorecard, error) {
	var card models.Scorecard
	if err := json.Unmarshal(payload, &card); err != nil {
		return nil, fmt.Errorf("failed to decode scorecard: %w", err)
	}
	return &card, nil
}
