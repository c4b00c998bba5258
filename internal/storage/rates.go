package storage

import (
	"context"
	"time"

	"adnews/internal/model"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type RateStorage struct {
	db *sqlx.DB
}

type dbCurrentRate struct {
	Symbol    string          `db:"symbol"`
	Rate      decimal.Decimal `db:"rate"`
	Glyph     string          `db:"glyph"`
	UpdatedAt time.Time       `db:"updated_at"`
	Provider  string          `db:"provider"`
}

type dbHistoryEntry struct {
	ID         int64           `db:"id"`
	Symbol     string          `db:"symbol"`
	Rate       decimal.Decimal `db:"rate"`
	RecordedAt time.Time       `db:"recorded_at"`
	Provider   string          `db:"provider"`
}

func NewRateStorage(db *sqlx.DB) *RateStorage {
	return &RateStorage{
		db: db,
	}
}

func (s *RateStorage) UpsertCurrent(ctx context.Context, rate model.CurrentRate) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(
		ctx,
		s.db.Rebind(`INSERT INTO currency_rates (symbol, rate, glyph, updated_at, provider)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (symbol) DO UPDATE SET
				rate = excluded.rate,
				glyph = excluded.glyph,
				updated_at = excluded.updated_at,
				provider = excluded.provider;`),
		rate.Symbol,
		rate.Rate.Round(4),
		rate.Glyph,
		rate.UpdatedAt.UTC(),
		rate.Provider,
	)

	return err
}

func (s *RateStorage) AppendHistory(ctx context.Context, entry model.RateHistoryEntry) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(
		ctx,
		s.db.Rebind(`INSERT INTO currency_rate_history (symbol, rate, recorded_at, provider) VALUES (?, ?, ?, ?);`),
		entry.Symbol,
		entry.Rate.Round(4),
		entry.RecordedAt.UTC(),
		entry.Provider,
	)

	return err
}

func (s *RateStorage) DeleteHistoryOlderThan(ctx context.Context, t time.Time) (int64, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	res, err := conn.ExecContext(ctx, s.db.Rebind(`DELETE FROM currency_rate_history WHERE recorded_at < ?`), t.UTC())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (s *RateStorage) CurrentRates(ctx context.Context) ([]model.CurrentRate, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var rates []dbCurrentRate
	if err := conn.SelectContext(
		ctx,
		&rates,
		`SELECT symbol, rate, glyph, updated_at, provider FROM currency_rates ORDER BY symbol`,
	); err != nil {
		return nil, err
	}

	return lo.Map(rates, func(r dbCurrentRate, _ int) model.CurrentRate {
		return model.CurrentRate(r)
	}), nil
}

// History returns entries for symbol recorded at or after since, newest first.
func (s *RateStorage) History(ctx context.Context, symbol string, since time.Time) ([]model.RateHistoryEntry, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var entries []dbHistoryEntry
	if err := conn.SelectContext(
		ctx,
		&entries,
		s.db.Rebind(`SELECT id, symbol, rate, recorded_at, provider FROM currency_rate_history
			WHERE symbol = ? AND recorded_at >= ? ORDER BY recorded_at DESC`),
		symbol,
		since.UTC(),
	); err != nil {
		return nil, err
	}

	return lo.Map(entries, func(e dbHistoryEntry, _ int) model.RateHistoryEntry {
		return model.RateHistoryEntry(e)
	}), nil
}
