package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adnews/internal/cache"
	"adnews/internal/model"

	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownPeriod = errors.New("unknown period")
	ErrUnknownSymbol = errors.New("unknown symbol")
)

var periods = map[string]time.Duration{
	cache.PeriodDay: 24 * time.Hour,
	"week":          7 * 24 * time.Hour,
	"month":         30 * 24 * time.Hour,
	"year":          365 * 24 * time.Hour,
}

const (
	hourLabel = "15:04"
	dayLabel  = "02.01.2006"
)

type RateHistory interface {
	History(ctx context.Context, symbol string, since time.Time) ([]model.RateHistoryEntry, error)
}

type SeriesCache interface {
	Get(symbol, period string) ([]model.SeriesPoint, bool)
	Put(symbol, period string, series []model.SeriesPoint)
}

type Service struct {
	rates   RateHistory
	cache   SeriesCache
	cbr     *CBRHistory
	symbols map[string]bool
	logger  *logrus.Logger

	now func() time.Time
}

func NewService(rates RateHistory, cache SeriesCache, cbr *CBRHistory, symbols []string, logger *logrus.Logger) *Service {
	known := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		known[s] = true
	}

	return &Service{
		rates:   rates,
		cache:   cache,
		cbr:     cbr,
		symbols: known,
		logger:  logger,
		now:     time.Now,
	}
}

// Series returns the chart series for symbol over period, oldest point first.
func (s *Service) Series(ctx context.Context, symbol, period string) ([]model.SeriesPoint, error) {
	window, ok := periods[period]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeriod, period)
	}

	if !s.symbols[symbol] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	if series, ok := s.cache.Get(symbol, period); ok {
		return series, nil
	}

	now := s.now().UTC()
	since := now.Add(-window)

	var (
		series []model.SeriesPoint
		err    error
	)

	switch {
	case period == cache.PeriodDay:
		series, err = s.local(ctx, symbol, since, hourLabel)
	case s.cbr != nil && s.cbr.Supports(symbol):
		series, err = s.cbr.Series(ctx, symbol, since, now)
		if err != nil {
			s.logger.WithField("symbol", symbol).Warnf("central bank history unavailable, using local history: %v", err)
		}
		if err != nil || len(series) == 0 {
			series, err = s.local(ctx, symbol, since, dayLabel)
		}
	default:
		series, err = s.local(ctx, symbol, since, dayLabel)
	}

	if err != nil {
		return nil, err
	}

	if len(series) > 0 {
		s.cache.Put(symbol, period, series)
	}

	return series, nil
}

// local builds a series from the history table keeping the last value per label.
func (s *Service) local(ctx context.Context, symbol string, since time.Time, layout string) ([]model.SeriesPoint, error) {
	entries, err := s.rates.History(ctx, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate history: %w", err)
	}

	series := make([]model.SeriesPoint, 0, len(entries))

	// записи приходят от новых к старым
	for i := len(entries) - 1; i >= 0; i-- {
		point := model.SeriesPoint{
			Label: entries[i].RecordedAt.UTC().Format(layout),
			Value: entries[i].Rate,
		}

		if n := len(series); n > 0 && series[n-1].Label == point.Label {
			series[n-1] = point
			continue
		}

		series = append(series, point)
	}

	return series, nil
}
