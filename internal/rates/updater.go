package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adnews/internal/model"

	"github.com/sirupsen/logrus"
)

type Mode int

const (
	Scheduled Mode = iota
	Forced
)

const forcedSuffix = " (принудительно)"

type RateStorage interface {
	UpsertCurrent(ctx context.Context, rate model.CurrentRate) error
	AppendHistory(ctx context.Context, entry model.RateHistoryEntry) error
	DeleteHistoryOlderThan(ctx context.Context, t time.Time) (int64, error)
}

type Cache interface {
	Clear()
}

type Updater struct {
	rates     RateStorage
	cache     Cache
	fiat      *Chain
	crypto    *Chain
	retention time.Duration
	logger    *logrus.Logger

	now func() time.Time
}

func NewUpdater(rates RateStorage, cache Cache, fiat, crypto *Chain, retention time.Duration, logger *logrus.Logger) *Updater {
	return &Updater{
		rates:     rates,
		cache:     cache,
		fiat:      fiat,
		crypto:    crypto,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Run refreshes fiat and crypto rates. Provider failures only degrade to the
// next tier; the returned error reports storage failures.
func (u *Updater) Run(ctx context.Context, mode Mode) error {
	u.cache.Clear()

	now := u.now().UTC()

	var errs []error

	for _, chain := range []*Chain{u.fiat, u.crypto} {
		res, err := chain.Resolve(ctx)

		for _, f := range res.Failures {
			u.logger.WithFields(logrus.Fields{
				"provider": f.Provider,
				"kind":     f.Kind.String(),
			}).Warnf("rate provider failed: %v", f.Err)
		}

		if err != nil {
			u.logger.WithField("symbols", chain.Symbols()).Errorf("failed to resolve rates: %v", err)
			continue
		}

		label := res.Provider
		if mode == Forced {
			label += forcedSuffix
		}

		if err := u.persist(ctx, chain.Symbols(), res, label, now); err != nil {
			errs = append(errs, err)
		}
	}

	deleted, err := u.rates.DeleteHistoryOlderThan(ctx, now.Add(-u.retention))
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to prune rate history: %w", err))
	} else {
		u.logger.Infof("deleted %d rate history entries", deleted)
	}

	// ряды, посчитанные во время обновления, уже устарели
	u.cache.Clear()

	return errors.Join(errs...)
}

func (u *Updater) persist(ctx context.Context, symbols []string, res Resolution, label string, now time.Time) error {
	var errs []error

	for _, symbol := range symbols {
		rate := res.Rates[symbol].Round(4)

		if err := u.rates.UpsertCurrent(ctx, model.CurrentRate{
			Symbol:    symbol,
			Rate:      rate,
			Glyph:     Glyphs[symbol],
			UpdatedAt: now,
			Provider:  label,
		}); err != nil {
			errs = append(errs, fmt.Errorf("failed to save rate %s: %w", symbol, err))
			continue
		}

		if err := u.rates.AppendHistory(ctx, model.RateHistoryEntry{
			Symbol:     symbol,
			Rate:       rate,
			RecordedAt: now,
			Provider:   label,
		}); err != nil {
			errs = append(errs, fmt.Errorf("failed to append history %s: %w", symbol, err))
		}
	}

	u.logger.WithField("provider", label).Infof("saved %d rates", len(symbols)-len(errs))

	return errors.Join(errs...)
}
