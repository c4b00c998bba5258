package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"adnews/internal/fetch"
	"adnews/internal/model"
	"adnews/internal/source"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type NewsStorage interface {
	Upsert(ctx context.Context, item model.NewsItem) error
	DeleteOlderThan(ctx context.Context, t time.Time) (int64, error)
}

type SourceList interface {
	ActiveSources(ctx context.Context) ([]model.NewsSource, error)
	SourcesByNames(ctx context.Context, names []string) ([]model.NewsSource, error)
	SourceByName(ctx context.Context, name string) (*model.NewsSource, error)
}

type Source interface {
	ID() int64
	Name() string

	Fetch(ctx context.Context) ([]model.Item, error)
}

type Fetcher struct {
	news    NewsStorage
	sources SourceList

	keywords  []string
	retention time.Duration
	sentences int
	logger    *logrus.Logger

	newSource func(model.NewsSource) Source
	now       func() time.Time
}

func New(
	news NewsStorage,
	sources SourceList,
	client *fetch.Client,
	keywords []string,
	retention time.Duration,
	sentences int,
	logger *logrus.Logger,
) *Fetcher {
	return &Fetcher{
		news:      news,
		sources:   sources,
		keywords:  lo.Map(keywords, func(k string, _ int) string { return strings.ToLower(k) }),
		retention: retention,
		sentences: sentences,
		logger:    logger,
		newSource: func(m model.NewsSource) Source {
			return source.NewRSSSourceFromModel(m, client)
		},
		now: time.Now,
	}
}

// Fetch ingests every active source and then removes expired news.
func (f *Fetcher) Fetch(ctx context.Context) error {
	sources, err := f.sources.ActiveSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	now := f.now().UTC()

	// ошибки источников только логируются
	f.fetchAll(ctx, sources, now, true)

	deleted, err := f.news.DeleteOlderThan(ctx, now.Add(-f.retention))
	if err != nil {
		return fmt.Errorf("failed to delete old news: %w", err)
	}

	f.logger.Infof("deleted %d old news", deleted)

	return nil
}

// FetchSelected ingests only the named sources, without lead images and without the sweep.
func (f *Fetcher) FetchSelected(ctx context.Context, names []string) error {
	sources, err := f.sources.SourcesByNames(ctx, names)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	var errs []error

	known := lo.Map(sources, func(s model.NewsSource, _ int) string { return s.Name })
	if missing, _ := lo.Difference(names, known); len(missing) > 0 {
		errs = append(errs, fmt.Errorf("unknown sources: %s", strings.Join(missing, ", ")))
	}

	errs = append(errs, f.fetchAll(ctx, sources, f.now().UTC(), false))

	return errors.Join(errs...)
}

func (f *Fetcher) fetchAll(ctx context.Context, sources []model.NewsSource, now time.Time, withImage bool) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, src := range sources {
		wg.Add(1)

		go func(source Source) {
			defer wg.Done()

			if err := f.fetchSource(ctx, source, now, withImage); err != nil {
				f.logger.WithField("source", source.Name()).Errorf("fetch failed: %v", err)

				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", source.Name(), err))
				mu.Unlock()
			}
		}(f.newSource(src))
	}

	wg.Wait()

	return errors.Join(errs...)
}

func (f *Fetcher) fetchSource(ctx context.Context, source Source, now time.Time, withImage bool) error {
	items, err := source.Fetch(ctx)
	if err != nil {
		return err
	}

	stored, err := f.processItems(ctx, items, now, withImage)

	f.logger.WithFields(logrus.Fields{
		"source":  source.Name(),
		"entries": len(items),
		"stored":  stored,
	}).Info("source processed")

	return err
}

func (f *Fetcher) processItems(ctx context.Context, items []model.Item, now time.Time, withImage bool) (int, error) {
	var (
		errs   []error
		stored int

		resolved = make(map[string]*int64)
	)

	cutoff := now.Add(-f.retention)

	for _, item := range items {
		if item.Link == "" {
			continue
		}

		title := titleOrDefault(item.Title)
		description := CleanText(item.Description)

		if !f.Matches(title, description) {
			continue
		}

		published := ParsePublished(item.Published, now)
		if published.Before(cutoff) {
			continue
		}

		sourceID, ok := resolved[item.FeedTitle]
		if !ok {
			sourceID = f.resolveSource(ctx, item.FeedTitle)
			resolved[item.FeedTitle] = sourceID
		}

		news := model.NewsItem{
			Title:       title,
			Description: Truncate(description, f.sentences),
			PublishedAt: published,
			Link:        item.Link,
			SourceID:    sourceID,
		}

		if withImage {
			news.Image = ExtractImage(item.Description)
		}

		if err := f.news.Upsert(ctx, news); err != nil {
			errs = append(errs, fmt.Errorf("failed to save %s: %w", item.Link, err))
			continue
		}

		stored++
	}

	return stored, errors.Join(errs...)
}

// resolveSource ищет источник по названию ленты; неизвестный источник не ошибка
func (f *Fetcher) resolveSource(ctx context.Context, feedTitle string) *int64 {
	if feedTitle == "" {
		return nil
	}

	src, err := f.sources.SourceByName(ctx, feedTitle)
	if err != nil {
		f.logger.WithField("feed", feedTitle).Warnf("failed to resolve source: %v", err)
		return nil
	}

	if src == nil {
		return nil
	}

	return &src.ID
}

// Matches reports whether title or description mentions any keyword.
func (f *Fetcher) Matches(title, description string) bool {
	title = strings.ToLower(title)
	description = strings.ToLower(description)

	for _, keyword := range f.keywords {
		if strings.Contains(title, keyword) || strings.Contains(description, keyword) {
			return true
		}
	}

	return false
}
