package source

import (
	"context"
	"fmt"

	"adnews/internal/fetch"
	"adnews/internal/model"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"
)

type RSSSource struct {
	URL        string
	sourceID   int64
	sourceName string

	client *fetch.Client
}

func (s RSSSource) ID() int64 {
	return s.sourceID
}

func (s RSSSource) Name() string {
	return s.sourceName
}

func NewRSSSourceFromModel(m model.NewsSource, client *fetch.Client) RSSSource {
	return RSSSource{
		URL:        m.FeedURL,
		sourceID:   m.ID,
		sourceName: m.Name,
		client:     client,
	}
}

// Fetch downloads and parses the feed. RSS and Atom are both accepted.
func (s RSSSource) Fetch(ctx context.Context) ([]model.Item, error) {
	feed, err := s.loadFeed(ctx, s.URL)
	if err != nil {
		return nil, err
	}

	return lo.Map(feed.Items, func(item *gofeed.Item, _ int) model.Item {
		description := item.Description
		if description == "" {
			description = item.Content
		}

		return model.Item{
			Title:       item.Title,
			Description: description,
			Link:        item.Link,
			Published:   item.Published,
			FeedTitle:   feed.Title,
		}
	}), nil
}

func (s RSSSource) loadFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	body, err := s.client.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", url, err)
	}

	return feed, nil
}
