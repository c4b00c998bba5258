package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a single feed entry as it came from the source, before filtering.
type Item struct {
	Title       string
	Description string // сырое описание с разметкой
	Link        string
	Published   string // дата публикации в источнике, как в ленте
	FeedTitle   string
}

type NewsSource struct {
	ID        int64
	Name      string
	FeedURL   string
	Active    bool
	CreatedAt time.Time
}

type NewsItem struct {
	ID          int64
	Title       string
	Description string
	PublishedAt time.Time // время публикации в источнике
	Image       string
	Link        string
	SourceID    *int64
	PostedAt    *time.Time
}

// CurrentRate is the latest known rate of one instrument, one row per symbol.
type CurrentRate struct {
	Symbol    string
	Rate      decimal.Decimal
	Glyph     string
	UpdatedAt time.Time
	Provider  string
}

// RateHistoryEntry is an immutable snapshot written once per ingestion run.
type RateHistoryEntry struct {
	ID         int64
	Symbol     string
	Rate       decimal.Decimal
	RecordedAt time.Time
	Provider   string
}

type SeriesPoint struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
}
