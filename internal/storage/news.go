package storage

import (
	"context"
	"database/sql"
	"time"

	"adnews/internal/model"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
)

type NewsStorage struct {
	db *sqlx.DB
}

type dbNewsItem struct {
	ID          int64          `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	PublishedAt time.Time      `db:"published_at"`
	Image       string         `db:"image"`
	Link        sql.NullString `db:"link"`
	SourceID    sql.NullInt64  `db:"source_id"`
	PostedAt    sql.NullTime   `db:"posted_at"`
}

const newsColumns = `id, title, description, published_at, image, link, source_id, posted_at`

func NewNewsStorage(db *sqlx.DB) *NewsStorage {
	return &NewsStorage{
		db: db,
	}
}

// Upsert inserts the item or overwrites the row with the same link.
func (s *NewsStorage) Upsert(ctx context.Context, item model.NewsItem) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var sourceID sql.NullInt64
	if item.SourceID != nil {
		sourceID = sql.NullInt64{Int64: *item.SourceID, Valid: true}
	}

	_, err = conn.ExecContext(
		ctx,
		s.db.Rebind(`INSERT INTO news (title, description, published_at, image, link, source_id)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (link) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				published_at = excluded.published_at,
				image = excluded.image,
				source_id = excluded.source_id;`),
		item.Title,
		item.Description,
		item.PublishedAt.UTC(),
		item.Image,
		item.Link,
		sourceID,
	)

	return err
}

// DeleteOlderThan removes items published strictly before t and reports how many went.
func (s *NewsStorage) DeleteOlderThan(ctx context.Context, t time.Time) (int64, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	res, err := conn.ExecContext(ctx, s.db.Rebind(`DELETE FROM news WHERE published_at < ?`), t.UTC())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (s *NewsStorage) ByLink(ctx context.Context, link string) (*model.NewsItem, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var item dbNewsItem
	if err := conn.GetContext(
		ctx,
		&item,
		s.db.Rebind(`SELECT `+newsColumns+` FROM news WHERE link = ?`),
		link,
	); err != nil {
		return nil, err
	}

	result := toNewsItem(item, 0)

	return &result, nil
}

func (s *NewsStorage) Latest(ctx context.Context, limit uint64) ([]model.NewsItem, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var items []dbNewsItem
	if err := conn.SelectContext(
		ctx,
		&items,
		s.db.Rebind(`SELECT `+newsColumns+` FROM news ORDER BY published_at DESC LIMIT ?`),
		limit,
	); err != nil {
		return nil, err
	}

	return lo.Map(items, toNewsItem), nil
}

func (s *NewsStorage) AllNotPosted(ctx context.Context, since time.Time, limit uint64) ([]model.NewsItem, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var items []dbNewsItem
	if err := conn.SelectContext(
		ctx,
		&items,
		s.db.Rebind(`SELECT `+newsColumns+` FROM news
			WHERE posted_at IS NULL AND published_at >= ? ORDER BY published_at DESC LIMIT ?`),
		since.UTC(),
		limit,
	); err != nil {
		return nil, err
	}

	return lo.Map(items, toNewsItem), nil
}

func (s *NewsStorage) MarkAsPosted(ctx context.Context, id int64) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(
		ctx,
		s.db.Rebind(`UPDATE news SET posted_at = ? WHERE id = ?;`),
		time.Now().UTC(),
		id,
	)

	return err
}

func toNewsItem(item dbNewsItem, _ int) model.NewsItem {
	result := model.NewsItem{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		PublishedAt: item.PublishedAt,
		Image:       item.Image,
		Link:        item.Link.String,
	}

	if item.SourceID.Valid {
		id := item.SourceID.Int64
		result.SourceID = &id
	}

	if item.PostedAt.Valid {
		posted := item.PostedAt.Time
		result.PostedAt = &posted
	}

	return result
}
