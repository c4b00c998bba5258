package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"adnews/internal/model"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
)

type SourceStorage struct {
	db *sqlx.DB
}

type dbSource struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	FeedURL   string    `db:"feed_url"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}

func NewSourceStorage(db *sqlx.DB) *SourceStorage {
	return &SourceStorage{
		db: db,
	}
}

func (s *SourceStorage) ActiveSources(ctx context.Context) ([]model.NewsSource, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var sources []dbSource
	if err := conn.SelectContext(
		ctx,
		&sources,
		`SELECT id, name, feed_url, active, created_at FROM news_sources WHERE active = TRUE ORDER BY id`,
	); err != nil {
		return nil, err
	}

	return lo.Map(sources, toSource), nil
}

func (s *SourceStorage) SourcesByNames(ctx context.Context, names []string) ([]model.NewsSource, error) {
	if len(names) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		`SELECT id, name, feed_url, active, created_at FROM news_sources WHERE name IN (?) ORDER BY id`,
		names,
	)
	if err != nil {
		return nil, err
	}

	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var sources []dbSource
	if err := conn.SelectContext(ctx, &sources, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	return lo.Map(sources, toSource), nil
}

// SourceByName returns nil without error when no source has that name.
func (s *SourceStorage) SourceByName(ctx context.Context, name string) (*model.NewsSource, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var source dbSource

	err = conn.GetContext(
		ctx,
		&source,
		s.db.Rebind(`SELECT id, name, feed_url, active, created_at FROM news_sources WHERE name = ?`),
		name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	result := toSource(source, 0)

	return &result, nil
}

func (s *SourceStorage) Add(ctx context.Context, source model.NewsSource) (int64, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return -1, err
	}
	defer conn.Close()

	if source.CreatedAt.IsZero() {
		source.CreatedAt = time.Now()
	}

	var id int64

	row := conn.QueryRowxContext(
		ctx,
		s.db.Rebind(`INSERT INTO news_sources (name, feed_url, active, created_at) VALUES (?, ?, ?, ?) RETURNING id;`),
		source.Name, source.FeedURL, source.Active, source.CreatedAt.UTC(),
	)

	if err := row.Scan(&id); err != nil {
		return -1, err
	}

	return id, nil
}

func (s *SourceStorage) SetActive(ctx context.Context, id int64, active bool) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, s.db.Rebind(`UPDATE news_sources SET active = ? WHERE id = ?`), active, id)

	return err
}

func (s *SourceStorage) Delete(ctx context.Context, id int64) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, s.db.Rebind("DELETE FROM news_sources WHERE id = ?"), id)

	return err
}

func toSource(source dbSource, _ int) model.NewsSource {
	return model.NewsSource{
		ID:        source.ID,
		Name:      source.Name,
		FeedURL:   source.FeedURL,
		Active:    source.Active,
		CreatedAt: source.CreatedAt,
	}
}
