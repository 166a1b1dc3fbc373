package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	coreerrors "github.com/jiwelabs/threatwatch/internal/core/errors"
)

// NewsItem is a fact row keyed by canonical URL. IsApproved is a tri-state:
// nil means unreviewed, true approved, false rejected.
type NewsItem struct {
	ID             string
	URL            string
	Title          string
	Description    string
	PublishingTime time.Time
	ScrapingTime   time.Time
	IsApproved     *bool
}

// FindNewsByURL looks a news item up by its canonical URL.
func (db *DB) FindNewsByURL(ctx context.Context, url string) (*NewsItem, error) {
	item, err := db.scanNewsRow(db.Pool.QueryRow(ctx, `
		SELECT id, url, title, description, publishing_time, scraping_time, is_approved
		FROM news_item
		WHERE url = $1
	`, url))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coreerrors.ErrNotFound
		}

		return nil, fmt.Errorf("find news by url: %w", err)
	}

	return item, nil
}

// SaveNewsItem inserts a news fact row with approval state unset. The unique
// constraint on url makes a replayed insert a no-op; the existing row and its
// approval state are left untouched.
func (db *DB) SaveNewsItem(ctx context.Context, item *NewsItem) error {
	var id pgtype.UUID

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO news_item (url, title, description, publishing_time, scraping_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (url) DO NOTHING
		RETURNING id
	`, item.URL, item.Title, item.Description, item.PublishingTime, item.ScrapingTime).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coreerrors.ErrDuplicateRecord
		}

		return fmt.Errorf("save news item: %w", err)
	}

	item.ID = fromUUID(id)

	return nil
}

// ListUnreviewedNews returns news items whose approval state is still unset,
// most recently scraped first.
func (db *DB) ListUnreviewedNews(ctx context.Context, limit int) ([]NewsItem, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, url, title, description, publishing_time, scraping_time, is_approved
		FROM news_item
		WHERE is_approved IS NULL
		ORDER BY scraping_time DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unreviewed news: %w", err)
	}
	defer rows.Close()

	var items []NewsItem

	for rows.Next() {
		item, err := db.scanNewsRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan news row: %w", err)
		}

		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate news rows: %w", err)
	}

	return items, nil
}

// SetNewsApproval records a reviewer decision for an unreviewed item. The
// update is guarded on is_approved IS NULL so approved/rejected states are
// terminal; it returns false when the item was missing or already decided.
func (db *DB) SetNewsApproval(ctx context.Context, id string, approved bool) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE news_item
		SET is_approved = $2
		WHERE id = $1
		  AND is_approved IS NULL
	`, toUUID(id), approved)
	if err != nil {
		return false, fmt.Errorf("set news approval: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (db *DB) scanNewsRow(row pgx.Row) (*NewsItem, error) {
	var id pgtype.UUID

	var publishing pgtype.Timestamptz

	var scraping pgtype.Timestamptz

	item := &NewsItem{}

	if err := row.Scan(&id, &item.URL, &item.Title, &item.Description, &publishing, &scraping, &item.IsApproved); err != nil {
		return nil, err
	}

	item.ID = fromUUID(id)
	item.PublishingTime = fromTimestamptz(publishing)
	item.ScrapingTime = fromTimestamptz(scraping)

	return item, nil
}
