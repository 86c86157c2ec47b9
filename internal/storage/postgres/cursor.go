package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"market_watcher/internal/domain"
)

// CursorStore persists per-source poll cursors so a restart does not
// replay a source's history.
type CursorStore struct {
	db *sqlx.DB
}

func NewCursorStore(db *sqlx.DB) *CursorStore {
	return &CursorStore{db: db}
}

func (s *CursorStore) Get(ctx context.Context, sourceKey string) (*domain.PollCursor, error) {
	var cursor domain.PollCursor
	query := `
		SELECT id, source_key, last_post_at, last_post_id, total_processed
		FROM poll_cursors
		WHERE source_key = $1`

	err := s.db.GetContext(ctx, &cursor, query, sourceKey)
	if err == sql.ErrNoRows {
		// Zero cursor for sources never polled before.
		return &domain.PollCursor{
			SourceKey:  sourceKey,
			LastPostAt: time.Time{},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

func (s *CursorStore) Update(ctx context.Context, cursor *domain.PollCursor) error {
	query := `
		INSERT INTO poll_cursors (source_key, last_post_at, last_post_id, total_processed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_key) DO UPDATE SET
			last_post_at = EXCLUDED.last_post_at,
			last_post_id = EXCLUDED.last_post_id,
			total_processed = EXCLUDED.total_processed`

	exec := GetExecutor(ctx, s.db)
	_, err := exec.ExecContext(ctx, query,
		cursor.SourceKey,
		cursor.LastPostAt,
		cursor.LastPostID,
		cursor.TotalProcessed,
	)
	return err
}
