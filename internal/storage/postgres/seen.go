package postgres

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// SnapshotStore persists the in-memory seen-post set so deduplication
// survives restarts within the retention window. The in-memory store stays
// authoritative; a failed flush is logged by the caller and retried on the
// next maintenance sweep.
type SnapshotStore struct {
	db *sqlx.DB
}

func NewSnapshotStore(db *sqlx.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// LoadAll returns every persisted entry.
func (s *SnapshotStore) LoadAll(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT post_id, first_seen FROM seen_posts")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var firstSeen time.Time
		if err := rows.Scan(&id, &firstSeen); err != nil {
			return nil, err
		}
		entries[id] = firstSeen
	}

	return entries, rows.Err()
}

// Replace overwrites the persisted snapshot with the given entries. Run it
// inside a transaction so a failed flush leaves the previous snapshot intact.
func (s *SnapshotStore) Replace(ctx context.Context, entries map[string]time.Time) error {
	exec := GetExecutor(ctx, s.db)

	if _, err := exec.ExecContext(ctx, "DELETE FROM seen_posts"); err != nil {
		return err
	}

	if len(entries) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO seen_posts (post_id, first_seen) VALUES ")
	args := make([]interface{}, 0, len(entries)*2)

	i := 0
	for id, firstSeen := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("($")
		sb.WriteString(strconv.Itoa(i*2 + 1))
		sb.WriteString(", $")
		sb.WriteString(strconv.Itoa(i*2 + 2))
		sb.WriteString(")")
		args = append(args, id, firstSeen)
		i++
	}

	_, err := exec.ExecContext(ctx, sb.String(), args...)
	return err
}
