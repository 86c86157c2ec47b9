package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"market_watcher/internal/domain"
)

// Source fetches posts from the content platform.
type Source interface {
	Name() string
	FetchUserPosts(ctx context.Context, username string, since time.Time) ([]domain.Post, error)
	SearchSubreddit(ctx context.Context, subreddit, flair string, since time.Time) ([]domain.Post, error)
	UserKarma(ctx context.Context, username string) (int64, error)
}

// Classifier wraps the model calls. Transient service failures surface as
// classifier.ErrUnavailable after retries; contract violations as
// classifier.ErrMalformedResponse.
type Classifier interface {
	ReviewSignificance(ctx context.Context, postText string) (domain.Significance, error)
	ScoreSentiment(ctx context.Context, postText string) (domain.Sentiment, error)
	Summarize(ctx context.Context, postText string, characterLimit int) (string, error)
}

// Notifier delivers one notification to one channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg *domain.Notification) error
}

// SeenStore is the bounded, time-windowed dedup record.
type SeenStore interface {
	Has(id string) bool
	Record(id string, t time.Time)
	Forget(id string)
	Evict(now time.Time, retention time.Duration) int
	Len() int
	Snapshot() map[string]time.Time
	Restore(entries map[string]time.Time)
}

// CursorStore persists per-source poll cursors.
type CursorStore interface {
	Get(ctx context.Context, sourceKey string) (*domain.PollCursor, error)
	Update(ctx context.Context, cursor *domain.PollCursor) error
}

// SnapshotStore persists the seen-store contents.
type SnapshotStore interface {
	LoadAll(ctx context.Context) (map[string]time.Time, error)
	Replace(ctx context.Context, entries map[string]time.Time) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
