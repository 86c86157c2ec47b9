package domain

import "time"

// AccountKind tells the watcher how to route posts from a configured account.
type AccountKind string

const (
	AccountReport  AccountKind = "report"  // forwarded without classification
	AccountGeneral AccountKind = "general" // classified before any notification
)

// Post is a single submission fetched from the platform. Immutable once fetched.
type Post struct {
	ID          string    `json:"id"` // platform-assigned, opaque
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	Subreddit   string    `json:"subreddit,omitempty"`
	Flair       string    `json:"flair,omitempty"`
	AuthorKarma int64     `json:"author_karma,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PollCursor marks how far the watcher has read a single source key
// (e.g. "u/alice" or "r/wallstreetbets"). A zero LastPostAt means the
// source has never been polled.
type PollCursor struct {
	ID             int64     `db:"id"`
	SourceKey      string    `db:"source_key"`
	LastPostAt     time.Time `db:"last_post_at"`
	LastPostID     string    `db:"last_post_id"`
	TotalProcessed int64     `db:"total_processed"`
}
