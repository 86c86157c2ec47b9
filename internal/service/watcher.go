package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"market_watcher/internal/config"
	"market_watcher/internal/domain"
)

// Watcher owns one poll cycle: fetch new posts per configured source,
// consult the seen store, route report accounts straight to the notifiers
// and general accounts through the classifier. It also owns the seen
// store's lifecycle (record on accept, evict and flush on the maintenance
// cadence).
type Watcher struct {
	source     Source
	classifier Classifier
	notifiers  []Notifier
	seen       SeenStore
	cursors    CursorStore
	snapshots  SnapshotStore
	txManager  TransactionManager
	logger     *slog.Logger
	config     config.WatchConfig
	startedAt  time.Time
}

func NewWatcher(
	source Source,
	classifier Classifier,
	notifiers []Notifier,
	seen SeenStore,
	cursors CursorStore,
	snapshots SnapshotStore,
	txManager TransactionManager,
	logger *slog.Logger,
	cfg config.WatchConfig,
) *Watcher {
	return &Watcher{
		source:     source,
		classifier: classifier,
		notifiers:  notifiers,
		seen:       seen,
		cursors:    cursors,
		snapshots:  snapshots,
		txManager:  txManager,
		logger:     logger.With("source", source.Name()),
		config:     cfg,
		startedAt:  time.Now(),
	}
}

// RunCycle processes all configured accounts and subreddits once. Failures
// are isolated per account and per post; the cycle always runs to the end.
func (w *Watcher) RunCycle(ctx context.Context) (*domain.CycleStats, error) {
	startTime := time.Now()
	stats := &domain.CycleStats{}

	for _, account := range w.config.Reports {
		w.processAccount(ctx, account, domain.AccountReport, stats)
	}
	for _, account := range w.config.General {
		w.processAccount(ctx, account, domain.AccountGeneral, stats)
	}
	for subreddit, subCfg := range w.config.Subreddits {
		w.processSubreddit(ctx, subreddit, subCfg, stats)
	}

	stats.Duration = time.Since(startTime)

	w.logger.Info("cycle completed",
		"fetched", stats.Fetched,
		"skipped", stats.Skipped,
		"forwarded", stats.Forwarded,
		"classified", stats.Classified,
		"significant", stats.Significant,
		"notified", stats.Notified,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (w *Watcher) processAccount(ctx context.Context, account string, kind domain.AccountKind, stats *domain.CycleStats) {
	sourceKey := "u/" + account
	logger := w.logger.With("account", account, "kind", string(kind))

	cursor, err := w.cursors.Get(ctx, sourceKey)
	if err != nil {
		logger.Error("load cursor failed", "error", err)
		stats.Errors++
		return
	}

	posts, err := w.source.FetchUserPosts(ctx, account, w.sinceFor(cursor))
	if err != nil {
		logger.Error("fetch posts failed", "error", err)
		stats.Errors++
		return
	}
	stats.Fetched += len(posts)

	processed := 0
	blocked := false
	for i := range posts {
		post := &posts[i]

		if w.seen.Has(post.ID) {
			logger.Debug("post already processed, skipping", "post_id", post.ID)
			stats.Skipped++
			continue
		}
		w.seen.Record(post.ID, time.Now())

		switch kind {
		case domain.AccountReport:
			w.attachSocialScore(ctx, post, logger)
			w.notify(ctx, "reddit: report", post, nil, stats)
			stats.Forwarded++
			processed++
		case domain.AccountGeneral:
			if w.classifyAndNotify(ctx, "reddit: general", post, logger, stats) {
				processed++
			} else {
				blocked = true
			}
		}

		// Posts arrive oldest first. The cursor must not pass an
		// unresolved post: the fetch window only returns posts strictly
		// newer than the cursor, so advancing past a forgotten post
		// would drop it for good.
		if !blocked {
			w.advanceCursor(cursor, post)
		}
	}

	cursor.TotalProcessed += int64(processed)
	if err := w.cursors.Update(ctx, cursor); err != nil {
		logger.Error("update cursor failed", "error", err)
		stats.Errors++
	}
}

// classifyAndNotify runs the general-account pipeline for one post. It
// returns false when classification failed and the post was handed back
// for a later cycle.
func (w *Watcher) classifyAndNotify(ctx context.Context, label string, post *domain.Post, logger *slog.Logger, stats *domain.CycleStats) bool {
	significance, err := w.classifier.ReviewSignificance(ctx, post.Body)
	if err != nil {
		// Leave the post unseen so it is re-evaluated next cycle.
		w.seen.Forget(post.ID)
		logger.Error("significance review failed", "post_id", post.ID, "error", err)
		stats.Errors++
		return false
	}
	stats.Classified++

	if !significance.Significant {
		logger.Debug("post not significant", "post_id", post.ID, "rationale", significance.Rationale)
		return true
	}
	stats.Significant++

	classification, err := w.completeClassification(ctx, post, significance)
	if err != nil {
		w.seen.Forget(post.ID)
		logger.Error("classification failed", "post_id", post.ID, "error", err)
		stats.Errors++
		return false
	}

	w.attachSocialScore(ctx, post, logger)
	w.notify(ctx, label, post, classification, stats)
	return true
}

// attachSocialScore fills in the author's link karma for the notification.
// Best-effort: on lookup failure the message goes out without a score.
func (w *Watcher) attachSocialScore(ctx context.Context, post *domain.Post, logger *slog.Logger) {
	if post.AuthorKarma > 0 {
		return
	}
	karma, err := w.source.UserKarma(ctx, post.Author)
	if err != nil {
		logger.Debug("karma lookup failed", "author", post.Author, "error", err)
		return
	}
	post.AuthorKarma = karma
}

// completeClassification fills in sentiment and summary for a post already
// judged significant.
func (w *Watcher) completeClassification(ctx context.Context, post *domain.Post, significance domain.Significance) (*domain.Classification, error) {
	sentiment, err := w.classifier.ScoreSentiment(ctx, post.Body)
	if err != nil {
		return nil, fmt.Errorf("score sentiment: %w", err)
	}

	summary, err := w.classifier.Summarize(ctx, post.Body, w.config.SummaryCharLimit)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	return &domain.Classification{
		Significance: significance,
		Sentiment:    sentiment,
		Summary:      summary,
	}, nil
}

func (w *Watcher) processSubreddit(ctx context.Context, subreddit string, subCfg config.SubredditConfig, stats *domain.CycleStats) {
	sourceKey := "r/" + subreddit
	logger := w.logger.With("subreddit", subreddit, "flair", subCfg.TargetFlair)

	cursor, err := w.cursors.Get(ctx, sourceKey)
	if err != nil {
		logger.Error("load cursor failed", "error", err)
		stats.Errors++
		return
	}

	posts, err := w.source.SearchSubreddit(ctx, subreddit, subCfg.TargetFlair, w.sinceFor(cursor))
	if err != nil {
		logger.Error("search subreddit failed", "error", err)
		stats.Errors++
		return
	}
	stats.Fetched += len(posts)

	processed := 0
	blocked := false
	for i := range posts {
		post := &posts[i]

		if w.seen.Has(post.ID) {
			stats.Skipped++
			continue
		}

		// Search matches flair loosely; enforce it exactly.
		if !strings.EqualFold(post.Flair, subCfg.TargetFlair) {
			continue
		}

		karma, err := w.source.UserKarma(ctx, post.Author)
		if err != nil {
			logger.Debug("karma lookup failed", "author", post.Author, "error", err)
		}
		if karma < subCfg.MinKarma {
			logger.Debug("author below karma floor", "post_id", post.ID, "karma", karma)
			continue
		}
		post.AuthorKarma = karma

		w.seen.Record(post.ID, time.Now())

		sentiment, err := w.classifier.ScoreSentiment(ctx, post.Body)
		if err != nil {
			// Hold the cursor so the next window refetches this post.
			w.seen.Forget(post.ID)
			logger.Error("sentiment scoring failed", "post_id", post.ID, "error", err)
			stats.Errors++
			blocked = true
			continue
		}
		stats.Classified++

		if sentiment.Score < subCfg.SentimentThreshold {
			logger.Debug("post below sentiment threshold",
				"post_id", post.ID,
				"score", sentiment.Score,
				"threshold", subCfg.SentimentThreshold,
			)
			if !blocked {
				w.advanceCursor(cursor, post)
			}
			processed++
			continue
		}
		stats.Significant++

		summary, err := w.classifier.Summarize(ctx, post.Body, w.config.SummaryCharLimit)
		if err != nil {
			w.seen.Forget(post.ID)
			logger.Error("summarize failed", "post_id", post.ID, "error", err)
			stats.Errors++
			blocked = true
			continue
		}

		classification := &domain.Classification{
			Significance: domain.Significance{Significant: true, Rationale: "sentiment above subreddit threshold"},
			Sentiment:    sentiment,
			Summary:      summary,
		}
		w.notify(ctx, "reddit: "+subreddit, post, classification, stats)

		if !blocked {
			w.advanceCursor(cursor, post)
		}
		processed++
	}

	cursor.TotalProcessed += int64(processed)
	if err := w.cursors.Update(ctx, cursor); err != nil {
		logger.Error("update cursor failed", "error", err)
		stats.Errors++
	}
}

// notify fans the message out to every configured channel. Delivery
// failures are logged and never abort the cycle.
func (w *Watcher) notify(ctx context.Context, label string, post *domain.Post, classification *domain.Classification, stats *domain.CycleStats) {
	msg := &domain.Notification{
		Label:          label,
		Post:           *post,
		Classification: classification,
		SentAt:         time.Now().UTC(),
	}
	if post.AuthorKarma > 0 {
		msg.SocialScore = fmt.Sprintf("%d karma", post.AuthorKarma)
	}

	delivered := false
	for _, n := range w.notifiers {
		if err := n.Send(ctx, msg); err != nil {
			w.logger.Error("notification delivery failed",
				"channel", n.Name(),
				"post_id", post.ID,
				"error", err,
			)
			stats.Errors++
			continue
		}
		delivered = true
	}
	if delivered {
		stats.Notified++
	}
}

// sinceFor bounds the fetch window: never before the cursor, never before
// process start on a fresh cursor, and never further back than the
// configured lookback window.
func (w *Watcher) sinceFor(cursor *domain.PollCursor) time.Time {
	since := cursor.LastPostAt
	if since.IsZero() {
		since = w.startedAt
	}
	if floor := time.Now().Add(-w.config.LookbackWindow); since.Before(floor) {
		since = floor
	}
	return since
}

func (w *Watcher) advanceCursor(cursor *domain.PollCursor, post *domain.Post) {
	if post.CreatedAt.After(cursor.LastPostAt) {
		cursor.LastPostAt = post.CreatedAt
		cursor.LastPostID = post.ID
	}
}

// Maintain evicts expired seen entries and flushes the snapshot to
// storage. Flush failures are non-fatal; the in-memory state stays
// authoritative until the next successful flush.
func (w *Watcher) Maintain(ctx context.Context) error {
	now := time.Now()
	removed := w.seen.Evict(now, w.config.RetentionWindow)
	w.logger.Info("seen store maintenance",
		"evicted", removed,
		"remaining", w.seen.Len(),
		"retention", w.config.RetentionWindow,
	)

	err := w.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return w.snapshots.Replace(txCtx, w.seen.Snapshot())
	})
	if err != nil {
		return fmt.Errorf("flush seen snapshot: %w", err)
	}
	return nil
}

// RestoreSeen loads the persisted snapshot into the seen store, dropping
// entries already past the retention window.
func (w *Watcher) RestoreSeen(ctx context.Context) error {
	entries, err := w.snapshots.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load seen snapshot: %w", err)
	}
	w.seen.Restore(entries)
	w.seen.Evict(time.Now(), w.config.RetentionWindow)
	w.logger.Info("seen store restored", "entries", w.seen.Len())
	return nil
}

// SendHeartbeat posts a liveness message through the notifiers.
func (w *Watcher) SendHeartbeat(ctx context.Context) error {
	msg := &domain.Notification{
		Label: "heartbeat",
		Post: domain.Post{
			Title:     fmt.Sprintf("market watcher alive, tracking %d seen posts", w.seen.Len()),
			CreatedAt: time.Now().UTC(),
		},
		SentAt: time.Now().UTC(),
	}

	var lastErr error
	for _, n := range w.notifiers {
		if err := n.Send(ctx, msg); err != nil {
			w.logger.Error("heartbeat delivery failed", "channel", n.Name(), "error", err)
			lastErr = err
		}
	}
	return lastErr
}
