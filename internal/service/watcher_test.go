package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"market_watcher/internal/config"
	"market_watcher/internal/domain"
	"market_watcher/internal/seen"
	"market_watcher/internal/service/mocks"
)

type WatcherTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source     *mocks.MockSource
	classifier *mocks.MockClassifier
	notifier   *mocks.MockNotifier
	cursors    *mocks.MockCursorStore
	snapshots  *mocks.MockSnapshotStore
	txManager  *mocks.MockTransactionManager
	seen       *seen.Store

	logger *slog.Logger
	cfg    config.WatchConfig
}

func (s *WatcherTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockSource(s.ctrl)
	s.classifier = mocks.NewMockClassifier(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.cursors = mocks.NewMockCursorStore(s.ctrl)
	s.snapshots = mocks.NewMockSnapshotStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.seen = seen.New()

	s.cfg = config.WatchConfig{
		PollInterval:        time.Minute,
		MaintenanceInterval: time.Hour,
		HeartbeatInterval:   24 * time.Hour,
		RetentionWindow:     48 * time.Hour,
		LookbackWindow:      7 * 24 * time.Hour,
		SentimentCharLimit:  100,
		SummaryCharLimit:    100,
	}

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.source.EXPECT().Name().Return("reddit").AnyTimes()
	s.notifier.EXPECT().Name().Return("test-channel").AnyTimes()
}

func (s *WatcherTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestWatcherTestSuite(t *testing.T) {
	suite.Run(t, new(WatcherTestSuite))
}

func (s *WatcherTestSuite) newWatcher() *Watcher {
	return NewWatcher(
		s.source,
		s.classifier,
		[]Notifier{s.notifier},
		s.seen,
		s.cursors,
		s.snapshots,
		s.txManager,
		s.logger,
		s.cfg,
	)
}

func (s *WatcherTestSuite) expectCursor(sourceKey string) {
	s.cursors.EXPECT().Get(gomock.Any(), sourceKey).Return(
		&domain.PollCursor{SourceKey: sourceKey}, nil,
	)
	s.cursors.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
}

func (s *WatcherTestSuite) TestReportAccount_ForwardsWithoutClassification() {
	s.cfg.Reports = []string{"alice"}
	watcher := s.newWatcher()

	post := domain.Post{
		ID:        "abc123",
		Author:    "alice",
		Body:      "Selling everything.",
		CreatedAt: time.Now(),
	}

	s.expectCursor("u/alice")
	s.source.EXPECT().FetchUserPosts(gomock.Any(), "alice", gomock.Any()).Return([]domain.Post{post}, nil)
	s.source.EXPECT().UserKarma(gomock.Any(), "alice").Return(int64(9000), nil)

	var sent *domain.Notification
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg *domain.Notification) error {
			sent = msg
			return nil
		},
	)

	stats, err := watcher.RunCycle(context.Background())

	s.NoError(err)
	s.Equal(1, stats.Fetched)
	s.Equal(1, stats.Forwarded)
	s.Equal(1, stats.Notified)
	s.Equal(0, stats.Classified)
	s.True(s.seen.Has("abc123"))
	s.Require().NotNil(sent)
	s.Nil(sent.Classification)
	s.Equal("reddit: report", sent.Label)
	s.Equal("9000 karma", sent.SocialScore)
}

func (s *WatcherTestSuite) TestReportAccount_KarmaLookupBestEffort() {
	s.cfg.Reports = []string{"alice"}
	watcher := s.newWatcher()

	post := domain.Post{ID: "abc124", Author: "alice", Body: "report", CreatedAt: time.Now()}

	s.expectCursor("u/alice")
	s.source.EXPECT().FetchUserPosts(gomock.Any(), "alice", gomock.Any()).Return([]domain.Post{post}, nil)
	s.source.EXPECT().UserKarma(gomock.Any(), "alice").Return(int64(0), errors.New("unexpected status: 429"))

	var sent *domain.Notification
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg *domain.Notification) error {
			sent = msg
			return nil
		},
	)

	stats, err := watcher.RunCycle(context.Background())

	s.NoError(err)
	s.Equal(1, stats.Notified)
	s.Require().NotNil(sent)
	// Delivery happens regardless; the score line is just omitted.
	s.Empty(sent.SocialScore)
}

func (s *WatcherTestSuite) TestGeneralAccount_NotSignificant() {
	s.cfg.General = []string{"bob"}
	watcher := s.newWatcher()

	post := domain.Post{ID: "def456", Author: "bob", Body: "lunch thoughts", CreatedAt: time.Now()}

	s.expectCursor("u/bob")
	s.source.EXPECT().FetchUserPosts(gomock.Any(), "bob", gomock.Any()).Return([]domain.Post{post}, nil)
	s.classifier.EXPECT().ReviewSignificance(gomock.Any(), "lunch thoughts").Return(
		domain.Significance{Significant: false, Rationale: "no market content"}, nil,
	)

	stats, err := watcher.RunCycle(context.Background())

	s.NoError(err)
	s.Equal(1, stats.Classified)
	s.Equal(0, stats.Significant)
	s.Equal(0, stats.Notified)
	// Stays seen so it is not re-evaluated.
	s.True(s.seen.Has("def456"))
}

func (s *WatcherTestSuite) TestGeneralAccount_SignificantNotifies() {
	s.cfg.General = []string{"bob"}
	watcher := s.newWatcher()

	post := domain.Post{ID: "ghi789", Author: "bob", Body: "huge merger announced", CreatedAt: time.Now()}

	s.expectCursor("u/bob")
	s.source.EXPECT().FetchUserPosts(gomock.Any(), "bob", gomock.Any()).Return([]domain.Post{post}, nil)
	s.classifier.EXPECT().ReviewSignificance(gomock.Any(), post.Body).Return(
		domain.Significance{Significant: true, Rationale: "announces a merger"}, nil,
	)
	s.classifier.EXPECT().ScoreSentiment(gomock.Any(), post.Body).Return(
		domain.Sentiment{Score: 78, Direction: domain.DirectionBullish}, nil,
	)
	s.classifier.EXPECT().Summarize(gomock.Any(), post.Body, 100).Return("Merger announced.", nil)
	s.source.EXPECT().UserKarma(gomock.Any(), "bob").Return(int64(1200), nil)

	var sent *domain.Notification
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg *domain.Notification) error {
			sent = msg
			return nil
		},
	)

	stats, err := watcher.RunCycle(context.Background())

	s.NoError(err)
	s.Equal(1, stats.Significant)
	s.Equal(1, stats.Notified)
	s.Require().NotNil(sent)
	s.Require().NotNil(sent.Classification)
	s.Equal(78, sent.Classification.Sentiment.Score)
	s.Equal("Merger announced.", sent.Classification.Summary)
	s.Equal("1200 karma", sent.SocialScore)
	s.True(s.seen.Has("ghi789"))
}

func (s *WatcherTestSuite) TestDuplicatePost_SkippedEntirely() {
	s.cfg.General = []string{"bob"}
	watcher := s.newWatcher()

	post := domain.Post{ID: "dup111", Author: "bob", Body: "text", CreatedAt: time.Now()}
	s.seen.Record("dup111", time.Now())

	s.expectCursor("u/bob")
	s.source.EXPECT().FetchUserPosts(gomock.Any(), "bob", gomock.Any()).Return([]domain.Post{post}, nil)
	// No classifier or notifier expectations: any call would fail the test.

	stats, err := watcher.RunCycle(context.Background())

	s.NoError(err)
	s.Equal(1, stats.Skipped)
	s.Equal(0, stats.Classified)
	s.Equal(0, stats.Notified)
}

func (s *WatcherTestSuite) TestClassifierFailure_PostRetriedNextCycle() {
	s.cfg.General = []string{"bob"}
	watcher := s.newWatcher()

	post := domain.Post{ID: "retry22", Author: "bob", Body: "breaking news", CreatedAt: time.Now()}

	// The cursor pointer is shared across both cycles, like a real store,
	// and the fetch honors the window the way the source does: only posts
	// strictly newer than since come back.
	cursor := &domain.PollCursor{SourceKey: "u/bob"}
	s.cursors.EXPECT().Get(gomock.Any(), "u/bob").Return(cursor, nil).Times(2)
	s.cursors.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	s.source.EXPECT().FetchUserPosts(gomock.Any(), "bob", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, since time.Time) ([]domain.Post, error) {
			if post.CreatedAt.After(since) {
				return []domain.Post{post}, nil
			}
			return nil, nil
		},
	).Times(2)

	// First cycle: the review fails; the post must not stay seen and the
	// cursor must not pass it.
	s.classifier.EXPECT().ReviewSignificance(gomock.Any(), post.Body).Return(
		domain.Significance{}, errors.New("model service unavailable"),
	)

	stats, err := watcher.RunCycle(context.Background())
	s.NoError(err)
	s.Equal(1, stats.Errors)
	s.False(s.seen.Has("retry22"))
	s.True(cursor.LastPostAt.Before(post.CreatedAt))

	// Second cycle: the window includes the post again and it succeeds.
	s.classifier.EXPECT().ReviewSignificance(gomock.Any(), post.Body).Return(
		domain.Significance{Significant: true, Rationale: "market moving"}, nil,
	)
	s.classifier.EXPECT().ScoreSentiment(gomock.Any(), post.Body).Return(
		domain.Sentiment{Score: 60, Direction: domain.DirectionBearish}, nil,
	)
	s.classifier.EXPECT().Summarize(gomock.Any(), post.Body, 100).Return("summary", nil)
	s.source.EXPECT().UserKarma(gomock.Any(), "bob").Return(int64(800), nil)
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

	stats, err = watcher.RunCycle(context.Background())
	s.NoError(err)
	s.Equal(1, stats.Notified)
	s.True(s.seen.Has("retry22"))
	s.Equal("retry22", cursor.LastPostID)
}

func (s *WatcherTestSuite) TestClassifierFailure_HoldsCursorForLaterPosts() {
	s.cfg.General = []string{"bob"}
	watcher := s.newWatcher()

	older := time.Now().Add(-10 * time.Minute)
	newer := time.Now()
	posts := []domain.Post{
		{ID: "fail1", Author: "bob", Body: "first", CreatedAt: older},
		{ID: "ok2", Author: "bob", Body: "second", CreatedAt: newer},
	}

	s.cursors.EXPECT().Get(gomock.Any(), "u/bob").Return(&domain.PollCursor{SourceKey: "u/bob"}, nil)
	s.source.EXPECT().FetchUserPosts(gomock.Any(), "bob", gomock.Any()).Return(posts, nil)

	s.classifier.EXPECT().ReviewSignificance(gomock.Any(), "first").Return(
		domain.Significance{}, errors.New("model service unavailable"),
	)
	s.classifier.EXPECT().ReviewSignificance(gomock.Any(), "second").Return(
		domain.Significance{Significant: true}, nil,
	)
	s.classifier.EXPECT().ScoreSentiment(gomock.Any(), "second").Return(
		domain.Sentiment{Score: 70, Direction: domain.DirectionBullish}, nil,
	)
	s.classifier.EXPECT().Summarize(gomock.Any(), "second", 100).Return("summary", nil)
	s.source.EXPECT().UserKarma(gomock.Any(), "bob").Return(int64(800), nil)
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

	var updated *domain.PollCursor
	s.cursors.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c *domain.PollCursor) error {
			updated = c
			return nil
		},
	)

	_, err := watcher.RunCycle(context.Background())

	s.NoError(err)
	s.False(s.seen.Has("fail1"))
	s.True(s.seen.Has("ok2"))
	s.Require().NotNil(updated)
	// A later success must not carry the cursor past the failed post.
	s.True(updated.LastPostAt.Before(older))
}

func (s *WatcherTestSuite) TestMalformedSentiment_NoNotification() {
	s.cfg.General = []string{"bob"}
	watcher := s.newWatcher()

	post := domain.Post{ID: "mal333", Author: "bob", Body: "odd post", CreatedAt: time.Now()}

	s.expectCursor("u/bob")
	s.source.EXPECT().FetchUserPosts(gomock.Any(), "bob", gomock.Any()).Return([]domain.Post{post}, nil)
	s.classifier.EXPECT().ReviewSignificance(gomock.Any(), post.Body).Return(
		domain.Significance{Significant: true}, nil,
	)
	s.classifier.EXPECT().ScoreSentiment(gomock.Any(), post.Body).Return(
		domain.Sentiment{}, errors.New("malformed model response"),
	)

	stats, err := watcher.RunCycle(context.Background())

	s.NoError(err)
	s.Equal(1, stats.Errors)
	s.Equal(0, stats.Notified)
	// Eligible again next cycle instead of being lost.
	s.False(s.seen.Has("mal333"))
}

func (s *WatcherTestSuite) TestNotifierFailure_NonFatal() {
	s.cfg.Reports = []string{"alice"}
	watcher := s.newWatcher()

	post := domain.Post{ID: "ntf444", Author: "alice", Body: "report", CreatedAt: time.Now()}

	s.expectCursor("u/alice")
	s.source.EXPECT().FetchUserPosts(gomock.Any(), "alice", gomock.Any()).Return([]domain.Post{post}, nil)
	s.source.EXPECT().UserKarma(gomock.Any(), "alice").Return(int64(100), nil)
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("telegram api status 502"))

	stats, err := watcher.RunCycle(context.Background())

	s.NoError(err)
	s.Equal(1, stats.Errors)
	s.Equal(0, stats.Notified)
	// Delivery is best-effort: the post is not retried.
	s.True(s.seen.Has("ntf444"))
}

func (s *WatcherTestSuite) TestFirstRun_FetchesFromProcessStart() {
	s.cfg.Reports = []string{"alice"}
	before := time.Now()
	watcher := s.newWatcher()
	after := time.Now()

	s.expectCursor("u/alice")
	s.source.EXPECT().FetchUserPosts(gomock.Any(), "alice", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, since time.Time) ([]domain.Post, error) {
			s.False(since.Before(before))
			s.False(since.After(after))
			return nil, nil
		},
	)

	_, err := watcher.RunCycle(context.Background())
	s.NoError(err)
}

func (s *WatcherTestSuite) TestExistingCursor_BoundsFetchWindow() {
	s.cfg.Reports = []string{"alice"}
	watcher := s.newWatcher()

	lastPostAt := time.Now().Add(-2 * time.Hour)
	s.cursors.EXPECT().Get(gomock.Any(), "u/alice").Return(
		&domain.PollCursor{SourceKey: "u/alice", LastPostAt: lastPostAt}, nil,
	)
	s.cursors.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	s.source.EXPECT().FetchUserPosts(gomock.Any(), "alice", lastPostAt).Return(nil, nil)

	_, err := watcher.RunCycle(context.Background())
	s.NoError(err)
}

func (s *WatcherTestSuite) TestCursorAdvancesToNewestPost() {
	s.cfg.Reports = []string{"alice"}
	watcher := s.newWatcher()

	older := time.Now().Add(-10 * time.Minute).Truncate(time.Second)
	newer := time.Now().Truncate(time.Second)
	posts := []domain.Post{
		{ID: "p1", Author: "alice", CreatedAt: older},
		{ID: "p2", Author: "alice", CreatedAt: newer},
	}

	s.cursors.EXPECT().Get(gomock.Any(), "u/alice").Return(&domain.PollCursor{SourceKey: "u/alice", LastPostAt: older.Add(-time.Hour)}, nil)
	s.source.EXPECT().FetchUserPosts(gomock.Any(), "alice", gomock.Any()).Return(posts, nil)
	s.source.EXPECT().UserKarma(gomock.Any(), "alice").Return(int64(100), nil).Times(2)
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	var updated *domain.PollCursor
	s.cursors.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c *domain.PollCursor) error {
			updated = c
			return nil
		},
	)

	_, err := watcher.RunCycle(context.Background())

	s.NoError(err)
	s.Require().NotNil(updated)
	s.Equal(newer, updated.LastPostAt)
	s.Equal("p2", updated.LastPostID)
	s.Equal(int64(2), updated.TotalProcessed)
}

func (s *WatcherTestSuite) TestFetchFailure_IsolatedPerAccount() {
	s.cfg.Reports = []string{"alice", "carol"}
	watcher := s.newWatcher()

	post := domain.Post{ID: "ok555", Author: "carol", CreatedAt: time.Now()}

	s.cursors.EXPECT().Get(gomock.Any(), "u/alice").Return(&domain.PollCursor{SourceKey: "u/alice"}, nil)
	s.source.EXPECT().FetchUserPosts(gomock.Any(), "alice", gomock.Any()).Return(nil, errors.New("unexpected status: 503"))

	s.expectCursor("u/carol")
	s.source.EXPECT().FetchUserPosts(gomock.Any(), "carol", gomock.Any()).Return([]domain.Post{post}, nil)
	s.source.EXPECT().UserKarma(gomock.Any(), "carol").Return(int64(100), nil)
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

	stats, err := watcher.RunCycle(context.Background())

	s.NoError(err)
	s.Equal(1, stats.Errors)
	s.Equal(1, stats.Notified)
}

func (s *WatcherTestSuite) TestSubreddit_ThresholdGating() {
	s.cfg.Subreddits = map[string]config.SubredditConfig{
		"wallstreetbets": {TargetFlair: "DD", MinKarma: 1000, SentimentThreshold: 50},
	}
	watcher := s.newWatcher()

	posts := []domain.Post{
		{ID: "sub1", Author: "lowkarma", Flair: "DD", Body: "thesis A", CreatedAt: time.Now()},
		{ID: "sub2", Author: "wrongflair", Flair: "Meme", Body: "joke", CreatedAt: time.Now()},
		{ID: "sub3", Author: "weakpost", Flair: "DD", Body: "thesis B", CreatedAt: time.Now()},
		{ID: "sub4", Author: "strongpost", Flair: "dd", Body: "thesis C", CreatedAt: time.Now()},
	}

	s.expectCursor("r/wallstreetbets")
	s.source.EXPECT().SearchSubreddit(gomock.Any(), "wallstreetbets", "DD", gomock.Any()).Return(posts, nil)

	s.source.EXPECT().UserKarma(gomock.Any(), "lowkarma").Return(int64(10), nil)
	s.source.EXPECT().UserKarma(gomock.Any(), "weakpost").Return(int64(5000), nil)
	s.source.EXPECT().UserKarma(gomock.Any(), "strongpost").Return(int64(5000), nil)

	s.classifier.EXPECT().ScoreSentiment(gomock.Any(), "thesis B").Return(
		domain.Sentiment{Score: 30, Direction: domain.DirectionBearish}, nil,
	)
	s.classifier.EXPECT().ScoreSentiment(gomock.Any(), "thesis C").Return(
		domain.Sentiment{Score: 85, Direction: domain.DirectionBullish}, nil,
	)
	s.classifier.EXPECT().Summarize(gomock.Any(), "thesis C", 100).Return("strong thesis", nil)

	var sent *domain.Notification
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg *domain.Notification) error {
			sent = msg
			return nil
		},
	)

	stats, err := watcher.RunCycle(context.Background())

	s.NoError(err)
	s.Equal(1, stats.Notified)
	s.Require().NotNil(sent)
	s.Equal("reddit: wallstreetbets", sent.Label)
	s.Equal("5000 karma", sent.SocialScore)

	// Below-threshold post stays seen; gated posts were never recorded.
	s.True(s.seen.Has("sub3"))
	s.True(s.seen.Has("sub4"))
	s.False(s.seen.Has("sub1"))
	s.False(s.seen.Has("sub2"))
}

func (s *WatcherTestSuite) TestSubredditScoringFailure_HoldsCursor() {
	s.cfg.Subreddits = map[string]config.SubredditConfig{
		"stocks": {TargetFlair: "News", MinKarma: 100, SentimentThreshold: 50},
	}
	watcher := s.newWatcher()

	older := time.Now().Add(-10 * time.Minute)
	newer := time.Now()
	posts := []domain.Post{
		{ID: "sfail1", Author: "u1", Flair: "News", Body: "thesis A", CreatedAt: older},
		{ID: "sok2", Author: "u2", Flair: "News", Body: "thesis B", CreatedAt: newer},
	}

	s.cursors.EXPECT().Get(gomock.Any(), "r/stocks").Return(&domain.PollCursor{SourceKey: "r/stocks"}, nil)
	s.source.EXPECT().SearchSubreddit(gomock.Any(), "stocks", "News", gomock.Any()).Return(posts, nil)
	s.source.EXPECT().UserKarma(gomock.Any(), "u1").Return(int64(500), nil)
	s.source.EXPECT().UserKarma(gomock.Any(), "u2").Return(int64(500), nil)

	s.classifier.EXPECT().ScoreSentiment(gomock.Any(), "thesis A").Return(
		domain.Sentiment{}, errors.New("model service unavailable"),
	)
	s.classifier.EXPECT().ScoreSentiment(gomock.Any(), "thesis B").Return(
		domain.Sentiment{Score: 90, Direction: domain.DirectionBullish}, nil,
	)
	s.classifier.EXPECT().Summarize(gomock.Any(), "thesis B", 100).Return("summary", nil)
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

	var updated *domain.PollCursor
	s.cursors.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c *domain.PollCursor) error {
			updated = c
			return nil
		},
	)

	_, err := watcher.RunCycle(context.Background())

	s.NoError(err)
	s.False(s.seen.Has("sfail1"))
	s.True(s.seen.Has("sok2"))
	s.Require().NotNil(updated)
	// A later success must not carry the cursor past the failed post.
	s.True(updated.LastPostAt.Before(older))
}

func (s *WatcherTestSuite) TestMaintain_EvictsAndFlushes() {
	watcher := s.newWatcher()

	now := time.Now()
	s.seen.Record("old", now.Add(-72*time.Hour))
	s.seen.Record("fresh", now)

	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)

	var flushed map[string]time.Time
	s.snapshots.EXPECT().Replace(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entries map[string]time.Time) error {
			flushed = entries
			return nil
		},
	)

	err := watcher.Maintain(context.Background())

	s.NoError(err)
	s.False(s.seen.Has("old"))
	s.True(s.seen.Has("fresh"))
	s.Require().NotNil(flushed)
	s.Len(flushed, 1)
	s.Contains(flushed, "fresh")
}

func (s *WatcherTestSuite) TestMaintain_FlushFailureSurfaced() {
	watcher := s.newWatcher()
	s.seen.Record("x", time.Now())

	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	err := watcher.Maintain(context.Background())

	s.Error(err)
	// In-memory state is untouched by the failed flush.
	s.True(s.seen.Has("x"))
}

func (s *WatcherTestSuite) TestRestoreSeen_DropsExpiredEntries() {
	watcher := s.newWatcher()
	now := time.Now()

	s.snapshots.EXPECT().LoadAll(gomock.Any()).Return(map[string]time.Time{
		"live":    now.Add(-time.Hour),
		"expired": now.Add(-100 * time.Hour),
	}, nil)

	err := watcher.RestoreSeen(context.Background())

	s.NoError(err)
	s.True(s.seen.Has("live"))
	s.False(s.seen.Has("expired"))
}

func (s *WatcherTestSuite) TestSendHeartbeat() {
	watcher := s.newWatcher()
	s.seen.Record("a", time.Now())

	var sent *domain.Notification
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg *domain.Notification) error {
			sent = msg
			return nil
		},
	)

	err := watcher.SendHeartbeat(context.Background())

	s.NoError(err)
	s.Require().NotNil(sent)
	s.Equal("heartbeat", sent.Label)
	s.Contains(sent.Post.Title, "1 seen posts")
}
