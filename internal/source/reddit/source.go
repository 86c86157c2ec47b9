// Package reddit fetches new submissions from Reddit's public JSON
// listing API.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"market_watcher/internal/domain"
)

const SourceName = "reddit"

// Config holds Reddit source configuration.
type Config struct {
	BaseURL        string
	UserAgent      string
	PageLimit      int
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source implements service.Source against the Reddit JSON API.
type Source struct {
	httpClient     *http.Client
	baseURL        string
	userAgent      string
	pageLimit      int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new Reddit source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		userAgent:      cfg.UserAgent,
		pageLimit:      cfg.PageLimit,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceName),
	}
}

// Name returns the source identifier.
func (s *Source) Name() string {
	return SourceName
}

// FetchUserPosts returns the user's submissions newer than since, oldest
// first. One page per call; the cursor makes the fetch restartable.
func (s *Source) FetchUserPosts(ctx context.Context, username string, since time.Time) ([]domain.Post, error) {
	endpoint := fmt.Sprintf("%s/user/%s/submitted.json?sort=new&limit=%d",
		s.baseURL, url.PathEscape(username), s.pageLimit)

	listing, err := s.fetchListing(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", username, err)
	}

	posts := s.transform(listing, since)
	s.logger.Debug("fetched user posts",
		"user", username,
		"fetched", len(listing.Data.Children),
		"new", len(posts),
	)
	return posts, nil
}

// SearchSubreddit returns new submissions in the subreddit carrying the
// given flair, newer than since.
func (s *Source) SearchSubreddit(ctx context.Context, subreddit, flair string, since time.Time) ([]domain.Post, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("flair:%q", flair))
	query.Set("restrict_sr", "1")
	query.Set("sort", "new")
	query.Set("t", "week")
	query.Set("limit", fmt.Sprintf("%d", s.pageLimit))

	endpoint := fmt.Sprintf("%s/r/%s/search.json?%s",
		s.baseURL, url.PathEscape(subreddit), query.Encode())

	listing, err := s.fetchListing(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("search subreddit %s: %w", subreddit, err)
	}

	posts := s.transform(listing, since)
	s.logger.Debug("searched subreddit",
		"subreddit", subreddit,
		"flair", flair,
		"fetched", len(listing.Data.Children),
		"new", len(posts),
	)
	return posts, nil
}

// UserKarma looks up the account's link karma. Best-effort for callers:
// used for the social score line and the subreddit min-karma gate.
func (s *Source) UserKarma(ctx context.Context, username string) (int64, error) {
	endpoint := fmt.Sprintf("%s/user/%s/about.json", s.baseURL, url.PathEscape(username))

	var about aboutResponse
	if err := s.getJSON(ctx, endpoint, &about); err != nil {
		return 0, fmt.Errorf("fetch user about %s: %w", username, err)
	}
	return about.Data.LinkKarma, nil
}

func (s *Source) fetchListing(ctx context.Context, endpoint string) (*Listing, error) {
	var listing *Listing
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		listing = &Listing{}
		err = s.getJSON(ctx, endpoint, listing)
		if err == nil {
			return listing, nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

// transform converts listing children to domain posts, keeping only those
// strictly newer than since, ordered oldest first so cursors advance
// monotonically.
func (s *Source) transform(listing *Listing, since time.Time) []domain.Post {
	posts := make([]domain.Post, 0, len(listing.Data.Children))

	for _, child := range listing.Data.Children {
		sub := child.Data
		createdAt := time.Unix(int64(sub.CreatedUTC), 0).UTC()
		if !createdAt.After(since) {
			continue
		}

		postURL := sub.URL
		if sub.Permalink != "" {
			postURL = s.baseURL + sub.Permalink
		}

		posts = append(posts, domain.Post{
			ID:        sub.ID,
			Author:    sub.Author,
			Title:     sub.Title,
			Body:      sub.SelfText,
			URL:       postURL,
			Subreddit: sub.Subreddit,
			Flair:     sub.LinkFlairText,
			CreatedAt: createdAt,
		})
	}

	// Listings arrive newest first.
	for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
		posts[i], posts[j] = posts[j], posts[i]
	}

	return posts
}
