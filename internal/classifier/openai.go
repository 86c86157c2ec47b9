// Package classifier wraps an OpenAI-compatible chat-completions endpoint
// behind the three fixed analysis calls the watcher needs: a market-moving
// significance review, a rubric-based sentiment score and a bounded summary.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"market_watcher/internal/domain"
)

var (
	// ErrUnavailable is returned after retries against the model service
	// are exhausted. The caller leaves the post unrecorded so it is
	// retried on a later cycle.
	ErrUnavailable = errors.New("classifier: model service unavailable")

	// ErrMalformedResponse is returned when the model output violates the
	// response contract. A malformed result is never usable; the raw
	// payload is logged for diagnosis.
	ErrMalformedResponse = errors.New("classifier: malformed model response")
)

// Config holds classifier client configuration.
type Config struct {
	BaseURL            string
	APIKey             string
	Model              string
	MaxTokens          int
	Temperature        float64
	SentimentCharLimit int
	Timeout            time.Duration
	MaxAttempts        int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
}

// Client calls the model service. Stateless between calls.
type Client struct {
	httpClient         *http.Client
	baseURL            string
	apiKey             string
	model              string
	maxTokens          int
	temperature        float64
	sentimentCharLimit int
	maxAttempts        int
	initialBackoff     time.Duration
	maxBackoff         time.Duration
	logger             *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	sentimentLimit := cfg.SentimentCharLimit
	if sentimentLimit <= 0 {
		sentimentLimit = 100
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:            strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:             cfg.APIKey,
		model:              cfg.Model,
		maxTokens:          cfg.MaxTokens,
		temperature:        cfg.Temperature,
		sentimentCharLimit: sentimentLimit,
		maxAttempts:        cfg.MaxAttempts,
		initialBackoff:     cfg.InitialBackoff,
		maxBackoff:         cfg.MaxBackoff,
		logger:             logger.With("component", "classifier"),
	}
}

// ReviewSignificance asks the model whether the post is market-moving. The
// response is expected to start with a YES or NO token; anything else is
// treated as not significant with the raw response kept as rationale, so a
// malformed verdict is never escalated.
func (c *Client) ReviewSignificance(ctx context.Context, postText string) (domain.Significance, error) {
	prompt := renderPrompt(significancePrompt, map[string]string{"content": postText})

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return domain.Significance{}, err
	}

	return parseSignificance(raw), nil
}

// ScoreSentiment asks the model for the rubric score. The response must be
// a JSON object with exactly the fields "sentiment" (integer 0-100) and
// "direction" ("bullish" or "bearish"); anything else fails with
// ErrMalformedResponse.
func (c *Client) ScoreSentiment(ctx context.Context, postText string) (domain.Sentiment, error) {
	prompt := renderPrompt(sentimentPrompt, map[string]string{
		"content":         postText,
		"character_limit": strconv.Itoa(c.sentimentCharLimit),
	})

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return domain.Sentiment{}, err
	}

	sentiment, err := parseSentiment(raw)
	if err != nil {
		c.logger.Error("sentiment response rejected", "raw", raw, "error", err)
		return domain.Sentiment{}, err
	}

	return sentiment, nil
}

// Summarize asks for a summary of at most characterLimit characters.
// Summarization is best-effort: an overlong response is truncated rather
// than rejected.
func (c *Client) Summarize(ctx context.Context, postText string, characterLimit int) (string, error) {
	prompt := renderPrompt(summaryPrompt, map[string]string{
		"content":         postText,
		"character_limit": strconv.Itoa(characterLimit),
	})

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	return truncate(strings.TrimSpace(raw), characterLimit), nil
}

func parseSignificance(raw string) domain.Significance {
	trimmed := strings.TrimSpace(raw)
	token, rest, _ := strings.Cut(trimmed, " ")
	token = strings.ToUpper(strings.Trim(token, ".,:;-"))
	rationale := strings.TrimSpace(strings.TrimLeft(rest, " -–:"))

	switch token {
	case "YES":
		return domain.Significance{Significant: true, Rationale: rationale}
	case "NO":
		return domain.Significance{Significant: false, Rationale: rationale}
	default:
		// Ambiguous verdicts default to not significant; keep the raw
		// response so the decision can be audited.
		return domain.Significance{Significant: false, Rationale: trimmed}
	}
}

func parseSentiment(raw string) (domain.Sentiment, error) {
	cleaned := stripCodeFence(raw)

	var payload struct {
		Sentiment *int    `json:"sentiment"`
		Direction *string `json:"direction"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return domain.Sentiment{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.Sentiment == nil || payload.Direction == nil {
		return domain.Sentiment{}, fmt.Errorf("%w: missing sentiment or direction field", ErrMalformedResponse)
	}
	if *payload.Sentiment < 0 || *payload.Sentiment > 100 {
		return domain.Sentiment{}, fmt.Errorf("%w: sentiment %d out of range", ErrMalformedResponse, *payload.Sentiment)
	}

	direction := strings.ToLower(strings.TrimSpace(*payload.Direction))
	if direction != domain.DirectionBullish && direction != domain.DirectionBearish {
		return domain.Sentiment{}, fmt.Errorf("%w: unknown direction %q", ErrMalformedResponse, *payload.Direction)
	}

	return domain.Sentiment{Score: *payload.Sentiment, Direction: direction}, nil
}

// stripCodeFence removes a markdown code fence some models wrap JSON in.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete sends one prompt and returns the raw completion text, retrying
// transient failures with exponential backoff.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		text, retryable, err := c.doRequest(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !retryable || attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("model call failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(backoff):
		}
	}

	return "", fmt.Errorf("%w: after %d attempts: %v", ErrUnavailable, c.maxAttempts, lastErr)
}

func (c *Client) doRequest(ctx context.Context, prompt string) (text string, retryable bool, err error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", false, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", retryable, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", false, fmt.Errorf("response has no choices")
	}

	return chatResp.Choices[0].Message.Content, false, nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}
