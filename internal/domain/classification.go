package domain

import "time"

// Sentiment directions as the model is instructed to emit them.
const (
	DirectionBullish = "bullish"
	DirectionBearish = "bearish"
)

// Significance is the verdict of the market-moving review step.
type Significance struct {
	Significant bool   `json:"significant"`
	Rationale   string `json:"rationale"`
}

// Sentiment holds the rubric score (0-100) and market direction.
type Sentiment struct {
	Score     int    `json:"score"`
	Direction string `json:"direction"`
}

// Classification is the full model output for a post. Produced once,
// never mutated afterward.
type Classification struct {
	Significance Significance `json:"significance"`
	Sentiment    Sentiment    `json:"sentiment"`
	Summary      string       `json:"summary"`
}

// Notification is built at send time for each qualifying post.
// Classification is nil for direct-forwarded report posts.
type Notification struct {
	Label          string          `json:"label"` // e.g. "reddit: report"
	Post           Post            `json:"post"`
	Classification *Classification `json:"classification,omitempty"`
	SocialScore    string          `json:"social_score,omitempty"`
	SentAt         time.Time       `json:"sent_at"`
}
