package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Reddit   RedditConfig   `yaml:"reddit"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Telegram TelegramConfig `yaml:"telegram"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Watch    WatchConfig    `yaml:"watch"`
	LogLevel string         `yaml:"log_level"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type RedditConfig struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	PageLimit int           `yaml:"page_limit"`
	Timeout   time.Duration `yaml:"timeout"`
	Retry     RetryConfig   `yaml:"retry"`
}

type OpenAIConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	Retry       RetryConfig   `yaml:"retry"`
}

type TelegramConfig struct {
	Enabled  bool          `yaml:"enabled"`
	APIURL   string        `yaml:"api_url"`
	BotToken string        `yaml:"bot_token"`
	ChatID   string        `yaml:"chat_id"`
	Timeout  time.Duration `yaml:"timeout"`
}

type RabbitMQConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type SubredditConfig struct {
	TargetFlair        string `yaml:"target_flair"`
	MinKarma           int64  `yaml:"min_karma"`
	SentimentThreshold int    `yaml:"sentiment_threshold"`
}

type WatchConfig struct {
	PollInterval        time.Duration              `yaml:"poll_interval"`
	MaintenanceInterval time.Duration              `yaml:"maintenance_interval"`
	HeartbeatInterval   time.Duration              `yaml:"heartbeat_interval"`
	RetentionWindow     time.Duration              `yaml:"retention_window"`
	LookbackWindow      time.Duration              `yaml:"lookback_window"`
	SentimentCharLimit  int                        `yaml:"sentiment_char_limit"`
	SummaryCharLimit    int                        `yaml:"summary_char_limit"`
	Reports             []string                   `yaml:"reports"`
	General             []string                   `yaml:"general"`
	Subreddits          map[string]SubredditConfig `yaml:"subreddits"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Reddit.BaseURL == "" {
		c.Reddit.BaseURL = "https://www.reddit.com"
	}
	if c.Reddit.UserAgent == "" {
		c.Reddit.UserAgent = "MarketWatcher/1.0"
	}
	if c.Reddit.PageLimit == 0 {
		c.Reddit.PageLimit = 25
	}
	if c.Reddit.Timeout == 0 {
		c.Reddit.Timeout = 30 * time.Second
	}
	c.Reddit.Retry.setDefaults()

	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.MaxTokens == 0 {
		c.OpenAI.MaxTokens = 300
	}
	if c.OpenAI.Temperature == 0 {
		c.OpenAI.Temperature = 0.7
	}
	if c.OpenAI.Timeout == 0 {
		c.OpenAI.Timeout = 60 * time.Second
	}
	c.OpenAI.Retry.setDefaults()

	if c.Telegram.APIURL == "" {
		c.Telegram.APIURL = "https://api.telegram.org"
	}
	if c.Telegram.Timeout == 0 {
		c.Telegram.Timeout = 15 * time.Second
	}

	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "market_watcher"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "alerts"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "post_alerts"
	}

	if c.Watch.PollInterval == 0 {
		c.Watch.PollInterval = time.Minute
	}
	if c.Watch.MaintenanceInterval == 0 {
		c.Watch.MaintenanceInterval = time.Hour
	}
	if c.Watch.HeartbeatInterval == 0 {
		c.Watch.HeartbeatInterval = 24 * time.Hour
	}
	if c.Watch.RetentionWindow == 0 {
		c.Watch.RetentionWindow = 48 * time.Hour
	}
	if c.Watch.LookbackWindow == 0 {
		c.Watch.LookbackWindow = 7 * 24 * time.Hour
	}
	if c.Watch.SentimentCharLimit == 0 {
		c.Watch.SentimentCharLimit = 100
	}
	if c.Watch.SummaryCharLimit == 0 {
		c.Watch.SummaryCharLimit = 100
	}
	for name, sub := range c.Watch.Subreddits {
		if sub.TargetFlair == "" {
			sub.TargetFlair = "DD"
		}
		if sub.MinKarma == 0 {
			sub.MinKarma = 1000
		}
		if sub.SentimentThreshold == 0 {
			sub.SentimentThreshold = 50
		}
		c.Watch.Subreddits[name] = sub
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (r *RetryConfig) setDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 3
	}
	if r.InitialBackoff == 0 {
		r.InitialBackoff = 1 * time.Second
	}
	if r.MaxBackoff == 0 {
		r.MaxBackoff = 30 * time.Second
	}
}

// Validate rejects partially-configured states at startup.
func (c *Config) Validate() error {
	if len(c.Watch.Reports) == 0 && len(c.Watch.General) == 0 && len(c.Watch.Subreddits) == 0 {
		return fmt.Errorf("watch: no report accounts, general accounts or subreddits configured")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai: api_key is required")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram: bot_token is required when enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram: chat_id is required when enabled")
		}
	}
	if c.RabbitMQ.Enabled && c.RabbitMQ.URL == "" {
		return fmt.Errorf("rabbitmq: url is required when enabled")
	}
	if c.Watch.PollInterval <= 0 || c.Watch.MaintenanceInterval <= 0 || c.Watch.HeartbeatInterval <= 0 {
		return fmt.Errorf("watch: intervals must be positive")
	}
	if c.Watch.RetentionWindow <= 0 || c.Watch.LookbackWindow <= 0 {
		return fmt.Errorf("watch: retention_window and lookback_window must be positive")
	}
	if c.Watch.SentimentCharLimit <= 0 || c.Watch.SummaryCharLimit <= 0 {
		return fmt.Errorf("watch: character limits must be positive")
	}
	for name, sub := range c.Watch.Subreddits {
		if sub.SentimentThreshold < 0 || sub.SentimentThreshold > 100 {
			return fmt.Errorf("watch: subreddit %q: sentiment_threshold must be in [0,100]", name)
		}
	}
	return nil
}
