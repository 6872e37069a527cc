package config

import "time"

// FetcherConfig controls the polite HTTP fetcher.
type FetcherConfig struct {
	BotToken              string `json:"bot_token,omitempty" yaml:"bot_token,omitempty"`
	BurstSize             int    `json:"burst_size,omitempty" yaml:"burst_size,omitempty" validate:"omitempty,min=1"`
	DefaultRatePerMinute  int    `json:"default_rate_per_minute,omitempty" yaml:"default_rate_per_minute,omitempty" validate:"omitempty,min=1"`
	MaxBodyMB             int    `json:"max_body_mb,omitempty" yaml:"max_body_mb,omitempty" validate:"omitempty,min=1"`
	RespectRobotsTxt      bool   `json:"respect_robots_txt" yaml:"respect_robots_txt"`
	Retries               int    `json:"retries,omitempty" yaml:"retries,omitempty" validate:"omitempty,min=1"`
	RetryDelayMs          int    `json:"retry_delay_ms,omitempty" yaml:"retry_delay_ms,omitempty" validate:"omitempty,min=0"`
	RobotsCacheTTLMinutes int    `json:"robots_cache_ttl_minutes,omitempty" yaml:"robots_cache_ttl_minutes,omitempty" validate:"omitempty,min=1"`
	TimeoutSecs           int    `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty" validate:"omitempty,min=1"`
	UserAgent             string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
}

func NewDefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		BotToken:              DefaultFetcherBotToken,
		BurstSize:             DefaultFetcherBurstSize,
		DefaultRatePerMinute:  DefaultFetcherRatePerMinute,
		MaxBodyMB:             DefaultFetcherMaxBodyMB,
		RespectRobotsTxt:      true,
		Retries:               DefaultFetcherRetries,
		RetryDelayMs:          DefaultFetcherRetryDelayMs,
		RobotsCacheTTLMinutes: DefaultFetcherRobotsCacheTTLMinutes,
		TimeoutSecs:           DefaultFetcherTimeoutSecs,
		UserAgent:             DefaultFetcherUserAgent,
	}
}

// Timeout returns the per-attempt timeout.
func (c FetcherConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// RetryDelay returns the backoff base delay.
func (c FetcherConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// RobotsCacheTTL returns how long robots.txt results are cached.
func (c FetcherConfig) RobotsCacheTTL() time.Duration {
	return time.Duration(c.RobotsCacheTTLMinutes) * time.Minute
}
