package config

import "time"

// RetrievalConfig controls node content retrieval.
type RetrievalConfig struct {
	BatchDelayMs       int `json:"batch_delay_ms,omitempty" yaml:"batch_delay_ms,omitempty" validate:"omitempty,min=0"`
	BatchTimeoutSecs   int `json:"batch_timeout_secs,omitempty" yaml:"batch_timeout_secs,omitempty" validate:"omitempty,min=1"`
	Concurrency        int `json:"concurrency,omitempty" yaml:"concurrency,omitempty" validate:"omitempty,min=1"`
	MinParagraphLength int `json:"min_paragraph_length,omitempty" yaml:"min_paragraph_length,omitempty" validate:"omitempty,min=0"`
}

func NewDefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		BatchDelayMs:       DefaultRetrievalBatchDelayMs,
		BatchTimeoutSecs:   DefaultRetrievalBatchTimeoutSecs,
		Concurrency:        DefaultRetrievalConcurrency,
		MinParagraphLength: DefaultRetrievalMinParagraphLength,
	}
}

// BatchDelay returns the pause between retrieval batches.
func (c RetrievalConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

// BatchTimeout returns the timeout applied to each retrieval batch.
func (c RetrievalConfig) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutSecs) * time.Second
}
