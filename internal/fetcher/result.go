package fetcher

import (
	"net/http"
	"time"

	"github.com/aleister1102/oerscout/internal/common"
)

// Error codes carried by a failed Result.
const (
	ErrCodeRobotsDisallowed = "ROBOTS_DISALLOWED"
	ErrCodeHTTPStatus       = "HTTP_ERROR"
	ErrCodeNetwork          = "NETWORK_ERROR"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeCancelled        = "CANCELLED"
)

// FetchOptions tunes a single Fetch call. Zero values use the fetcher defaults.
type FetchOptions struct {
	Method  string
	Headers map[string]string
	Accept  string
	// RateLimitKey overrides the hostname used to pick the token bucket.
	RateLimitKey string
	// SkipRobots bypasses the robots.txt check.
	SkipRobots bool
	Retries    int
	Timeout    time.Duration
}

// Result is the outcome of a fetch. Network failures and policy refusals are
// reported here rather than as Go errors.
type Result struct {
	OK          bool          `json:"ok"`
	Status      int           `json:"status"`
	Body        []byte        `json:"-"`
	Error       string        `json:"error,omitempty"`
	ErrorCode   string        `json:"error_code,omitempty"`
	URL         string        `json:"url"`
	FinalURL    string        `json:"final_url"`
	Redirected  bool          `json:"redirected"`
	ContentType string        `json:"content_type,omitempty"`
	Attempts    int           `json:"attempts"`
	Duration    time.Duration `json:"duration"`
	Truncated   bool          `json:"truncated,omitempty"`
}

// Text returns the body as a string.
func (r *Result) Text() string {
	return string(r.Body)
}

// Err converts a failed result into a typed error, or nil when OK.
func (r *Result) Err() error {
	if r.OK {
		return nil
	}
	switch r.ErrorCode {
	case ErrCodeRobotsDisallowed:
		return common.NewPolicyError(r.URL, r.Error)
	case ErrCodeHTTPStatus:
		return common.NewHTTPErrorWithURL(r.Status, http.StatusText(r.Status), r.URL)
	case ErrCodeInvalidURL:
		return common.NewValidationError("url", r.URL, r.Error)
	default:
		return common.NewNetworkError(r.URL, r.Error, nil)
	}
}

func failedResult(rawURL, code, msg string) *Result {
	return &Result{
		OK:        false,
		Error:     msg,
		ErrorCode: code,
		URL:       rawURL,
		FinalURL:  rawURL,
	}
}
