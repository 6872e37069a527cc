package fetcher

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/temoto/robotstxt"
)

// RobotsResult is the outcome of a robots.txt check for one origin.
type RobotsResult struct {
	Allowed    bool          `json:"allowed"`
	CrawlDelay time.Duration `json:"crawl_delay,omitempty"`
	Sitemaps   []string      `json:"sitemaps"`
	// Checked is false when robots.txt could not be retrieved and the result
	// fell back to allowed.
	Checked bool   `json:"checked"`
	Error   string `json:"error,omitempty"`
}

// Status maps the result onto the persisted robots status.
func (r RobotsResult) Status() models.RobotsStatus {
	switch {
	case !r.Checked:
		return models.RobotsUnknown
	case r.Allowed:
		return models.RobotsAllowed
	default:
		return models.RobotsDisallowed
	}
}

// CrawlDelayPerMinute converts a Crawl-delay into a requests-per-minute ceiling:
// floor(60/delay), at least 1. It returns 0 when delay is not positive.
func CrawlDelayPerMinute(delay time.Duration) int {
	if delay <= 0 {
		return 0
	}
	perMinute := int(math.Floor(60 / delay.Seconds()))
	if perMinute < 1 {
		perMinute = 1
	}
	return perMinute
}

// ParseRobots evaluates a robots.txt body for botToken. Two blocks are active: the
// "*" block and any block whose user-agent is a prefix of the bot token. Only a
// blanket rule counts: the site is refused when an active block literally says
// "Disallow: /" and does not also say "Allow: /". Path and pattern rules such as
// "/private", "/*" or "/$" leave the site allowed. Crawl-delay comes from the most
// specific matching group.
func ParseRobots(body []byte, botToken string) (RobotsResult, error) {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return RobotsResult{Allowed: true, Sitemaps: []string{}}, common.WrapError(err, "failed to parse robots.txt")
	}

	result := RobotsResult{
		Allowed:  true,
		Sitemaps: append([]string{}, data.Sitemaps...),
		Checked:  true,
	}
	if group := data.FindGroup(botToken); group != nil {
		result.CrawlDelay = group.CrawlDelay
	}

	token := strings.ToLower(strings.TrimSpace(botToken))
	for agent, rules := range blanketRules(body) {
		active := agent == "*" || (token != "" && strings.HasPrefix(token, agent))
		if active && rules.disallowRoot && !rules.allowRoot {
			result.Allowed = false
			break
		}
	}
	return result, nil
}

type rootRules struct {
	disallowRoot bool
	allowRoot    bool
}

// blanketRules records, per lowercased user-agent, whether its rules literally
// name "/" in a Disallow or Allow line. Successive User-agent lines share the
// rules that follow them; blocks naming the same agent are merged.
func blanketRules(body []byte) map[string]*rootRules {
	out := make(map[string]*rootRules)
	var (
		agents     []string
		inAgentRun bool
	)
	for _, line := range strings.Split(string(body), "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent", "useragent":
			if !inAgentRun {
				agents = agents[:0]
			}
			inAgentRun = true
			agent := strings.ToLower(value)
			agents = append(agents, agent)
			if out[agent] == nil {
				out[agent] = &rootRules{}
			}
		case "disallow", "allow":
			inAgentRun = false
			if value != "/" {
				continue
			}
			for _, agent := range agents {
				if key == "disallow" {
					out[agent].disallowRoot = true
				} else {
					out[agent].allowRoot = true
				}
			}
		default:
			inAgentRun = false
		}
	}
	return out
}

func robotsKey(rawURL string) (string, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", "", common.NewValidationError("url", rawURL, "absolute URL required")
	}
	origin := strings.ToLower(parsed.Scheme + "://" + parsed.Host)
	return origin, strings.ToLower(parsed.Hostname()), nil
}

// CheckRobots returns the robots.txt verdict for rawURL's origin. Results are
// cached per origin; a failed robots.txt retrieval is not cached and fails open.
func (f *Fetcher) CheckRobots(ctx context.Context, rawURL string) RobotsResult {
	origin, host, err := robotsKey(rawURL)
	if err != nil {
		return RobotsResult{Allowed: true, Sitemaps: []string{}, Error: err.Error()}
	}

	result, err := f.robots.GetOrRefresh(ctx, origin, func(ctx context.Context) (RobotsResult, error) {
		return f.loadRobots(ctx, origin, host)
	})
	if err != nil {
		f.logger.Warn().
			Str("action", "check_robots").
			Str("url", origin+"/robots.txt").
			Err(err).
			Msg("Robots check failed, proceeding as allowed (unverified crawl permission)")
		return RobotsResult{Allowed: true, Sitemaps: []string{}, Error: err.Error()}
	}
	return result
}

func (f *Fetcher) loadRobots(ctx context.Context, origin, host string) (RobotsResult, error) {
	robotsURL := origin + "/robots.txt"

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return RobotsResult{}, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return RobotsResult{}, common.NewNetworkError(robotsURL, "robots.txt request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode != http.StatusNotFound {
			f.logger.Warn().
				Str("action", "check_robots").
				Str("url", robotsURL).
				Int("status", resp.StatusCode).
				Msg("Unexpected robots.txt status, treating as allowed")
		}
		return RobotsResult{Allowed: true, Sitemaps: []string{}, Checked: true}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return RobotsResult{}, common.NewNetworkError(robotsURL, "failed to read robots.txt", err)
	}

	result, err := ParseRobots(body, f.botToken)
	if err != nil {
		f.logger.Warn().Str("action", "check_robots").Str("url", robotsURL).Err(err).Msg("Malformed robots.txt, treating as allowed")
		return RobotsResult{Allowed: true, Sitemaps: []string{}, Checked: true}, nil
	}

	if perMinute := CrawlDelayPerMinute(result.CrawlDelay); perMinute > 0 {
		f.limiter.ApplyCeiling(host, perMinute)
		f.logger.Debug().
			Str("domain", host).
			Dur("crawl_delay", result.CrawlDelay).
			Int("per_minute", perMinute).
			Msg("Applied robots.txt crawl-delay")
	}

	f.logger.Debug().Str("url", robotsURL).Bool("allowed", result.Allowed).Msg("Robots.txt checked")
	return result, nil
}
