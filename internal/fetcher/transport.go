package fetcher

import (
	"io"
	"net/http"
	"strings"
)

// politeTransport routes requests made by third-party clients through the
// fetcher's robots check, rate limiter and retry loop.
type politeTransport struct {
	f *Fetcher
}

// Transport returns an http.RoundTripper that applies the same politeness policy
// as Fetch, including the fetcher's User-Agent. Redirects are left to the calling
// client.
func (f *Fetcher) Transport() http.RoundTripper {
	return &politeTransport{f: f}
}

func (t *politeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f := t.f
	ctx := req.Context()
	rawURL := req.URL.String()

	if f.respectRobots && !strings.HasSuffix(req.URL.Path, "/robots.txt") {
		if robots := f.CheckRobots(ctx, rawURL); !robots.Allowed {
			f.logger.Warn().Str("action", "fetch").Str("url", rawURL).Msg("Blocked by robots.txt")
			return forbiddenResponse(req), nil
		}
	}

	req = req.Clone(ctx)
	req.Header.Set("User-Agent", f.userAgent)

	resp, _, err := f.send(ctx, req, domainKey(req.URL), f.retries, f.timeout, f.base.RoundTrip)
	return resp, err
}

func forbiddenResponse(req *http.Request) *http.Response {
	return &http.Response{
		Status:        "403 Forbidden",
		StatusCode:    http.StatusForbidden,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:          io.NopCloser(strings.NewReader("blocked by robots.txt")),
		ContentLength: int64(len("blocked by robots.txt")),
		Request:       req,
	}
}
