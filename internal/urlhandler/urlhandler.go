package urlhandler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeURL normalizes a URL string, ensuring it has a scheme, lowercase host, and no fragment.
func NormalizeURL(rawURL string) (string, error) {
	trimmedURL := strings.TrimSpace(rawURL)
	if trimmedURL == "" {
		return "", errors.New("URL is empty or only whitespace")
	}

	// Add scheme if missing
	if !strings.Contains(trimmedURL, "://") && !strings.HasPrefix(trimmedURL, "//") {
		trimmedURL = "https://" + trimmedURL
	}

	parsedURL, err := url.Parse(trimmedURL)
	if err != nil {
		return "", fmt.Errorf("could not parse URL '%s': %w", trimmedURL, err)
	}

	if parsedURL.Host == "" {
		return "", errors.New("URL lacks a valid hostname")
	}

	parsedURL.Host = strings.ToLower(parsedURL.Host)
	parsedURL.Fragment = ""
	parsedURL.RawFragment = ""

	return parsedURL.String(), nil
}

// ResolveURL resolves a (possibly relative) href against a base URL string. Absolute
// hrefs are returned unchanged apart from whitespace trimming. Fragments are kept so
// in-page anchors stay distinct.
func ResolveURL(href, base string) (string, error) {
	trimmedHref := strings.TrimSpace(href)
	if trimmedHref == "" {
		return "", errors.New("href is empty")
	}

	ref, err := url.Parse(trimmedHref)
	if err != nil {
		return "", fmt.Errorf("error parsing href '%s': %w", trimmedHref, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}

	if strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("cannot process relative URL '%s' without a base URL", trimmedHref)
	}
	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("error parsing base '%s': %w", base, err)
	}

	return baseURL.ResolveReference(ref).String(), nil
}

// MustResolve resolves href against base and falls back to href on error.
func MustResolve(href, base string) string {
	resolved, err := ResolveURL(href, base)
	if err != nil {
		return strings.TrimSpace(href)
	}
	return resolved
}

// Hostname returns the lowercase hostname of rawURL with any "www." prefix removed.
func Hostname(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("could not parse URL '%s': %w", rawURL, err)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("URL has no hostname component: %s", rawURL)
	}
	return strings.TrimPrefix(host, "www."), nil
}

// SameHost reports whether two URLs share a hostname, ignoring "www.".
func SameHost(a, b string) bool {
	ha, errA := Hostname(a)
	hb, errB := Hostname(b)
	return errA == nil && errB == nil && ha == hb
}

// RegistrableDomain returns the eTLD+1 of rawURL's host, e.g. "python.org" for
// "https://docs.python.org/3/".
func RegistrableDomain(rawURL string) (string, error) {
	host, err := Hostname(rawURL)
	if err != nil {
		return "", err
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, nil
	}
	return domain, nil
}

// IsExternal reports whether href, resolved against base, points to a different host.
func IsExternal(href, base string) bool {
	resolved, err := ResolveURL(href, base)
	if err != nil {
		return false
	}
	return !SameHost(resolved, base)
}

// ValidateURLFormat validates URL format using net/url parsing (for config validation)
func ValidateURLFormat(rawURL string) error {
	trimmedURL := strings.TrimSpace(rawURL)
	if trimmedURL == "" {
		return errors.New("URL is empty")
	}

	parsed, err := url.ParseRequestURI(trimmedURL)
	if err != nil {
		return fmt.Errorf("invalid URL format '%s': %w", trimmedURL, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid URL format '%s': missing host", trimmedURL)
	}

	return nil
}
