package urlhandler

import (
	"strings"
	"sync"
)

// DomainAllowlist holds approved apex domains. A URL is allowed when its hostname equals
// an allowlisted domain or is a subdomain of one. Matching is case-insensitive and
// ignores a leading "www.".
type DomainAllowlist struct {
	mu      sync.RWMutex
	domains []string
}

// NewDomainAllowlist normalizes the given apex domains.
func NewDomainAllowlist(domains []string) *DomainAllowlist {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, "www.")
		d = strings.TrimSuffix(d, ".")
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	return &DomainAllowlist{domains: normalized}
}

// Domains returns the normalized apex domains.
func (a *DomainAllowlist) Domains() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.domains...)
}

// IsEmpty reports whether no domain is configured.
func (a *DomainAllowlist) IsEmpty() bool {
	if a == nil {
		return true
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.domains) == 0
}

// IsHostAllowed checks a bare hostname.
func (a *DomainAllowlist) IsHostAllowed(host string) bool {
	if a == nil {
		return false
	}
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, d := range a.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IsAllowed checks the hostname of rawURL. Unparseable URLs are not allowed.
func (a *DomainAllowlist) IsAllowed(rawURL string) bool {
	host, err := Hostname(rawURL)
	if err != nil {
		return false
	}
	return a.IsHostAllowed(host)
}

// Add appends a domain at runtime, used when dynamic discovery approves a new source.
func (a *DomainAllowlist) Add(domain string) {
	for _, d := range NewDomainAllowlist([]string{domain}).domains {
		if a.IsHostAllowed(d) {
			continue
		}
		a.mu.Lock()
		a.domains = append(a.domains, d)
		a.mu.Unlock()
	}
}
