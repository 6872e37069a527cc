package urlhandler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainAllowlist_IsAllowed(t *testing.T) {
	allow := NewDomainAllowlist([]string{"python.org", "WWW.OpenStax.org", "ocw.mit.edu"})

	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{"subdomain of apex", "https://docs.python.org/3/tutorial/", true},
		{"apex itself", "https://python.org/", true},
		{"www prefix stripped", "https://www.python.org/about", true},
		{"case-insensitive host", "https://DOCS.PYTHON.ORG/3/", true},
		{"allowlist entry with www", "https://openstax.org/books", true},
		{"lookalike suffix is rejected", "https://evil-python.org/", false},
		{"lookalike prefix is rejected", "https://python.org.evil.com/", false},
		{"deeper allowlist entry", "https://ocw.mit.edu/courses/", true},
		{"parent of allowlist entry", "https://mit.edu/", false},
		{"unparseable", "://", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, allow.IsAllowed(tt.url))
		})
	}
}

func TestDomainAllowlist_Add(t *testing.T) {
	allow := NewDomainAllowlist(nil)
	assert.True(t, allow.IsEmpty())

	allow.Add("developer.mozilla.org")
	allow.Add("developer.mozilla.org")
	assert.Equal(t, []string{"developer.mozilla.org"}, allow.Domains())
	assert.True(t, allow.IsAllowed("https://developer.mozilla.org/en-US/docs/Web"))
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name     string
		href     string
		base     string
		expected string
		wantErr  bool
	}{
		{"relative path", "intro.html", "https://docs.python.org/3/tutorial/index.html", "https://docs.python.org/3/tutorial/intro.html", false},
		{"root relative", "/3/library/", "https://docs.python.org/3/tutorial/", "https://docs.python.org/3/library/", false},
		{"parent path", "../reference/", "https://docs.python.org/3/tutorial/", "https://docs.python.org/3/reference/", false},
		{"absolute kept", "https://example.com/a", "https://docs.python.org/", "https://example.com/a", false},
		{"anchor kept", "#sec", "https://example.com/page", "https://example.com/page#sec", false},
		{"empty href", "  ", "https://example.com/", "", true},
		{"relative without base", "a.html", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveURL(tt.href, tt.base)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	got, err := NormalizeURL("Docs.Python.org/3/#top")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.python.org/3/", got)

	_, err = NormalizeURL("   ")
	assert.Error(t, err)
}

func TestRegistrableDomain(t *testing.T) {
	d, err := RegistrableDomain("https://docs.python.org/3/")
	require.NoError(t, err)
	assert.Equal(t, "python.org", d)

	d, err = RegistrableDomain("https://www.bbc.co.uk/bitesize")
	require.NoError(t, err)
	assert.Equal(t, "bbc.co.uk", d)
}

func TestHostnameHelpers(t *testing.T) {
	assert.True(t, SameHost("https://www.example.com/a", "http://example.com/b"))
	assert.False(t, SameHost("https://a.example.com/", "https://b.example.com/"))
	assert.True(t, IsExternal("https://other.org/x", "https://example.com/"))
	assert.False(t, IsExternal("/x", "https://example.com/"))
}
