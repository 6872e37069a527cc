package discovery

import (
	"sort"
	"strings"

	"github.com/aleister1102/oerscout/internal/adapters"
	"github.com/aleister1102/oerscout/internal/models"
)

// KeywordWeight is added per exact keyword hit on a curated source.
const KeywordWeight = 12.0

// CuratedSource is a pre-approved provider that is only scanned on demand.
type CuratedSource struct {
	Seed     models.SeedConfig
	Keywords []string
	Subjects []string
}

// Candidate returns the single asset a page-level source exposes: its seed page.
func (c CuratedSource) Candidate() models.AssetCandidate {
	meta := make(map[string]interface{}, len(c.Seed.Config)+1)
	for k, v := range c.Seed.Config {
		meta[k] = v
	}
	meta["catalog"] = "curated_source"
	candidate := models.AssetCandidate{
		Slug:        adapters.Slugify(c.Seed.Name),
		Title:       c.Seed.Name,
		URL:         c.Seed.SeedURL,
		Description: c.Seed.Description,
		Subjects:    append(append([]string(nil), c.Subjects...), c.Keywords...),
		Metadata:    meta,
	}
	if name, ok := c.Seed.Config["license_name"].(string); ok {
		candidate.LicenseName = name
		candidate.LicenseURL, _ = c.Seed.Config["license_url"].(string)
		candidate.LicenseConfidence = 0.9
	}
	return candidate
}

// DefaultConflictGroups are technologies whose names overlap. A query naming one of them
// never matches a source keyed on another.
var DefaultConflictGroups = [][]string{
	{"java", "javascript"},
	{"c", "c++", "c#", "objective-c"},
	{"r", "ruby", "rust"},
	{"go", "google"},
}

// DefaultCuratedSources is the built-in on-demand catalog.
var DefaultCuratedSources = []CuratedSource{
	{
		Seed: models.SeedConfig{
			Name: "Python Documentation", Type: models.SourceTypeSphinxDocs,
			BaseURL: "https://docs.python.org", SeedURL: "https://docs.python.org/3/",
			Description: "Official Python language and library documentation", RateLimitPerMinute: 30,
			Config: map[string]interface{}{"family": "python"},
		},
		Keywords: []string{"python", "python3", "cpython"},
		Subjects: []string{"programming", "computer science"},
	},
	{
		Seed: models.SeedConfig{
			Name: "MDN JavaScript Guide", Type: models.SourceTypeGenericHTML,
			BaseURL: "https://developer.mozilla.org", SeedURL: "https://developer.mozilla.org/en-US/docs/Web/JavaScript/Guide",
			Description: "Guide to the JavaScript language from MDN", RateLimitPerMinute: 20,
			Config: map[string]interface{}{"license_name": "CC BY-SA 2.5", "license_url": "https://creativecommons.org/licenses/by-sa/2.5/"},
		},
		Keywords: []string{"javascript", "js", "ecmascript"},
		Subjects: []string{"programming", "web development"},
	},
	{
		Seed: models.SeedConfig{
			Name: "Introduction to Programming Using Java", Type: models.SourceTypeGenericHTML,
			BaseURL: "https://math.hws.edu", SeedURL: "https://math.hws.edu/javanotes/",
			Description: "Free introductory Java textbook by David J. Eck", RateLimitPerMinute: 20,
			Config: map[string]interface{}{"license_name": "CC BY-NC-SA 4.0", "license_url": "https://creativecommons.org/licenses/by-nc-sa/4.0/"},
		},
		Keywords: []string{"java", "jdk", "jvm"},
		Subjects: []string{"programming", "computer science"},
	},
	{
		Seed: models.SeedConfig{
			Name: "The Rust Programming Language", Type: models.SourceTypeGenericHTML,
			BaseURL: "https://doc.rust-lang.org", SeedURL: "https://doc.rust-lang.org/book/",
			Description: "The official book on the Rust programming language", RateLimitPerMinute: 20,
			Config: map[string]interface{}{"license_name": "MIT", "license_url": "https://opensource.org/licenses/MIT", "toc_selector": "#sidebar, .sidebar-scrollbox"},
		},
		Keywords: []string{"rust", "cargo", "rustlang"},
		Subjects: []string{"programming", "systems programming"},
	},
	{
		Seed: models.SeedConfig{
			Name: "Go Documentation", Type: models.SourceTypeGenericHTML,
			BaseURL: "https://go.dev", SeedURL: "https://go.dev/doc/effective_go",
			Description: "Effective Go and the Go language documentation", RateLimitPerMinute: 20,
			Config: map[string]interface{}{"license_name": "CC BY 4.0", "license_url": "https://creativecommons.org/licenses/by/4.0/"},
		},
		Keywords: []string{"go", "golang"},
		Subjects: []string{"programming"},
	},
	{
		Seed: models.SeedConfig{
			Name: "R for Data Science", Type: models.SourceTypeGenericHTML,
			BaseURL: "https://r4ds.hadley.nz", SeedURL: "https://r4ds.hadley.nz/",
			Description: "Import, tidy, transform, visualize and model data with R", RateLimitPerMinute: 20,
			Config: map[string]interface{}{"license_name": "CC BY-NC-ND 3.0", "license_url": "https://creativecommons.org/licenses/by-nc-nd/3.0/us/"},
		},
		Keywords: []string{"r", "tidyverse", "ggplot2"},
		Subjects: []string{"statistics", "data science"},
	},
	{
		Seed: models.SeedConfig{
			Name: "C++ Reference", Type: models.SourceTypeGenericHTML,
			BaseURL: "https://en.cppreference.com", SeedURL: "https://en.cppreference.com/w/cpp",
			Description: "Reference for the C++ language and standard library", RateLimitPerMinute: 20,
			Config: map[string]interface{}{"license_name": "CC BY-SA 3.0", "license_url": "https://creativecommons.org/licenses/by-sa/3.0/"},
		},
		Keywords: []string{"c++", "cpp", "stl"},
		Subjects: []string{"programming"},
	},
	{
		Seed: models.SeedConfig{
			Name: "C Programming Wikibook", Type: models.SourceTypeGenericHTML,
			BaseURL: "https://en.wikibooks.org", SeedURL: "https://en.wikibooks.org/wiki/C_Programming",
			Description: "Collaborative textbook on the C language", RateLimitPerMinute: 20,
			Config: map[string]interface{}{"license_name": "CC BY-SA 4.0", "license_url": "https://creativecommons.org/licenses/by-sa/4.0/"},
		},
		Keywords: []string{"c", "ansi-c", "c99"},
		Subjects: []string{"programming", "systems programming"},
	},
}

// CuratedMatch is a curated source with its score for a topic.
type CuratedMatch struct {
	Source CuratedSource
	Score  float64
}

// CuratedSources scores topics against a fixed provider list, enforcing conflict groups.
type CuratedSources struct {
	sources   []CuratedSource
	conflicts map[string][]string
	scorer    *Scorer
}

// NewCuratedSources builds the matcher. Nil arguments select the defaults.
func NewCuratedSources(sources []CuratedSource, conflictGroups [][]string, scorer *Scorer) *CuratedSources {
	if sources == nil {
		sources = DefaultCuratedSources
	}
	if conflictGroups == nil {
		conflictGroups = DefaultConflictGroups
	}
	if scorer == nil {
		scorer = NewScorer()
	}
	conflicts := make(map[string][]string)
	for _, group := range conflictGroups {
		for _, name := range group {
			for _, other := range group {
				if other != name {
					conflicts[name] = append(conflicts[name], other)
				}
			}
		}
	}
	return &CuratedSources{sources: sources, conflicts: conflicts, scorer: scorer}
}

// Sources returns the configured sources.
func (c *CuratedSources) Sources() []CuratedSource {
	return c.sources
}

// Match scores every source against topic and returns those scoring above zero, best
// first.
func (c *CuratedSources) Match(topic string) []CuratedMatch {
	var matches []CuratedMatch
	for _, src := range c.sources {
		if score := c.score(topic, src); score > 0 {
			matches = append(matches, CuratedMatch{Source: src, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches
}

func (c *CuratedSources) score(topic string, src CuratedSource) float64 {
	keywords := wordSet(lowerAll(src.Keywords)...)
	terms := keywordTokens(topic)
	if c.conflicting(terms, keywords) {
		return 0
	}
	score := c.scorer.Score(topic, Candidate{
		Title:       src.Seed.Name,
		Subjects:    append(append([]string(nil), src.Keywords...), src.Subjects...),
		Description: src.Seed.Description,
	})
	for _, term := range terms {
		if keywords[term] {
			score += KeywordWeight
		}
	}
	return score
}

// conflicting reports whether a query term names a technology that conflicts with one
// of the source's keywords while not being a keyword itself.
func (c *CuratedSources) conflicting(terms []string, keywords map[string]bool) bool {
	for _, term := range terms {
		if keywords[term] {
			continue
		}
		for _, other := range c.conflicts[term] {
			if keywords[other] {
				return true
			}
		}
	}
	return false
}

// keywordTokens splits a query for exact keyword comparison. Unlike Tokenize it keeps
// short tokens and the '+' and '#' of names such as "c++" and "c#".
func keywordTokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ',' || r == ';' || r == '/'
	})
	seen := make(map[string]bool)
	var out []string
	for _, f := range fields {
		f = strings.Trim(f, `.:!?()[]{}"'`)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
