package retrieval

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/aleister1102/oerscout/internal/models"
)

// MaxListedSections is how many sections are named before the rest are counted.
const MaxListedSections = 3

var sectionNumberRegex = regexp.MustCompile(`(?i)^(?:(?:section|chapter|unit|lecture)\s+)?(\d+(?:\.\d+)*)\b`)

// BuildCitations derives one citation per extracted page, ordered by sort order.
// Repeated URLs are cited once.
func BuildCitations(contents []*models.ExtractedContent) []models.Citation {
	citations := make([]models.Citation, 0, len(contents))
	seen := make(map[string]bool)
	for _, c := range contents {
		if c == nil || seen[c.URL] {
			continue
		}
		seen[c.URL] = true

		section := c.Title
		if n := len(c.SectionPath); n > 0 && c.SectionPath[n-1] != "" {
			section = c.SectionPath[n-1]
		}
		citations = append(citations, models.Citation{
			SourceTitle:  c.SourceTitle,
			SectionTitle: section,
			SectionPath:  c.SectionPath,
			URL:          c.URL,
			SortOrder:    c.SortOrder,
		})
	}
	sort.SliceStable(citations, func(i, j int) bool {
		return citations[i].SortOrder < citations[j].SortOrder
	})
	return citations
}

// FormatCitationsDisplay renders citations as "Based on X, Sections 1.2–1.5". A run of
// consecutive section numbers collapses to a range; anything else is enumerated, and
// past MaxListedSections entries the remainder is counted. Several sources are joined
// with "; ".
func FormatCitationsDisplay(citations []models.Citation) string {
	if len(citations) == 0 {
		return ""
	}

	var order []string
	groups := make(map[string][]models.Citation)
	for _, c := range citations {
		if _, ok := groups[c.SourceTitle]; !ok {
			order = append(order, c.SourceTitle)
		}
		groups[c.SourceTitle] = append(groups[c.SourceTitle], c)
	}

	parts := make([]string, 0, len(order))
	for _, source := range order {
		parts = append(parts, formatSource(source, groups[source]))
	}
	return "Based on " + strings.Join(parts, "; ")
}

func formatSource(source string, citations []models.Citation) string {
	if source == "" {
		source = "source material"
	}

	numbers := make([]string, 0, len(citations))
	for _, c := range citations {
		n := SectionNumber(c.SectionTitle)
		if n == "" {
			break
		}
		numbers = append(numbers, n)
	}

	if len(numbers) == len(citations) {
		if len(numbers) == 1 {
			return fmt.Sprintf("%s, Section %s", source, numbers[0])
		}
		if isConsecutive(numbers) {
			return fmt.Sprintf("%s, Sections %s–%s", source, numbers[0], numbers[len(numbers)-1])
		}
		return fmt.Sprintf("%s, Sections %s", source, enumerate(numbers))
	}

	titles := make([]string, 0, len(citations))
	for _, c := range citations {
		titles = append(titles, c.SectionTitle)
	}
	return fmt.Sprintf("%s: %s", source, enumerate(titles))
}

func enumerate(items []string) string {
	if len(items) <= MaxListedSections {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(items[:MaxListedSections], ", "), len(items)-MaxListedSections)
}

// SectionNumber returns the leading dotted number of a section title such as
// "1.2 Functions" or "Chapter 3", or "" when there is none.
func SectionNumber(title string) string {
	m := sectionNumberRegex.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return ""
	}
	return m[1]
}

// isConsecutive reports whether every number shares the prefix of the first and
// the last component increases by one each step.
func isConsecutive(numbers []string) bool {
	prefix, last, ok := splitLast(numbers[0])
	if !ok {
		return false
	}
	for _, n := range numbers[1:] {
		p, v, ok := splitLast(n)
		if !ok || p != prefix || v != last+1 {
			return false
		}
		last = v
	}
	return true
}

func splitLast(number string) (string, int, bool) {
	prefix := ""
	tail := number
	if i := strings.LastIndex(number, "."); i >= 0 {
		prefix, tail = number[:i], number[i+1:]
	}
	v, err := strconv.Atoi(tail)
	return prefix, v, err == nil
}
