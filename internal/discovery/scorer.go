// Package discovery finds or creates assets for free-text topics when nothing was
// pre-scanned: stored assets first, then provider catalogs, then curated sources, then
// a web search fallback.
package discovery

import (
	"regexp"
	"sort"
	"strings"

	"github.com/aleister1102/oerscout/internal/models"
)

// DefaultMinScore is the score a match needs to be selected automatically.
const DefaultMinScore = 10.0

// Weights tune the topic scorer.
type Weights struct {
	Title                float64
	GenericTitle         float64
	Subject              float64
	Description          float64
	Fuzzy                float64
	SpecificityBonus     float64
	GenericOnlyFactor    float64
	MissingSubjectFactor float64
}

// DefaultWeights returns the production weights.
func DefaultWeights() Weights {
	return Weights{
		Title:                12,
		GenericTitle:         2,
		Subject:              6,
		Description:          3,
		Fuzzy:                1,
		SpecificityBonus:     3,
		GenericOnlyFactor:    0.3,
		MissingSubjectFactor: 0.4,
	}
}

// GenericWords carry little meaning on their own; they score low in titles and a match
// made only of them is penalized.
var GenericWords = wordSet(
	"introduction", "intro", "introductory", "fundamentals", "fundamental", "basics", "basic",
	"guide", "guides", "beginner", "beginners", "tutorial", "tutorials", "course", "courses",
	"learn", "learning", "principles", "concepts", "overview", "essentials", "foundations",
	"primer", "handbook", "manual", "getting", "started", "advanced", "elementary", "theory",
	"applied", "general", "modern", "complete", "book", "textbook", "documentation", "docs",
	"reference", "program", "lessons",
)

// TechnicalTerms are query terms that demand a subject-tag match.
var TechnicalTerms = wordSet(
	"programming", "python", "java", "javascript", "typescript", "rust", "golang", "ruby",
	"database", "databases", "sql", "algorithm", "algorithms", "data", "structures",
	"software", "coding", "code", "computer", "computing", "web", "html", "css", "api",
	"machine", "network", "networking", "linux", "compiler", "compilers", "cpp",
)

// RelatedSubjects maps a query term to subject tags that imply it.
var RelatedSubjects = map[string][]string{
	"python":      {"computer science", "programming"},
	"java":        {"computer science", "programming"},
	"javascript":  {"computer science", "programming", "web development"},
	"typescript":  {"programming", "web development"},
	"rust":        {"programming", "systems programming"},
	"golang":      {"programming"},
	"ruby":        {"programming"},
	"programming": {"computer science"},
	"coding":      {"computer science", "programming"},
	"software":    {"computer science", "software engineering"},
	"data":        {"computer science", "data science", "statistics"},
	"structures":  {"computer science", "algorithms"},
	"algorithm":   {"computer science", "algorithms"},
	"algorithms":  {"computer science"},
	"database":    {"computer science", "databases"},
	"databases":   {"computer science"},
	"sql":         {"databases", "computer science"},
	"web":         {"web development"},
	"html":        {"web development"},
	"css":         {"web development"},
	"calculus":    {"mathematics"},
	"algebra":     {"mathematics"},
	"statistics":  {"mathematics", "data science"},
	"mechanics":   {"physics"},
	"chemistry":   {"science"},
	"biology":     {"science"},
}

var (
	nonAlnum  = regexp.MustCompile(`[^a-z0-9]+`)
	stopWords = wordSet("and", "the", "for", "with", "from", "into", "your", "using", "how", "what")
)

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// Tokenize lowercases s, strips non-alphanumerics, splits on whitespace and drops tokens
// of two characters or fewer and stop words. Order is kept and duplicates removed.
func Tokenize(s string) []string {
	s = nonAlnum.ReplaceAllString(strings.ToLower(s), " ")
	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.Fields(s) {
		if len(tok) <= 2 || stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// Candidate is the text a topic is scored against.
type Candidate struct {
	Title       string
	Subjects    []string
	Description string
}

// CandidateFrom adapts an adapter candidate.
func CandidateFrom(c models.AssetCandidate) Candidate {
	return Candidate{Title: c.Title, Subjects: c.Subjects, Description: c.Description}
}

// CandidateFromAsset adapts a stored asset.
func CandidateFromAsset(a *models.Asset) Candidate {
	return Candidate{Title: a.Title, Subjects: a.Subjects, Description: a.Description}
}

// Scorer ranks candidates against a topic.
type Scorer struct {
	Weights         Weights
	GenericWords    map[string]bool
	TechnicalTerms  map[string]bool
	RelatedSubjects map[string][]string
}

// NewScorer returns a scorer with the default weights and word lists.
func NewScorer() *Scorer {
	return &Scorer{
		Weights:         DefaultWeights(),
		GenericWords:    GenericWords,
		TechnicalTerms:  TechnicalTerms,
		RelatedSubjects: RelatedSubjects,
	}
}

// Score rates how well c matches topic. A topic term adds the weight of every field it
// appears in (title, subject tag, description); fuzzy substring overlap counts only for
// terms found in none of them.
func (s *Scorer) Score(topic string, c Candidate) float64 {
	terms := Tokenize(topic)
	if len(terms) == 0 {
		return 0
	}
	title := wordSet(Tokenize(c.Title)...)
	subjectTokens := wordSet(Tokenize(strings.Join(c.Subjects, " "))...)
	description := wordSet(Tokenize(c.Description)...)
	subjects := make([]string, 0, len(c.Subjects))
	for _, subj := range c.Subjects {
		subjects = append(subjects, strings.ToLower(strings.TrimSpace(subj)))
	}
	vocabulary := make([]string, 0, len(title)+len(subjectTokens)+len(description))
	for _, set := range []map[string]bool{title, subjectTokens, description} {
		for tok := range set {
			vocabulary = append(vocabulary, tok)
		}
	}

	w := s.Weights
	var score float64
	matched, specific := 0, 0
	subjectHit, technical := false, false
	for _, term := range terms {
		generic := s.GenericWords[term]
		technical = technical || s.TechnicalTerms[term]
		inSubjects := subjectTokens[term] || s.relatedSubject(term, subjects)
		subjectHit = subjectHit || inSubjects

		var weight float64
		if title[term] {
			if generic {
				weight += w.GenericTitle
			} else {
				weight += w.Title
			}
		}
		if inSubjects {
			weight += w.Subject
		}
		if description[term] {
			weight += w.Description
		}
		if weight == 0 && !generic && fuzzyMatch(term, vocabulary) {
			weight = w.Fuzzy
		}
		if weight == 0 {
			continue
		}
		score += weight
		matched++
		if !generic {
			specific++
		}
	}

	if specific > 1 {
		score += w.SpecificityBonus * float64(specific-1)
	}
	if matched > 0 && specific == 0 {
		score *= w.GenericOnlyFactor
	}
	if technical && !subjectHit {
		score *= w.MissingSubjectFactor
	}
	return score
}

func (s *Scorer) relatedSubject(term string, subjects []string) bool {
	for _, related := range s.RelatedSubjects[term] {
		for _, subj := range subjects {
			if subj == related || strings.Contains(subj, related) {
				return true
			}
		}
	}
	return false
}

func fuzzyMatch(term string, vocabulary []string) bool {
	for _, tok := range vocabulary {
		if tok == term || len(tok) < 4 || len(term) < 4 {
			continue
		}
		if strings.Contains(tok, term) || strings.Contains(term, tok) {
			return true
		}
	}
	return false
}

// ScoredCandidate pairs a candidate with its score.
type ScoredCandidate struct {
	Candidate models.AssetCandidate
	Score     float64
}

// Rank scores candidates against topic, highest first. Ties keep input order.
func (s *Scorer) Rank(topic string, candidates []models.AssetCandidate) []ScoredCandidate {
	ranked := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, ScoredCandidate{Candidate: c, Score: s.Score(topic, CandidateFrom(c))})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}
