package discovery

import (
	"testing"

	"github.com/aleister1102/oerscout/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Python Data Structures", []string{"python", "data", "structures"}},
		{"Intro to C++ & the STL!", []string{"intro", "stl"}},
		{"data, data and more data", []string{"data", "more"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestScorer_GenericOnlyMatchStaysBelowThreshold(t *testing.T) {
	s := NewScorer()
	score := s.Score("java fundamentals", Candidate{
		Title:       "Fundamentals of Nursing",
		Subjects:    []string{"nursing", "health"},
		Description: "Covers patient care, clinical judgment and the nursing process.",
	})
	assert.Less(t, score, DefaultMinScore)
}

func TestScorer_SubjectMatchClearsThreshold(t *testing.T) {
	s := NewScorer()
	score := s.Score("python data structures", Candidate{
		Title:       "Introduction to Algorithms",
		Subjects:    []string{"computer science", "algorithms"},
		Description: "Mathematical modeling of computational problems and common algorithms.",
	})
	assert.Greater(t, score, DefaultMinScore)
}

func TestScorer_Weights(t *testing.T) {
	s := NewScorer()
	w := s.Weights
	tests := []struct {
		name  string
		topic string
		c     Candidate
		want  float64
	}{
		{
			name:  "title match",
			topic: "calculus",
			c:     Candidate{Title: "Calculus Volume 1"},
			want:  w.Title,
		},
		{
			name:  "generic title word only",
			topic: "introduction",
			c:     Candidate{Title: "Introduction to Sociology"},
			want:  w.GenericTitle * w.GenericOnlyFactor,
		},
		{
			name:  "description match",
			topic: "thermodynamics",
			c:     Candidate{Title: "University Physics", Description: "Mechanics, waves and thermodynamics."},
			want:  w.Description,
		},
		{
			name:  "fuzzy overlap",
			topic: "biochem",
			c:     Candidate{Title: "Biochemistry"},
			want:  w.Fuzzy,
		},
		{
			name:  "specificity bonus",
			topic: "organic chemistry",
			c:     Candidate{Title: "Organic Chemistry"},
			want:  2*w.Title + w.SpecificityBonus,
		},
		{
			name:  "technical term without subject tag",
			topic: "python",
			c:     Candidate{Title: "Python Crash Course"},
			want:  w.Title * w.MissingSubjectFactor,
		},
		{
			name:  "technical term with subject tag",
			topic: "python",
			c:     Candidate{Title: "Python Crash Course", Subjects: []string{"programming"}},
			want:  w.Title + w.Subject,
		},
		{
			name:  "fields add up",
			topic: "calculus",
			c:     Candidate{Title: "Calculus Volume 1", Subjects: []string{"calculus"}, Description: "Limits and calculus."},
			want:  w.Title + w.Subject + w.Description,
		},
		{
			name:  "no overlap",
			topic: "astronomy",
			c:     Candidate{Title: "Principles of Accounting"},
			want:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.Score(tt.topic, tt.c), 1e-9)
		})
	}
}

func TestScorer_Rank(t *testing.T) {
	s := NewScorer()
	ranked := s.Rank("linear algebra", []models.AssetCandidate{
		{Slug: "calc", Title: "Calculus"},
		{Slug: "la", Title: "Linear Algebra", Subjects: []string{"mathematics"}},
		{Slug: "alg", Title: "College Algebra"},
	})
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"la", "alg", "calc"}, []string{ranked[0].Candidate.Slug, ranked[1].Candidate.Slug, ranked[2].Candidate.Slug})
	assert.Zero(t, ranked[2].Score)
}
