package main

import (
	"bytes"
	"testing"

	"github.com/aleister1102/oerscout/internal/models"
	"github.com/aleister1102/oerscout/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectNodes(t *testing.T) {
	nodes := []*models.TocNode{
		{Slug: "ch1", Title: "Chapter 1"},
		{Slug: "ch1-1", Title: "1.1 Sets", URL: "https://x.org/1-1"},
		{Slug: "ch1-2", Title: "1.2 Functions", URL: "https://x.org/1-2"},
		{Slug: "ch2-1", Title: "2.1 Limits", URL: "https://x.org/2-1"},
	}

	tests := []struct {
		name    string
		section string
		limit   int
		want    []string
	}{
		{"all with url", "", 0, []string{"ch1-1", "ch1-2", "ch2-1"}},
		{"limit", "", 2, []string{"ch1-1", "ch1-2"}},
		{"section filter", "ch1", 0, []string{"ch1-1", "ch1-2"}},
		{"title filter", "limits", 5, []string{"ch2-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, n := range selectNodes(nodes, tt.section, tt.limit) {
				got = append(got, n.Slug)
			}
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Len(t, nodes, 4)
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"scan", "activate", "deactivate", "discover", "retrieve", "logs"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"activate"})
	assert.Error(t, root.Execute())
}

func TestPrintToc(t *testing.T) {
	var out bytes.Buffer
	printToc(&out, []*models.TocNode{{Title: "Chapter 1"}, {Title: "1.1 Sets", Depth: 1}})
	assert.Equal(t, "  - Chapter 1\n    - 1.1 Sets\n", out.String())
}

func TestScanErrors(t *testing.T) {
	assert.NoError(t, scanErrors([]*registry.ScanResult{{SourceName: "openstax", Errors: []string{}}}))

	err := scanErrors([]*registry.ScanResult{
		{SourceName: "openstax", Errors: []string{"HTTP 503"}},
		{SourceName: "python-docs"},
		{SourceName: "mit-ocw", Errors: []string{"robots disallowed", "no TOC"}},
	})
	require.Error(t, err)
	assert.Equal(t, "multiple errors occurred: [openstax: HTTP 503; mit-ocw: robots disallowed; mit-ocw: no TOC]", err.Error())
}
