package registry

import (
	"strings"

	"github.com/aleister1102/oerscout/internal/models"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// TocDiff counts outline lines added, removed and kept between two scans of an asset.
type TocDiff struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// Changed reports whether the outline differs.
func (d TocDiff) Changed() bool {
	return d.Added > 0 || d.Removed > 0
}

// DiffToc compares the indented title outlines of two flattened TOCs line by line.
func DiffToc(previous, current []*models.TocNode) TocDiff {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(outline(previous), outline(current))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var d TocDiff
	for _, diff := range diffs {
		n := strings.Count(diff.Text, "\n")
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			d.Added += n
		case diffmatchpatch.DiffDelete:
			d.Removed += n
		default:
			d.Unchanged += n
		}
	}
	return d
}

func outline(nodes []*models.TocNode) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(strings.Repeat("  ", n.Depth))
		b.WriteString(n.Title)
		b.WriteByte('\n')
	}
	return b.String()
}
