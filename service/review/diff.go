// Package review compares successive code proposals within one conversation
// so the operator sees what changed before approving a retry.
package review

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	sgdiff "github.com/sourcegraph/go-diff/diff"
)

// DiffStats captures basic statistics about a unified-diff output.
type DiffStats struct {
	Added   int `json:"added"`   // lines starting with '+' (excluding +++)
	Removed int `json:"removed"` // lines starting with '-' (excluding ---)
	Changed int `json:"changed"` // adjacent remove/add pairs as reported by go-diff
}

// Revision describes a proposal relative to the one before it.
type Revision struct {
	Number int       `json:"number"`
	Diff   string    `json:"diff"`
	Stats  DiffStats `json:"stats"`
}

// GenerateDiff produces a unified diff between old and new snippet text.
// Identical inputs yield an empty diff.
func GenerateDiff(oldContent, newContent string, name string, contextLines int) (string, DiffStats, error) {
	if contextLines <= 0 {
		contextLines = 3
	}
	if oldContent == newContent {
		return "", DiffStats{}, nil
	}
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: name + " (previous)",
		ToFile:   name + " (proposed)",
		Context:  contextLines,
	}
	patch, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", DiffStats{}, err
	}

	var stats DiffStats
	for _, line := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			stats.Added++
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			stats.Removed++
		}
	}
	if fileDiff, err := sgdiff.ParseFileDiff([]byte(patch)); err == nil {
		stats.Changed = int(fileDiff.Stat().Changed)
	}
	return patch, stats, nil
}

// Compare returns the revision of proposed against previous, or nil when
// there is nothing to compare (first proposal or unchanged code).
func Compare(previous, proposed, name string, number int) (*Revision, error) {
	if previous == "" || previous == proposed {
		return nil, nil
	}
	patch, stats, err := GenerateDiff(previous, proposed, name, 3)
	if err != nil {
		return nil, err
	}
	return &Revision{Number: number, Diff: patch, Stats: stats}, nil
}
