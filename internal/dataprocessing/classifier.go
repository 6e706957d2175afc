package dataprocessing

import (
	"regexp"
	"strings"

	"qcpulse/internal/config"
	"qcpulse/pkg/contracts/domain"
)

// categoryPatterns binds one report category to the filename patterns
// that identify it. Order matters: the first category with a matching
// pattern wins.
type categoryPatterns struct {
	category domain.ReportCategory
	patterns []*regexp.Regexp
}

// Classifier maps filenames to report categories. It is deterministic
// and has no error conditions; a filename matching nothing is simply
// CategoryUnknown.
type Classifier struct {
	table []categoryPatterns
}

// NewClassifier creates a classifier from the configured pattern table.
// The patterns must already have passed config validation; MustCompile
// is safe here.
func NewClassifier(patterns []config.CategoryPattern) *Classifier {
	table := make([]categoryPatterns, 0, len(patterns))
	for _, entry := range patterns {
		table = append(table, categoryPatterns{
			category: domain.ReportCategory(entry.Category),
			patterns: compileAll(entry.Patterns...),
		})
	}
	return &Classifier{table: table}
}

// Classify returns the report category for a filename.
func (c *Classifier) Classify(filename string) domain.ReportCategory {
	nameLower := strings.ToLower(filename)

	for _, entry := range c.table {
		for _, pattern := range entry.patterns {
			if pattern.MatchString(nameLower) {
				return entry.category
			}
		}
	}

	return domain.CategoryUnknown
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}
