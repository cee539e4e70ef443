package match

import (
	"fmt"
	"strings"

	"github.com/54b3r/labmatch-go/internal/explain"
	"github.com/54b3r/labmatch-go/internal/index"
)

// Pattern selects one fixed retrieval configuration.
type Pattern string

const (
	PatternA Pattern = "A"
	PatternB Pattern = "B"
	PatternC Pattern = "C"
)

// AllPatterns lists the patterns in display order.
var AllPatterns = []Pattern{PatternA, PatternB, PatternC}

// ParsePattern accepts a pattern letter in either case.
func ParsePattern(s string) (Pattern, error) {
	p := Pattern(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := patternTable[p]; !ok {
		return "", &Error{Kind: KindInvalidPattern, Op: "parse", Err: fmt.Errorf("unknown pattern %q (valid values: A, B, C)", s)}
	}
	return p, nil
}

// BlobTarget names the result field that receives the joined extra fields.
type BlobTarget int

const (
	BlobNone BlobTarget = iota
	BlobProjects
	BlobPublications
)

// PatternConfig is everything that differs between patterns.
type PatternConfig struct {
	Pattern     Pattern
	Description string
	Collection  string
	VectorField string
	// ExtraFields are projected in addition to index.BaseFields.
	ExtraFields []string
	Blob        BlobTarget
	Template    *explain.Template
}

var patternTable = map[Pattern]*PatternConfig{
	PatternA: {
		Pattern:     PatternA,
		Description: "研究者キーワードのみ（KAKEN）",
		Collection:  "science_tokyo_pattern_a",
		VectorField: "science_tokyo_pattern_a",
		Blob:        BlobNone,
		Template:    explain.PatternA,
	},
	PatternB: {
		Pattern:     PatternB,
		Description: "研究者キーワード + 研究課題（KAKEN拡張）",
		Collection:  "science_tokyo_pattern_b",
		VectorField: "science_tokyo_pattern_b",
		ExtraFields: []string{index.FieldProjectTitle, index.FieldProjectDetails, index.FieldAchievement},
		Blob:        BlobProjects,
		Template:    explain.PatternB,
	},
	PatternC: {
		Pattern:     PatternC,
		Description: "研究者キーワード + 論文（KAKEN + researchmap）",
		Collection:  "science_tokyo_pattern_c",
		VectorField: "science_tokyo_pattern_c",
		ExtraFields: []string{index.FieldPublicationTitle, index.FieldPublicationAbstract},
		Blob:        BlobPublications,
		Template:    explain.PatternC,
	},
}

// Lookup returns the configuration for p.
func Lookup(p Pattern) (*PatternConfig, bool) {
	c, ok := patternTable[p]
	return c, ok
}

// Patterns returns the configurations in display order.
func Patterns() []*PatternConfig {
	out := make([]*PatternConfig, 0, len(AllPatterns))
	for _, p := range AllPatterns {
		out = append(out, patternTable[p])
	}
	return out
}

// Collections returns every collection name the table references.
func Collections() []string {
	out := make([]string, 0, len(AllPatterns))
	for _, c := range Patterns() {
		out = append(out, c.Collection)
	}
	return out
}

// Projection is the full list of fields requested from the index.
func (c *PatternConfig) Projection() []string {
	out := make([]string, 0, len(index.BaseFields)+len(c.ExtraFields))
	out = append(out, index.BaseFields...)
	return append(out, c.ExtraFields...)
}

// blob joins the extra fields with " | ". Missing fields contribute "".
func (c *PatternConfig) blob(hit index.Hit) string {
	parts := make([]string, len(c.ExtraFields))
	for i, f := range c.ExtraFields {
		parts[i] = hit.Get(f)
	}
	return strings.Join(parts, " | ")
}
