package match

import "time"

// Result is one explained candidate. Name and ResearchField are not present
// in the index and stay nil; DisplayName is a placeholder built from the id.
type Result struct {
	ResearcherID  string  `json:"researcher_id"`
	DisplayName   string  `json:"display_name"`
	Name          *string `json:"name"`
	Institution   string  `json:"university"`
	Affiliation   string  `json:"affiliation"`
	Position      string  `json:"position"`
	ResearchField *string `json:"research_field"`
	Keywords      string  `json:"keywords"`
	// Projects is set for pattern B only.
	Projects *string `json:"research_projects,omitempty"`
	// Publications is set for pattern C only.
	Publications *string `json:"publications,omitempty"`
	Explanation  string  `json:"explanation"`
	Score        float64 `json:"score"`
	Pattern      Pattern `json:"pattern"`
}

// PatternResultSet is the output of one retrieval. Results keep the order
// the index returned them in.
type PatternResultSet struct {
	Results     []Result      `json:"results"`
	Elapsed     time.Duration `json:"-"`
	SearchTime  float64       `json:"search_time"`
	Pattern     Pattern       `json:"pattern"`
	Description string        `json:"pattern_description"`
}

// QueryInfo echoes the comparison query.
type QueryInfo struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	University  string `json:"university"`
	TopK        int    `json:"top_k"`
}

// ComparisonResult holds one result set per pattern. Scores from different
// patterns come from different vector fields and are never merged.
type ComparisonResult struct {
	PatternA            *PatternResultSet `json:"pattern_a"`
	PatternB            *PatternResultSet `json:"pattern_b"`
	PatternC            *PatternResultSet `json:"pattern_c"`
	TotalComparisonTime float64           `json:"total_comparison_time"`
	Elapsed             time.Duration     `json:"-"`
	QueryInfo           QueryInfo         `json:"query_info"`
	// Failures is only populated when partial results were requested.
	Failures map[Pattern]string `json:"failures,omitempty"`
}

// Set returns the result set for p, or nil.
func (c *ComparisonResult) Set(p Pattern) *PatternResultSet {
	switch p {
	case PatternA:
		return c.PatternA
	case PatternB:
		return c.PatternB
	case PatternC:
		return c.PatternC
	default:
		return nil
	}
}

func (c *ComparisonResult) put(p Pattern, s *PatternResultSet) {
	switch p {
	case PatternA:
		c.PatternA = s
	case PatternB:
		c.PatternB = s
	case PatternC:
		c.PatternC = s
	}
}
