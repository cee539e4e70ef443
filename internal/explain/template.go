// Package explain writes the natural-language justification attached to each
// matched researcher. Each pattern has a fixed prompt template; the Generator
// sends it to a chat model with greedy decoding and returns the text verbatim.
package explain

import (
	"strings"

	"github.com/54b3r/labmatch-go/internal/index"
)

// Line is one labelled hit field rendered into the prompt.
type Line struct {
	Label string
	Field string
}

// Template is the prompt shape for one pattern.
type Template struct {
	// Name is the pattern letter, used in logs and metrics.
	Name string
	// System is the fixed system instruction describing the pattern's scope.
	System string
	// Extra lists the pattern-specific fields rendered after the base lines.
	Extra []Line
	// Instruction closes the user prompt.
	Instruction string
}

// baseLines are rendered for every pattern, in this order, after the request.
var baseLines = []Line{
	{Label: "研究者ID", Field: index.FieldResearcherID},
	{Label: "所属", Field: index.FieldAffiliation},
	{Label: "職位", Field: index.FieldPosition},
	{Label: "キーワード", Field: index.FieldKeywords},
}

const systemPrefix = "あなたは研究者マッチングの説明を行うアシスタントです。"

var (
	// PatternA explains matches found from researcher keywords only.
	PatternA = &Template{
		Name:        "A",
		System:      systemPrefix + "Pattern A（基本情報のみ）での検索結果を説明します。",
		Instruction: "【Pattern A検索】研究者の基本情報とキーワードのみを基に、なぜこの研究者が依頼内容に適しているのかを簡潔に説明してください。",
	}

	// PatternB adds research project fields.
	PatternB = &Template{
		Name:   "B",
		System: systemPrefix + "Pattern B（研究課題を含む）での検索結果を説明します。",
		Extra: []Line{
			{Label: "研究課題タイトル", Field: index.FieldProjectTitle},
			{Label: "研究課題詳細", Field: index.FieldProjectDetails},
			{Label: "研究成果", Field: index.FieldAchievement},
		},
		Instruction: "【Pattern B検索】研究者の基本情報、キーワード、および研究課題を基に、なぜこの研究者が依頼内容に適しているのかを説明してください。",
	}

	// PatternC adds publication fields.
	PatternC = &Template{
		Name:   "C",
		System: systemPrefix + "Pattern C（論文情報を含む）での検索結果を説明します。",
		Extra: []Line{
			{Label: "論文タイトル", Field: index.FieldPublicationTitle},
			{Label: "論文概要", Field: index.FieldPublicationAbstract},
		},
		Instruction: "【Pattern C検索】研究者の基本情報、キーワード、および論文情報を基に、なぜこの研究者が依頼内容に適しているのかを詳細に説明してください。",
	}
)

// Prompt renders the user prompt for queryText and hit. Missing optional
// fields render as an empty value after the label.
func (t *Template) Prompt(queryText string, hit index.Hit) string {
	var sb strings.Builder
	sb.WriteString("依頼内容: ")
	sb.WriteString(queryText)
	sb.WriteByte('\n')

	for _, l := range baseLines {
		writeLine(&sb, l, hit)
	}
	for _, l := range t.Extra {
		writeLine(&sb, l, hit)
	}

	sb.WriteByte('\n')
	sb.WriteString(t.Instruction)
	return sb.String()
}

func writeLine(sb *strings.Builder, l Line, hit index.Hit) {
	sb.WriteString(l.Label)
	sb.WriteString(": ")
	sb.WriteString(hit.Get(l.Field))
	sb.WriteByte('\n')
}
