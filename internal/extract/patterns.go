package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// CategoryRule maps a literal payment code prefix to a category
type CategoryRule struct {
	Prefix   string
	Category Category
}

// DefaultCategoryRules is the issuer prefix table, checked in order
var DefaultCategoryRules = []CategoryRule{
	{Prefix: "36490", Category: CategoryInternet},
	{Prefix: "34191", Category: CategoryElectricity},
}

const (
	codeLengthPreferred = 47
	codeLengthSecondary = 44
)

// Patterns holds the textual rules shared by the extractors. It is read-only
// after construction and safe for concurrent use.
type Patterns struct {
	codeLengths []int
	codeRuns    []*regexp.Regexp
	codeSpan    *regexp.Regexp
	amount      *regexp.Regexp
	categories  []CategoryRule
}

var defaultPatterns = NewPatterns(DefaultCategoryRules)

// DefaultPatterns returns the process-wide pattern library
func DefaultPatterns() *Patterns {
	return defaultPatterns
}

// NewPatterns builds a pattern library with the given prefix table
func NewPatterns(categories []CategoryRule) *Patterns {
	lengths := []int{codeLengthPreferred, codeLengthSecondary}
	runs := make([]*regexp.Regexp, 0, len(lengths))
	for _, n := range lengths {
		runs = append(runs, regexp.MustCompile(`\d{`+strconv.Itoa(n)+`}`))
	}

	rules := make([]CategoryRule, len(categories))
	copy(rules, categories)

	return &Patterns{
		codeLengths: lengths,
		codeRuns:    runs,
		// Digit groups printed with periods or any kind of space between
		// them, including the no-break spaces PDF text layers emit.
		codeSpan: regexp.MustCompile(`[0-9.\s\p{Zs}]{30,120}`),
		// Optional "R$" marker, then either a thousands-grouped or a plain
		// number, always with a two digit comma decimal. Words may follow
		// directly; a third decimal digit may not.
		amount:     regexp.MustCompile(`(?:R\$\s?)?((?:\d{1,3}(?:\.\d{3})+|\d+),\d{2})(?:\D|$)`),
		categories: rules,
	}
}

// Categories returns the prefix table in registration order
func (p *Patterns) Categories() []CategoryRule {
	out := make([]CategoryRule, len(p.categories))
	copy(out, p.categories)
	return out
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Normalize turns every line break into a single space
func Normalize(text string) string {
	return lineBreaks.Replace(text)
}
