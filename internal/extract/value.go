package extract

// ValueExtractor recovers the billed amount from free text.
// Every currency-looking number is a candidate and the largest one wins, so a
// total or late-payment amount beats a discount printed earlier in the text.
type ValueExtractor struct {
	patterns *Patterns
}

// NewValueExtractor creates a ValueExtractor
func NewValueExtractor(patterns *Patterns) *ValueExtractor {
	return &ValueExtractor{patterns: patterns}
}

// Candidates returns every parsable amount in blob, left to right
func (e *ValueExtractor) Candidates(blob string) []Amount {
	matches := e.patterns.amount.FindAllStringSubmatch(blob, -1)
	amounts := make([]Amount, 0, len(matches))
	for _, m := range matches {
		a, err := ParseAmount(m[1])
		if err != nil {
			continue
		}
		amounts = append(amounts, a)
	}
	return amounts
}

// Extract returns the largest candidate amount
func (e *ValueExtractor) Extract(blob string) (Amount, bool) {
	candidates := e.Candidates(blob)
	if len(candidates) == 0 {
		return Amount{}, false
	}
	best := candidates[0]
	for _, a := range candidates[1:] {
		if a.GreaterThan(best) {
			best = a
		}
	}
	return best, true
}
