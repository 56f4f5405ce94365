package extract

import "strings"

// Span is the byte range of a match inside a normalized blob
type Span struct {
	Start int
	End   int
}

// codeStep is one stage of the code cascade
type codeStep func(blob string) (PaymentCode, Span, bool)

// CodeExtractor recovers a payment code from free text. It tries, in order:
// an exact 47 digit run, an exact 44 digit run, a span of digits broken up by
// spaces or periods, and finally every digit in the blob.
type CodeExtractor struct {
	patterns *Patterns
}

// NewCodeExtractor creates a CodeExtractor
func NewCodeExtractor(patterns *Patterns) *CodeExtractor {
	return &CodeExtractor{patterns: patterns}
}

// Extract returns the first payment code the cascade finds
func (e *CodeExtractor) Extract(blob string) (PaymentCode, bool) {
	code, _, ok := e.Find(blob)
	return code, ok
}

// Find is Extract plus the span of blob the code was taken from
func (e *CodeExtractor) Find(blob string) (PaymentCode, Span, bool) {
	for _, step := range e.steps() {
		if code, span, ok := step(blob); ok {
			return code, span, true
		}
	}
	return "", Span{}, false
}

func (e *CodeExtractor) steps() []codeStep {
	steps := make([]codeStep, 0, len(e.patterns.codeRuns)+2)
	for _, run := range e.patterns.codeRuns {
		run := run
		steps = append(steps, func(blob string) (PaymentCode, Span, bool) {
			loc := run.FindStringIndex(blob)
			if loc == nil {
				return "", Span{}, false
			}
			return PaymentCode(blob[loc[0]:loc[1]]), Span{Start: loc[0], End: loc[1]}, true
		})
	}
	return append(steps, e.separatedSpan, e.harvest)
}

func (e *CodeExtractor) separatedSpan(blob string) (PaymentCode, Span, bool) {
	for _, loc := range e.patterns.codeSpan.FindAllStringIndex(blob, -1) {
		if code, ok := e.truncate(digitsOnly(blob[loc[0]:loc[1]])); ok {
			return code, Span{Start: loc[0], End: loc[1]}, true
		}
	}
	return "", Span{}, false
}

// harvest is the last resort: every digit in the blob, in order.
// It can stitch unrelated numbers together.
func (e *CodeExtractor) harvest(blob string) (PaymentCode, Span, bool) {
	code, ok := e.truncate(digitsOnly(blob))
	if !ok {
		return "", Span{}, false
	}
	return code, Span{Start: 0, End: len(blob)}, true
}

// truncate cuts digits down to the longest accepted code length it can fill
func (e *CodeExtractor) truncate(digits string) (PaymentCode, bool) {
	for _, n := range e.patterns.codeLengths {
		if len(digits) >= n {
			return PaymentCode(digits[:n]), true
		}
	}
	return "", false
}

// digitsOnly keeps ASCII digits; multi-byte separators such as U+00A0 never
// contain bytes in that range.
func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
