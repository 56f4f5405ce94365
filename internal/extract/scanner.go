package extract

// Scanner runs the code, value and category extractors over one text blob.
// It keeps no state between calls.
type Scanner struct {
	codes      *CodeExtractor
	values     *ValueExtractor
	classifier *Classifier
}

// NewScanner creates a Scanner over the given pattern library
func NewScanner(patterns *Patterns) *Scanner {
	return &Scanner{
		codes:      NewCodeExtractor(patterns),
		values:     NewValueExtractor(patterns),
		classifier: NewClassifier(patterns),
	}
}

// Scan normalizes text and extracts whatever it can from it
func (s *Scanner) Scan(text string) *Result {
	blob := Normalize(text)
	result := NewResult()

	if code, ok := s.codes.Extract(blob); ok {
		result.Code = code
	}
	if value, ok := s.values.Extract(blob); ok {
		result.Value = &value
	}
	result.Category = s.classifier.Classify(result.Code)

	return result
}
