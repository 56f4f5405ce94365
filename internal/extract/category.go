package extract

import "strings"

// Classifier maps payment codes to bill categories using the prefix table
type Classifier struct {
	patterns *Patterns
}

// NewClassifier creates a Classifier
func NewClassifier(patterns *Patterns) *Classifier {
	return &Classifier{patterns: patterns}
}

// Classify returns the category of the first matching prefix
func (c *Classifier) Classify(code PaymentCode) Category {
	if code == "" {
		return CategoryUnknown
	}
	for _, rule := range c.patterns.categories {
		if strings.HasPrefix(string(code), rule.Prefix) {
			return rule.Category
		}
	}
	return CategoryOther
}
