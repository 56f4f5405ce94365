package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentCode is a 44 or 47 digit payment slip line. The empty code means none was found.
type PaymentCode string

// Category is the coarse kind of bill, derived from the payment code prefix
type Category string

const (
	CategoryInternet    Category = "internet"
	CategoryElectricity Category = "luz"
	CategoryOther       Category = "outro"
	CategoryUnknown     Category = "desconhecido"
)

// Amount is a non-negative monetary value with exactly two fraction digits.
// It renders with a comma decimal separator and no grouping, e.g. "1234,56".
type Amount struct {
	d decimal.Decimal
}

// NewAmount rounds d to two fraction digits
func NewAmount(d decimal.Decimal) Amount {
	return Amount{d: d.Round(2)}
}

// ParseAmount parses a comma-decimal number such as "1.234,56" or "10,00".
// Periods are treated as grouping separators.
func ParseAmount(s string) (Amount, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	normalized = strings.Replace(normalized, ",", ".", 1)
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return Amount{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("negative amount %q", s)
	}
	return NewAmount(d), nil
}

// Decimal returns the underlying decimal value
func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

// GreaterThan reports whether a > b
func (a Amount) GreaterThan(b Amount) bool {
	return a.d.GreaterThan(b.d)
}

func (a Amount) String() string {
	return strings.Replace(a.d.StringFixed(2), ".", ",", 1)
}

// MarshalJSON encodes the amount as its comma-decimal string
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a comma-decimal string
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshaling amount: %w", err)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Attachment is one document attached to a message
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is the read-only input of one extraction: the body text plus its
// attachments in their original order.
type Message struct {
	Body        string
	Attachments []Attachment
}

// Result accumulates the billing facts found for one message.
// Fields only ever go from unset to set.
type Result struct {
	Code     PaymentCode `json:"code,omitempty"`
	Value    *Amount     `json:"value,omitempty"`
	Category Category    `json:"category"`

	// Materialized lists the storage paths of attachments written out while
	// processing the message.
	Materialized []string `json:"materialized,omitempty"`
}

// NewResult returns an empty result with an unknown category
func NewResult() *Result {
	return &Result{Category: CategoryUnknown}
}

// HasCode reports whether a payment code was found
func (r *Result) HasCode() bool {
	return r.Code != ""
}

// HasValue reports whether an amount was found
func (r *Result) HasValue() bool {
	return r.Value != nil
}

// Satisfied reports whether code, value and a resolved category are all present
func (r *Result) Satisfied() bool {
	return r.HasCode() && r.HasValue() && r.Category != CategoryUnknown
}

// Empty reports whether neither a code nor a value was found
func (r *Result) Empty() bool {
	return !r.HasCode() && !r.HasValue()
}

// Merge fills the fields of r that are still unset from candidate.
// The category is only upgraded away from unknown. It reports whether r changed.
func (r *Result) Merge(candidate *Result) bool {
	if candidate == nil {
		return false
	}
	changed := false
	if !r.HasCode() && candidate.HasCode() {
		r.Code = candidate.Code
		changed = true
	}
	if !r.HasValue() && candidate.HasValue() {
		v := *candidate.Value
		r.Value = &v
		changed = true
	}
	if r.Category == CategoryUnknown && candidate.Category != CategoryUnknown && candidate.Category != "" {
		r.Category = candidate.Category
		changed = true
	}
	return changed
}
