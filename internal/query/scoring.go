package query

import (
	"fmt"
	"math"
)

// Modifier shapes a numeric field value before it is weighted.
type Modifier string

const (
	ModifierNone  Modifier = "none"
	ModifierSqrt  Modifier = "sqrt"
	ModifierLog1p Modifier = "log1p"
)

// Apply shapes v. Negative inputs are clamped to zero. Log1p uses the
// common logarithm, log10(1+v), which is the definition the search engine
// applies to field_value_factor.
func (m Modifier) Apply(v float64) float64 {
	switch m {
	case ModifierSqrt:
		return math.Sqrt(math.Max(v, 0))
	case ModifierLog1p:
		return math.Log10(1 + math.Max(v, 0))
	default:
		return v
	}
}

// Document exposes the field values that scoring contributions read.
type Document interface {
	Number(field string) (float64, bool)
	Keyword(field string) (string, bool)
}

// Contribution is one named additive term of the final score.
//
// With Equals set it adds Weight when the keyword field equals the value.
// Otherwise it adds Factor * Modifier(field value), using Missing when the
// document lacks the field.
type Contribution struct {
	Name     string
	Field    string
	Modifier Modifier
	Factor   float64
	Missing  float64
	Equals   *Term
	Weight   float64
}

// Evaluate computes the contribution for doc.
func (c Contribution) Evaluate(doc Document) float64 {
	if c.Equals != nil {
		v, ok := doc.Keyword(c.Equals.Field)
		if ok && v == fmt.Sprint(c.Equals.Value) {
			return c.Weight
		}
		return 0
	}

	v, ok := doc.Number(c.Field)
	if !ok {
		v = c.Missing
	}
	return c.Factor * c.Modifier.Apply(v)
}

// Sum is the combination rule for scores: a plain sum.
func Sum(base float64, parts ...float64) float64 {
	total := base
	for _, p := range parts {
		total += p
	}
	return total
}

// Scoring is a score-transformation stage layered over the base relevance.
type Scoring struct {
	Contributions []Contribution
}

// Combine adds every contribution for doc to the base score.
func (s *Scoring) Combine(base float64, doc Document) float64 {
	if s == nil {
		return base
	}
	parts := make([]float64, 0, len(s.Contributions))
	for _, c := range s.Contributions {
		parts = append(parts, c.Evaluate(doc))
	}
	return Sum(base, parts...)
}
