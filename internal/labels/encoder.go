// Package labels encodes categorical labels as dense integer codes.
package labels

import (
	"fmt"
	"slices"
)

// Sentinel is the integer form of Unseen.
const Sentinel = -1

// Code is the result of encoding a label: either a known code or Unseen.
type Code struct {
	value int
	known bool
}

// Known returns the code for a label present in a codebook.
func Known(v int) Code {
	return Code{value: v, known: true}
}

// Unseen is the code for a label that was not present when the codebook was fit.
var Unseen = Code{value: Sentinel}

// Value returns the code and whether the label was known.
func (c Code) Value() (int, bool) {
	return c.value, c.known
}

// Int returns the code, or Sentinel for Unseen.
func (c Code) Int() int {
	if !c.known {
		return Sentinel
	}
	return c.value
}

// Feature returns the code as a model input.
func (c Code) Feature() float64 {
	return float64(c.Int())
}

func (c Code) String() string {
	if !c.known {
		return "unseen"
	}
	return fmt.Sprintf("%d", c.value)
}

// Codebook maps labels to codes and back. It is built by FitTransform and not
// modified afterwards.
type Codebook struct {
	codes  map[string]int
	labels []string
}

// FitTransform assigns codes 0..k-1 to the k distinct values in sorted order
// and returns the code of every value alongside the codebook.
func FitTransform(values []string) ([]int, *Codebook) {
	distinct := slices.Clone(values)
	slices.Sort(distinct)
	distinct = slices.Compact(distinct)

	cb := &Codebook{
		codes:  make(map[string]int, len(distinct)),
		labels: distinct,
	}
	for i, label := range distinct {
		cb.codes[label] = i
	}

	codes := make([]int, len(values))
	for i, v := range values {
		codes[i] = cb.codes[v]
	}
	return codes, cb
}

// Encode looks up label. Labels outside the codebook are Unseen, not an error.
func (cb *Codebook) Encode(label string) Code {
	if v, ok := cb.codes[label]; ok {
		return Known(v)
	}
	return Unseen
}

// Decode returns the label for code.
func (cb *Codebook) Decode(code int) (string, bool) {
	if code < 0 || code >= len(cb.labels) {
		return "", false
	}
	return cb.labels[code], true
}

// Labels returns the distinct labels in code order.
func (cb *Codebook) Labels() []string {
	return slices.Clone(cb.labels)
}

// Len returns the number of distinct labels.
func (cb *Codebook) Len() int {
	return len(cb.labels)
}
