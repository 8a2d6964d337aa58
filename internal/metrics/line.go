package metrics

import (
	"encoding/json"
	"fmt"
)

// Kind tags a breakdown line.
type Kind int

const (
	// KindBase is the starting quantity of a receipt.
	KindBase Kind = iota
	// KindAdd is a positive contribution; Value already carries the sign.
	KindAdd
	// KindSub is a deduction; Value already carries the sign.
	KindSub
	// KindSubText is a divisor shown as plain text rather than currency.
	KindSubText
)

var kindNames = [...]string{
	KindBase:    "base",
	KindAdd:     "add",
	KindSub:     "sub",
	KindSubText: "sub_text",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a wire name back to its Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("metrics: unknown line kind %q", s)
}

// MarshalJSON encodes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("metrics: cannot marshal %s", k)
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalYAML encodes the kind by name.
func (k Kind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// Line is one row of a receipt.
type Line struct {
	Label string  `json:"label" yaml:"label"`
	Value float64 `json:"value" yaml:"value"`
	Kind  Kind    `json:"kind"  yaml:"kind"`
}

func base(label string, v float64) Line    { return Line{Label: label, Value: v, Kind: KindBase} }
func add(label string, v float64) Line     { return Line{Label: label, Value: v, Kind: KindAdd} }
func sub(label string, v float64) Line     { return Line{Label: label, Value: v, Kind: KindSub} }
func divisor(label string, v float64) Line { return Line{Label: label, Value: v, Kind: KindSubText} }

// Sum adds every line value, which for a sum-identity receipt reproduces the
// metric. Divisor lines are skipped.
func Sum(lines []Line) float64 {
	var total float64
	for _, l := range lines {
		switch l.Kind {
		case KindBase, KindAdd, KindSub:
			total += l.Value
		case KindSubText:
		}
	}
	return total
}
