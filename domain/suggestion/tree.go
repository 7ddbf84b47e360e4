// Package suggestion validates AI suggestion payloads into a closed,
// well-typed tree before anything touches the board.
package suggestion

import (
	"bytes"
	"encoding/json"
)

const (
	// LegacyCategory holds suggestions that arrived as a flat string list.
	LegacyCategory = "Suggestions"
	// UntitledConcept replaces a missing title.
	UntitledConcept = "Untitled idea"
	// NoReason replaces a missing reason.
	NoReason = "No reason provided"
)

// Concept is one suggested idea, optionally with nested ideas.
type Concept struct {
	Title       string    `json:"title"`
	Reason      string    `json:"reason"`
	SubBranches []Concept `json:"sub_branches,omitempty"`
}

// Leaves counts the concept itself when it has no children, otherwise the
// leaves below it.
func (c Concept) Leaves() int {
	if len(c.SubBranches) == 0 {
		return 1
	}
	total := 0
	for _, s := range c.SubBranches {
		total += s.Leaves()
	}
	return total
}

// Count returns the number of concepts in the subtree, c included.
func (c Concept) Count() int {
	total := 1
	for _, s := range c.SubBranches {
		total += s.Count()
	}
	return total
}

// Category groups concepts under a heading.
type Category struct {
	Name     string    `json:"name"`
	Concepts []Concept `json:"concepts"`
}

// Leaves is the number of rows the category occupies when laid out.
func (c Category) Leaves() int {
	total := 0
	for _, con := range c.Concepts {
		total += con.Leaves()
	}
	if total == 0 {
		return 1
	}
	return total
}

// Tree is an ordered mapping of category name to concepts.
type Tree struct {
	Categories []Category
}

// Count returns the number of nodes the tree materialises into: one per
// category plus one per concept.
func (t Tree) Count() int {
	total := 0
	for _, c := range t.Categories {
		total++
		for _, con := range c.Concepts {
			total += con.Count()
		}
	}
	return total
}

// MarshalJSON encodes the tree as a JSON object preserving category order.
func (t Tree) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range t.Categories {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		concepts := c.Concepts
		if concepts == nil {
			concepts = []Concept{}
		}
		val, err := json.Marshal(concepts)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON applies the same boundary validation as Parse.
func (t *Tree) UnmarshalJSON(data []byte) error {
	res, err := Parse(data, DefaultParseOptions())
	if err != nil {
		return err
	}
	*t = res.Tree
	return nil
}

// Status is the boundary validation outcome.
type Status string

const (
	StatusWellFormed Status = "well_formed"
	StatusRepaired   Status = "repaired"
)

// Result is a validated tree together with what had to be repaired.
type Result struct {
	Tree   Tree     `json:"tree"`
	Status Status   `json:"status"`
	Notes  []string `json:"notes,omitempty"`
}

// Repaired reports whether any repair was applied.
func (r Result) Repaired() bool { return r.Status == StatusRepaired }
