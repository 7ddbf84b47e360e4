package suggestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	pkgerrors "mindboard/pkg/errors"
)

// ParseOptions bounds what the boundary accepts.
type ParseOptions struct {
	// MaxDepth is the number of concept levels kept below a category.
	MaxDepth int
}

// DefaultParseOptions keeps three concept levels.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{MaxDepth: 3}
}

var (
	titleKeys  = []string{"title", "name", "idea", "label"}
	reasonKeys = []string{"reason", "description", "explanation", "rationale"}
	branchKeys = []string{"sub_branches", "subBranches", "children", "branches"}
)

type parser struct {
	opts  ParseOptions
	notes []string
}

func (p *parser) note(format string, args ...interface{}) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

// Parse validates a raw AI payload. It accepts an object mapping category
// names to concept lists, or a legacy flat list of strings which is placed
// in a single category. Syntactically broken JSON is repaired once; items
// that are not concepts become placeholders. Payloads that yield no
// category are rejected with a validation error.
func Parse(raw []byte, opts ParseOptions) (Result, error) {
	if opts.MaxDepth < 1 {
		opts.MaxDepth = DefaultParseOptions().MaxDepth
	}
	p := &parser{opts: opts}

	body := strings.TrimSpace(string(raw))
	if stripped, ok := stripFence(body); ok {
		body = stripped
		p.note("removed markdown code fence")
	}
	if body == "" {
		return Result{}, malformed("suggestion payload is empty", nil)
	}

	if !json.Valid([]byte(body)) {
		repaired, err := jsonrepair.JSONRepair(body)
		if err != nil {
			return Result{}, malformed("suggestion payload is not valid JSON", err)
		}
		body = repaired
		p.note("repaired malformed JSON")
	}

	data := []byte(body)
	var tree Tree
	switch firstByte(data) {
	case '{':
		t, err := p.parseObject(data)
		if err != nil {
			return Result{}, err
		}
		tree = t
	case '[':
		t, err := p.parseLegacy(data)
		if err != nil {
			return Result{}, err
		}
		tree = t
	default:
		return Result{}, malformed("suggestion payload must be an object or an array", nil)
	}

	if len(tree.Categories) == 0 {
		return Result{}, malformed("suggestion payload contains no categories", nil)
	}

	status := StatusWellFormed
	if len(p.notes) > 0 {
		status = StatusRepaired
	}
	return Result{Tree: tree, Status: status, Notes: p.notes}, nil
}

func (p *parser) parseObject(data []byte) (Tree, error) {
	fields, err := orderedObject(data)
	if err != nil {
		return Tree{}, malformed("suggestion payload is not a JSON object", err)
	}

	// A single wrapping key such as {"suggestions": {...}} is unwrapped.
	if len(fields) == 1 && firstByte(fields[0].value) == '{' && holdsCategories(fields[0].value) {
		p.note("unwrapped %q", fields[0].key)
		return p.parseObject(fields[0].value)
	}

	var tree Tree
	for _, f := range fields {
		name := strings.TrimSpace(f.key)
		if name == "" {
			p.note("dropped category with empty name")
			continue
		}
		var concepts []Concept
		switch firstByte(f.value) {
		case '[':
			concepts = p.parseItems(f.value, 1)
		case '"', '{':
			p.note("category %q was not a list", name)
			concepts = []Concept{p.parseItem(f.value, 1)}
		default:
			p.note("dropped category %q with unusable value", name)
			continue
		}
		if len(concepts) == 0 {
			p.note("dropped empty category %q", name)
			continue
		}
		tree.Categories = append(tree.Categories, Category{Name: name, Concepts: concepts})
	}
	return tree, nil
}

func (p *parser) parseLegacy(data []byte) (Tree, error) {
	concepts := p.parseItems(data, 1)
	if len(concepts) == 0 {
		return Tree{}, nil
	}
	p.note("coerced flat list into category %q", LegacyCategory)
	return Tree{Categories: []Category{{Name: LegacyCategory, Concepts: concepts}}}, nil
}

func (p *parser) parseItems(data []byte, depth int) []Concept {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		p.note("ignored unreadable list")
		return nil
	}
	out := make([]Concept, 0, len(items))
	for _, item := range items {
		out = append(out, p.parseItem(item, depth))
	}
	return out
}

func (p *parser) parseItem(data json.RawMessage, depth int) Concept {
	switch firstByte(data) {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil && strings.TrimSpace(s) != "" {
			return Concept{Title: strings.TrimSpace(s), Reason: NoReason}
		}
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err == nil {
			return p.parseConcept(fields, depth)
		}
	}
	p.note("replaced malformed item with placeholder")
	return Concept{Title: UntitledConcept, Reason: NoReason}
}

func (p *parser) parseConcept(fields map[string]json.RawMessage, depth int) Concept {
	c := Concept{
		Title:  stringField(fields, titleKeys),
		Reason: stringField(fields, reasonKeys),
	}
	if c.Title == "" {
		c.Title = UntitledConcept
		p.note("filled missing title")
	}
	if c.Reason == "" {
		c.Reason = NoReason
		p.note("filled missing reason for %q", c.Title)
	}

	for _, key := range branchKeys {
		raw, ok := fields[key]
		if !ok || firstByte(raw) != '[' {
			continue
		}
		if depth >= p.opts.MaxDepth {
			p.note("truncated branches of %q below depth %d", c.Title, p.opts.MaxDepth)
			break
		}
		c.SubBranches = p.parseItems(raw, depth+1)
		if len(c.SubBranches) == 0 {
			c.SubBranches = nil
		}
		break
	}
	return c
}

// holdsCategories reports whether every value of the object is a list or
// an object, which distinguishes a wrapper from a lone concept.
func holdsCategories(data []byte) bool {
	inner, err := orderedObject(data)
	if err != nil || len(inner) == 0 {
		return false
	}
	for _, f := range inner {
		if b := firstByte(f.value); b != '[' && b != '{' {
			return false
		}
	}
	return true
}

func stringField(fields map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

type field struct {
	key   string
	value json.RawMessage
}

// orderedObject decodes the top level of a JSON object keeping key order.
func orderedObject(data []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var out []field
	seen := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		// Later duplicates win, as with encoding/json, but keep first position.
		if i, dup := seen[key]; dup {
			out[i].value = value
			continue
		}
		seen[key] = len(out)
		out = append(out, field{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}

func stripFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return s, false
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s), true
}

func firstByte(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}

func malformed(message string, cause error) error {
	err := pkgerrors.NewValidationError(message).WithCode(pkgerrors.CodeMalformedTree)
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}
