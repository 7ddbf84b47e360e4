// Package serializer renders a board around a focal node as text context
// for an AI collaborator.
package serializer

import (
	"fmt"
	"strings"

	"mindboard/domain/board"
	pkgerrors "mindboard/pkg/errors"
	"mindboard/pkg/richtext"
)

// FocalMarker is appended to the focal node's line in the tree.
const FocalMarker = "[focal]"

// Relation describes how an entry relates to the focal node.
type Relation string

const (
	RelationFocal   Relation = "focal"
	RelationParent  Relation = "parent"
	RelationSibling Relation = "sibling"
	RelationChild   Relation = "child"
)

// Entry is one node of the flat context list.
type Entry struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Content  string   `json:"content"`
	Relation Relation `json:"relation"`
}

// Context is the serialised view of a board around a focal node.
type Context struct {
	Tree    string  `json:"tree"`
	Entries []Entry `json:"entries"`
}

// Serialize builds the ASCII tree of the whole board and the flat list of
// nodes surrounding focalID. An empty focalID yields only the tree.
func Serialize(snap board.Snapshot, focalID string) (Context, error) {
	if focalID != "" && !snap.HasNode(focalID) {
		return Context{}, pkgerrors.NewNotFoundError(fmt.Sprintf("focal node %q", focalID))
	}
	return Context{
		Tree:    Tree(snap, focalID),
		Entries: Neighbourhood(snap, focalID),
	}, nil
}

// Tree renders the board as an indented tree starting at every root. Nodes
// reachable only through a cycle are rendered afterwards, starting from the
// first unvisited node in document order. Each node appears once.
func Tree(snap board.Snapshot, focalID string) string {
	children := make(map[string][]string, len(snap.Nodes))
	hasParent := make(map[string]bool, len(snap.Nodes))
	for _, e := range snap.Edges {
		if e.Source == e.Target {
			continue
		}
		children[e.Source] = append(children[e.Source], e.Target)
		hasParent[e.Target] = true
	}
	byID := make(map[string]board.Node, len(snap.Nodes))
	for _, n := range snap.Nodes {
		byID[n.ID] = n
	}

	var b strings.Builder
	visited := make(map[string]bool, len(snap.Nodes))

	var walk func(id, prefix string, last, root bool)
	walk = func(id, prefix string, last, root bool) {
		visited[id] = true
		line := DisplayLabel(byID[id])
		if id == focalID {
			line += " " + FocalMarker
		}

		childPrefix := prefix
		switch {
		case root:
			b.WriteString(line)
		case last:
			b.WriteString(prefix + "`-- " + line)
			childPrefix = prefix + "    "
		default:
			b.WriteString(prefix + "|-- " + line)
			childPrefix = prefix + "|   "
		}
		b.WriteByte('\n')

		var pending []string
		for _, c := range children[id] {
			if !visited[c] && !contains(pending, c) {
				pending = append(pending, c)
			}
		}
		for i, c := range pending {
			if visited[c] {
				continue
			}
			walk(c, childPrefix, i == len(pending)-1, false)
		}
	}

	for _, n := range snap.Nodes {
		if !hasParent[n.ID] && !visited[n.ID] {
			walk(n.ID, "", true, true)
		}
	}
	for _, n := range snap.Nodes {
		if !visited[n.ID] {
			walk(n.ID, "", true, true)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Neighbourhood lists the focal node, its parents, its siblings and its
// children, each node at most once.
func Neighbourhood(snap board.Snapshot, focalID string) []Entry {
	focal, ok := snap.NodeByID(focalID)
	if !ok {
		return nil
	}

	seen := map[string]bool{}
	var out []Entry
	add := func(id string, rel Relation) {
		if seen[id] {
			return
		}
		n, ok := snap.NodeByID(id)
		if !ok {
			return
		}
		seen[id] = true
		out = append(out, Entry{
			ID:       n.ID,
			Label:    n.Data.Label,
			Content:  richtext.PlainText(n.Data.Content.Text),
			Relation: rel,
		})
	}

	add(focal.ID, RelationFocal)
	parents := snap.Parents(focal.ID)
	for _, p := range parents {
		add(p, RelationParent)
	}
	for _, p := range parents {
		for _, s := range snap.Children(p) {
			add(s, RelationSibling)
		}
	}
	for _, c := range snap.Children(focal.ID) {
		add(c, RelationChild)
	}
	return out
}

// DisplayLabel is the label, or the first line of the content when the
// label is blank, or the id as a last resort.
func DisplayLabel(n board.Node) string {
	if l := strings.TrimSpace(n.Data.Label); l != "" {
		return l
	}
	if text := richtext.PlainText(n.Data.Content.Text); text != "" {
		return strings.SplitN(text, "\n", 2)[0]
	}
	return n.ID
}

// Render formats the context as a single prompt section.
func (c Context) Render() string {
	var b strings.Builder
	b.WriteString("Board structure:\n")
	b.WriteString(c.Tree)
	if len(c.Entries) > 0 {
		b.WriteString("\n\nFocus area:\n")
		for _, e := range c.Entries {
			fmt.Fprintf(&b, "- (%s) %s", e.Relation, e.Label)
			if e.Content != "" {
				b.WriteString(": " + strings.ReplaceAll(e.Content, "\n", " "))
			}
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
