package codec

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"mindboard/domain/board"
	"mindboard/pkg/richtext"
)

// MarkdownCodec exports a board as a nested markdown outline. Nodes without
// parents start top-level bullets; children nest under their first parent.
type MarkdownCodec struct{}

// NewMarkdownCodec creates a new markdown codec
func NewMarkdownCodec() *MarkdownCodec {
	return &MarkdownCodec{}
}

// Format returns the codec format identifier
func (c *MarkdownCodec) Format() string {
	return "markdown"
}

// Export writes the outline
func (c *MarkdownCodec) Export(env board.Envelope, w io.Writer) error {
	bw := bufio.NewWriter(w)
	snap := board.Snapshot{Nodes: env.Nodes, Edges: env.Edges}

	title := env.Name
	if title == "" {
		title = "Untitled board"
	}
	fmt.Fprintf(bw, "# %s\n", title)

	o := outliner{snap: snap, w: bw, visited: make(map[string]bool, len(env.Nodes))}
	if len(env.Nodes) > 0 {
		bw.WriteString("\n")
	}
	for _, n := range env.Nodes {
		if len(snap.Parents(n.ID)) == 0 {
			o.write(n, 0)
		}
	}
	// Nodes only reachable through a cycle
	for _, n := range env.Nodes {
		if !o.visited[n.ID] {
			o.write(n, 0)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write markdown: %w", err)
	}
	return nil
}

type outliner struct {
	snap    board.Snapshot
	w       *bufio.Writer
	visited map[string]bool
}

func (o *outliner) write(n board.Node, depth int) {
	if o.visited[n.ID] {
		return
	}
	o.visited[n.ID] = true

	indent := strings.Repeat("  ", depth)
	label := strings.TrimSpace(n.Data.Label)
	if label == "" {
		label = n.ID
	}
	fmt.Fprintf(o.w, "%s- **%s**\n", indent, label)

	if body := richtext.Markdown(n.Data.Content.Text); body != "" {
		for _, line := range strings.Split(body, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			fmt.Fprintf(o.w, "%s  %s\n", indent, line)
		}
	}
	for _, img := range n.Data.Content.Images {
		fmt.Fprintf(o.w, "%s  ![](%s)\n", indent, img)
	}

	for _, childID := range o.snap.Children(n.ID) {
		if child, ok := o.snap.NodeByID(childID); ok {
			o.write(child, depth+1)
		}
	}
}
