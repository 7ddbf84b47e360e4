package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindboard/domain/board"
	pkgerrors "mindboard/pkg/errors"
)

func sampleEnvelope() board.Envelope {
	return board.Envelope{
		ID:   "b1",
		Name: "Trip",
		Nodes: []board.Node{
			board.NewTextNode("1", board.Position{X: 0, Y: 0}, "Main Idea", "<p>plan the <strong>trip</strong></p>"),
			board.NewTextNode("2", board.Position{X: 300, Y: 0}, "Packing", ""),
			board.NewTextNode("3", board.Position{X: 600, Y: 0}, "Tent", ""),
			board.NewTextNode("4", board.Position{X: 0, Y: 300}, "Budget", "<p>cheap</p>"),
		},
		Edges: []board.Edge{
			{ID: "e1", Source: "1", Target: "2"},
			{ID: "e2", Source: "2", Target: "3", Style: &board.EdgeStyle{Stroke: "#000"}},
		},
		Timestamp: time.Date(2024, 7, 1, 8, 30, 0, 0, time.UTC),
	}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			exp, err := ExporterFor(format)
			require.NoError(t, err)
			imp, err := ImporterFor(format)
			require.NoError(t, err)

			env := sampleEnvelope()
			var buf bytes.Buffer
			require.NoError(t, exp.Export(env, &buf))

			got, err := imp.Parse(&buf)
			require.NoError(t, err)
			assert.Equal(t, env.ID, got.ID)
			assert.Equal(t, env.Name, got.Name)
			assert.True(t, env.Timestamp.Equal(got.Timestamp))
			assert.True(t, board.Snapshot{Nodes: env.Nodes, Edges: env.Edges}.
				Equal(board.Snapshot{Nodes: got.Nodes, Edges: got.Edges}))
		})
	}
}

func TestParseMissingArrays(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		input     string
		nilNodes  bool
		nilEdges  bool
		malformed bool
	}{
		{name: "json empty arrays", format: "json", input: `{"name":"x","nodes":[],"edges":[]}`},
		{name: "json missing edges", format: "json", input: `{"name":"x","nodes":[]}`, nilEdges: true},
		{name: "yaml missing nodes", format: "yaml", input: "name: x\nedges: []\n", nilNodes: true},
		{name: "json garbage", format: "json", input: `{"nodes": [`, malformed: true},
		{name: "yaml garbage", format: "yaml", input: "nodes: [\n", malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp, err := ImporterFor(tt.format)
			require.NoError(t, err)

			env, err := imp.Parse(strings.NewReader(tt.input))
			if tt.malformed {
				require.Error(t, err)
				assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeMalformedImport))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.nilNodes, env.Nodes == nil)
			assert.Equal(t, tt.nilEdges, env.Edges == nil)
		})
	}
}

func TestMarkdownOutline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownCodec().Export(sampleEnvelope(), &buf))

	want := strings.Join([]string{
		"# Trip",
		"",
		"- **Main Idea**",
		"  plan the **trip**",
		"  - **Packing**",
		"    - **Tent**",
		"- **Budget**",
		"  cheap",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestMarkdownCycleStillListsEveryNode(t *testing.T) {
	env := board.Envelope{
		Name: "Loop",
		Nodes: []board.Node{
			board.NewTextNode("a", board.Position{}, "A", ""),
			board.NewTextNode("b", board.Position{}, "B", ""),
		},
		Edges: []board.Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "a"},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownCodec().Export(env, &buf))
	assert.Equal(t, "# Loop\n\n- **A**\n  - **B**\n", buf.String())
}

func TestFormatLookup(t *testing.T) {
	assert.Equal(t, "yaml", FormatFromPath("board.YML"))
	assert.Equal(t, "markdown", FormatFromPath("notes.md"))
	assert.Equal(t, "json", FormatFromPath("board"))

	_, err := ImporterFor("markdown")
	assert.True(t, pkgerrors.IsValidation(err), "markdown is export only")
	_, err = ExporterFor("xml")
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, "application/yaml", ContentType("yml"))
}
