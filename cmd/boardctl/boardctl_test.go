package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindboard/domain/board"
	"mindboard/infrastructure/codec"
)

func writeFixture(t *testing.T, name string) string {
	t.Helper()
	env := board.Envelope{
		ID:   "trip",
		Name: "Trip",
		Nodes: []board.Node{
			board.NewTextNode("n1", board.Position{X: 0, Y: 0}, "Trip", "<p>plan the <b>trip</b></p>"),
			board.NewTextNode("n2", board.Position{X: 0, Y: 0}, "Packing", ""),
		},
		Edges: []board.Edge{{ID: "e1", Source: "n1", Target: "n2"}},
	}
	path := filepath.Join(t.TempDir(), name)
	exporter, err := codec.ExporterFor(codec.FormatFromPath(path))
	require.NoError(t, err)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, exporter.Export(env, f))
	require.NoError(t, f.Close())
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeEnvelope(t *testing.T, s string) board.Envelope {
	t.Helper()
	env, err := codec.NewJSONCodec().Parse(strings.NewReader(s))
	require.NoError(t, err)
	return env
}

func TestLayoutCommand(t *testing.T) {
	path := writeFixture(t, "trip.json")

	out, err := run(t, "layout", path, "--direction", "TB")
	require.NoError(t, err)

	env := decodeEnvelope(t, out)
	require.Len(t, env.Nodes, 2)
	assert.Greater(t, env.Nodes[1].Position.Y, env.Nodes[0].Position.Y, "child is laid out below its parent")

	_, err = run(t, "layout", path, "--direction", "diagonal")
	assert.Error(t, err)
}

func TestPlaceCommand(t *testing.T) {
	path := writeFixture(t, "trip.yaml")

	out, err := run(t, "place", path, "--label", "Budget")
	require.NoError(t, err)

	var res struct {
		Position board.Position `json:"position"`
		Strategy string         `json:"strategy"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "anchor", res.Strategy)
	assert.Greater(t, res.Position.X, 0.0)
}

func TestContextCommand(t *testing.T) {
	path := writeFixture(t, "trip.json")

	out, err := run(t, "context", path, "--focal", "n2")
	require.NoError(t, err)
	assert.Contains(t, out, "Board structure:")
	assert.Contains(t, out, "Packing")
	assert.Contains(t, out, "Focus area:")
}

func TestConvertCommand(t *testing.T) {
	src := writeFixture(t, "trip.json")
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "trip.yml")
	_, err := run(t, "convert", src, yamlPath)
	require.NoError(t, err)

	mdPath := filepath.Join(dir, "trip.md")
	_, err = run(t, "convert", yamlPath, mdPath)
	require.NoError(t, err)

	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Trip")
	assert.Contains(t, string(md), "  - **Packing**")

	_, err = run(t, "convert", mdPath, filepath.Join(dir, "back.json"))
	assert.Error(t, err, "markdown is write-only")
}

func TestSuggestCommand(t *testing.T) {
	payload := `{"Gear":[{"title":"Tent","reason":"shelter"},{"title":"Stove","reason":"meals"}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": payload},
			}},
		})
	}))
	defer srv.Close()

	path := writeFixture(t, "trip.json")
	base := []string{"suggest", path, "--focal", "n2", "--api-key", "test", "--base-url", srv.URL + "/v1"}

	t.Run("prints the tree", func(t *testing.T) {
		out, err := run(t, base...)
		require.NoError(t, err)
		assert.Contains(t, out, "Tent")
		assert.Contains(t, out, `"status": "well_formed"`)
	})

	t.Run("applies to the board", func(t *testing.T) {
		out, err := run(t, append(base, "--apply")...)
		require.NoError(t, err)

		env := decodeEnvelope(t, out)
		assert.Len(t, env.Nodes, 5, "category plus two concepts")
		assert.Len(t, env.Edges, 4)
	})
}

func TestMissingFile(t *testing.T) {
	_, err := run(t, "context", filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
