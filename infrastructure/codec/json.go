package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"mindboard/domain/board"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse decodes an envelope. Missing node or edge arrays are left nil so the
// import is rejected as a whole.
func (c *JSONCodec) Parse(r io.Reader) (board.Envelope, error) {
	var env board.Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return board.Envelope{}, malformed(fmt.Errorf("failed to parse JSON: %w", err))
	}
	return env, nil
}

// Export writes the envelope as indented JSON
func (c *JSONCodec) Export(env board.Envelope, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(nonNil(env)); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func nonNil(env board.Envelope) board.Envelope {
	if env.Nodes == nil {
		env.Nodes = []board.Node{}
	}
	if env.Edges == nil {
		env.Edges = []board.Edge{}
	}
	return env
}
