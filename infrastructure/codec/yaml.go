package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"mindboard/domain/board"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse decodes an envelope from YAML
func (c *YAMLCodec) Parse(r io.Reader) (board.Envelope, error) {
	var env board.Envelope
	if err := yaml.NewDecoder(r).Decode(&env); err != nil {
		return board.Envelope{}, malformed(fmt.Errorf("failed to parse YAML: %w", err))
	}
	return env, nil
}

// Export writes the envelope as YAML
func (c *YAMLCodec) Export(env board.Envelope, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(nonNil(env)); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}
