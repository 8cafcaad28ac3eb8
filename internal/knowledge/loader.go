package knowledge

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_knowledge.yaml
var defaultKnowledge []byte

// Default returns a freshly parsed copy of the embedded knowledge base.
func Default() (*Base, error) {
	return Parse(defaultKnowledge)
}

// MustDefault is Default for package-level wiring and tests. It panics if the embedded data is invalid.
func MustDefault() *Base {
	kb, err := Default()
	if err != nil {
		panic(fmt.Sprintf("embedded knowledge base: %v", err))
	}
	return kb
}

// Load reads and validates a knowledge base file. An empty path returns the embedded default.
func Load(path string) (*Base, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base %s: %w", path, err)
	}

	kb, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("knowledge base %s: %w", path, err)
	}
	return kb, nil
}

// Parse decodes YAML knowledge base data and validates it. Unknown fields are rejected.
func Parse(data []byte) (*Base, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var kb Base
	if err := dec.Decode(&kb); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge base: %w", err)
	}

	if err := kb.Validate(); err != nil {
		return nil, err
	}
	return &kb, nil
}

// Marshal renders the knowledge base as YAML.
func (b *Base) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(b); err != nil {
		return nil, fmt.Errorf("failed to encode knowledge base: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode knowledge base: %w", err)
	}
	return buf.Bytes(), nil
}
