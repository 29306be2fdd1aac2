package fs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/entitydoc/pkg/core"
)

// Serializer defines how an entity is stored in a specific file format.
type Serializer interface {
	// Parse reads an entity from r.
	Parse(r io.Reader) (core.Entity, error)
	// Serialize converts the entity to bytes.
	Serialize(e core.Entity) ([]byte, error)
}

// DefaultSerializers returns the serializers keyed by file extension.
func DefaultSerializers() map[string]Serializer {
	return map[string]Serializer{
		".json": JSONSerializer{},
		".yaml": YAMLSerializer{},
		".yml":  YAMLSerializer{},
	}
}

// --- JSON Serializer ---

// JSONSerializer stores entities as indented JSON.
type JSONSerializer struct{}

func (JSONSerializer) Parse(r io.Reader) (core.Entity, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Entity{}, err
	}
	var e core.Entity
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&e); err != nil {
		return core.Entity{}, fmt.Errorf("invalid json: %w", err)
	}
	return core.NormalizeNumbers(e), nil
}

func (JSONSerializer) Serialize(e core.Entity) ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}

// --- YAML Serializer ---

// YAMLSerializer stores entities as YAML.
type YAMLSerializer struct{}

func (YAMLSerializer) Parse(r io.Reader) (core.Entity, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Entity{}, err
	}
	var e core.Entity
	if err := yaml.Unmarshal(data, &e); err != nil {
		return core.Entity{}, fmt.Errorf("invalid yaml: %w", err)
	}
	return core.NormalizeNumbers(e), nil
}

func (YAMLSerializer) Serialize(e core.Entity) ([]byte, error) {
	return yaml.Marshal(e)
}
