package compiler

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/aretw0/ludus/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Parser is responsible for converting raw artifact documents into an ArtifactSet.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes a JSON or YAML document holding a whole artifact set.
// JSON is accepted through the YAML decoder since it is a subset.
func (p *Parser) Parse(data []byte) (*domain.ArtifactSet, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse artifacts: %w", err)
	}
	return p.Decode(raw)
}

// ParseInto decodes a JSON or YAML document onto target with the same
// number handling as Parse.
func (p *Parser) ParseInto(data []byte, target any) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("empty document")
	}
	return p.decodeInto(raw, target)
}

// Decode maps an already decoded document onto an ArtifactSet.
func (p *Parser) Decode(raw map[string]any) (*domain.ArtifactSet, error) {
	var set domain.ArtifactSet
	if err := p.decodeInto(raw, &set); err != nil {
		return nil, fmt.Errorf("failed to decode artifacts: %w", err)
	}
	if set.GameID == "" {
		return nil, fmt.Errorf("artifacts missing gameId")
	}
	return &set, nil
}

// DecodeParts assembles an artifact set from separately stored halves, as
// produced by pipelines that emit schema, transitions and instructions as
// different documents.
func (p *Parser) DecodeParts(gameID, version string, schema, graph, instructions map[string]any) (*domain.ArtifactSet, error) {
	set := &domain.ArtifactSet{GameID: gameID, Version: version}
	if schema != nil {
		if err := p.decodeInto(schema, &set.Schema); err != nil {
			return nil, fmt.Errorf("failed to decode state schema: %w", err)
		}
	}
	if err := p.decodeInto(graph, &set.Graph); err != nil {
		return nil, fmt.Errorf("failed to decode transitions: %w", err)
	}
	if err := p.decodeInto(instructions, &set.Instructions); err != nil {
		return nil, fmt.Errorf("failed to decode instructions: %w", err)
	}
	return set, nil
}

func (p *Parser) decodeInto(raw map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook:       jsonNumberHook,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// jsonNumberHook turns json.Number (from strict loam documents) into plain
// Go numbers before they land in interface-typed fields.
func jsonNumberHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	n, ok := data.(json.Number)
	if !ok {
		return data, nil
	}
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	return n.Float64()
}
