// Package persona holds the interviewer profiles the generation stage
// builds its system prompts from. Personas are data, not code: a default
// set ships embedded in the binary and deployments may override or extend
// it with a YAML file.
package persona

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

//go:embed personas.yaml
var defaultPersonasYAML []byte

// Persona is a named interviewer profile. SystemPrompt is a template with
// {{name}}, {{role}}, {{position}}, {{industry}} and {{difficulty}} slots.
type Persona struct {
	ID           string `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	Role         string `yaml:"role" json:"role"`
	Personality  string `yaml:"personality" json:"personality"`
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`
}

type personaFile struct {
	Personas []Persona `yaml:"personas"`
}

// Registry is a read-only lookup of personas by ID.
type Registry struct {
	personas  map[string]Persona
	order     []string
	defaultID string
}

// NewRegistry loads the embedded default personas and, when path is
// non-empty, merges personas from that YAML file on top (same ID wins).
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{personas: make(map[string]Persona)}

	if err := r.merge(defaultPersonasYAML); err != nil {
		return nil, fmt.Errorf("parse embedded personas: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read persona file: %w", err)
		}
		if err := r.merge(data); err != nil {
			return nil, fmt.Errorf("parse persona file %s: %w", path, err)
		}
	}

	if len(r.order) == 0 {
		return nil, fmt.Errorf("no personas configured")
	}
	r.defaultID = r.order[0]
	return r, nil
}

func (r *Registry) merge(data []byte) error {
	var f personaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	for _, p := range f.Personas {
		if p.ID == "" || p.SystemPrompt == "" {
			return fmt.Errorf("persona %q missing id or system_prompt", p.Name)
		}
		if _, exists := r.personas[p.ID]; !exists {
			r.order = append(r.order, p.ID)
		}
		r.personas[p.ID] = p
	}
	return nil
}

// Get returns the persona for id, or an error for unknown IDs.
func (r *Registry) Get(id string) (Persona, error) {
	p, ok := r.personas[id]
	if !ok {
		return Persona{}, fmt.Errorf("persona %q not found", id)
	}
	return p, nil
}

// Default returns the first configured persona.
func (r *Registry) Default() Persona {
	return r.personas[r.defaultID]
}

// List returns all personas in configuration order.
func (r *Registry) List() []Persona {
	out := make([]Persona, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.personas[id])
	}
	return out
}
