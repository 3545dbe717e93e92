package conceptmap

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Target is one ICD-11 code a NAMC code maps to.
type Target struct {
	Code        string `json:"code"`
	Display     string `json:"display"`
	Equivalence string `json:"equivalence,omitempty"`
}

// Element is one NAMC source code with its ICD-11 targets. Display carries
// the composite "System: Display" key.
type Element struct {
	Code    string   `json:"code"`
	Display string   `json:"display"`
	Target  []Target `json:"target"`
}

// Source is a reverse-lookup hit: the NAMC side of a mapping that points at
// a given ICD code.
type Source struct {
	Code    string `json:"code"`
	Display string `json:"display"`
}

// Store is what the resolver needs from a concept map: O(1)-ish lookup in
// both directions.
type Store interface {
	Forward(ctx context.Context, namcCode string) ([]Target, error)
	Reverse(ctx context.Context, icdCode string) ([]Source, error)
}

type resourceFile struct {
	ResourceType string  `json:"resourceType"`
	Group        []group `json:"group"`
}

type group struct {
	Source  string    `json:"source"`
	Target  string    `json:"target"`
	Element []Element `json:"element"`
}

// Map is the in-memory store, indexed both ways at load time.
type Map struct {
	forward map[string]Element
	reverse map[string][]Source
}

func NewMap(elements []Element) *Map {
	m := &Map{
		forward: make(map[string]Element, len(elements)),
		reverse: make(map[string][]Source),
	}
	for _, element := range elements {
		m.add(element)
	}
	return m
}

func (m *Map) add(element Element) {
	if element.Code == "" {
		return
	}
	m.forward[element.Code] = element
	for _, target := range element.Target {
		if target.Code == "" {
			continue
		}
		m.reverse[target.Code] = append(m.reverse[target.Code], Source{
			Code:    element.Code,
			Display: element.Display,
		})
	}
}

// LoadFile parses a FHIR ConceptMap resource and indexes every group element.
func LoadFile(path string) (*Map, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read concept map: %w", err)
	}
	var resource resourceFile
	if err := json.Unmarshal(content, &resource); err != nil {
		return nil, fmt.Errorf("parse concept map: %w", err)
	}
	if resource.ResourceType != "" && resource.ResourceType != "ConceptMap" {
		return nil, fmt.Errorf("unexpected resource type %q", resource.ResourceType)
	}

	m := &Map{forward: make(map[string]Element), reverse: make(map[string][]Source)}
	for _, g := range resource.Group {
		for _, element := range g.Element {
			m.add(element)
		}
	}
	if len(m.forward) == 0 {
		return nil, fmt.Errorf("concept map %s has no elements", path)
	}
	return m, nil
}

func (m *Map) Len() int {
	return len(m.forward)
}

// Elements returns all indexed elements, for persistence.
func (m *Map) Elements() []Element {
	elements := make([]Element, 0, len(m.forward))
	for _, element := range m.forward {
		elements = append(elements, element)
	}
	return elements
}

func (m *Map) Forward(_ context.Context, namcCode string) ([]Target, error) {
	element, ok := m.forward[strings.TrimSpace(namcCode)]
	if !ok {
		return nil, nil
	}
	return element.Target, nil
}

func (m *Map) Reverse(_ context.Context, icdCode string) ([]Source, error) {
	return m.reverse[strings.TrimSpace(icdCode)], nil
}
