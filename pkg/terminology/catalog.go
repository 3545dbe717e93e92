package terminology

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ayushsetu/platform/pkg/common/logger"
	"gopkg.in/yaml.v3"
)

// Designation carries a vernacular rendering of a concept (Tamil, Sanskrit,
// Arabic depending on the system).
type Designation struct {
	Language string `json:"language,omitempty"`
	Value    string `json:"value"`
}

// Concept is one NAMC entry from a CodeSystem file, tagged with the AYUSH
// system it came from.
type Concept struct {
	Code        string        `json:"code"`
	Display     string        `json:"display"`
	Definition  string        `json:"definition,omitempty"`
	Designation []Designation `json:"designation,omitempty"`
	System      string        `json:"system"`
}

// CompositeDisplay is the "System: Display" key the converters and the
// concept map agree on.
func (c Concept) CompositeDisplay() string {
	return c.System + ": " + c.Display
}

// Vernacular returns the first designation value, or empty when the source
// file carried none.
func (c Concept) Vernacular() string {
	if len(c.Designation) == 0 {
		return ""
	}
	return c.Designation[0].Value
}

type codeSystemFile struct {
	Concept []Concept `json:"concept"`
}

// Manifest lists the NAMC CodeSystem files to load, one per AYUSH system.
type Manifest struct {
	Systems []ManifestEntry `yaml:"systems"`
}

type ManifestEntry struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
}

// Catalog is the in-memory NAMC corpus shared by the suggestion index, the
// fuzzy fallback, and the semantic index.
type Catalog struct {
	concepts []Concept
	byCode   map[string]Concept
}

func defaultManifest() Manifest {
	return Manifest{Systems: []ManifestEntry{
		{Name: "Siddha", File: "SiddhaJson.json"},
		{Name: "Ayurveda", File: "AyurvedaJson.json"},
		{Name: "Unani", File: "UnaniJson.json"},
	}}
}

// Load reads the yaml manifest and every CodeSystem file it names. Missing
// files are skipped with a warning so a partial corpus still serves.
func Load(manifestPath, dataDir string) (*Catalog, error) {
	manifest := defaultManifest()
	if manifestPath != "" {
		content, err := os.ReadFile(filepath.Clean(manifestPath))
		if err == nil {
			if err := yaml.Unmarshal(content, &manifest); err != nil {
				return nil, fmt.Errorf("parse terminology manifest: %w", err)
			}
		} else {
			logger.Log.WithError(err).WithField("path", manifestPath).Warn("Manifest not readable, using default system list")
		}
	}

	catalog := &Catalog{byCode: make(map[string]Concept)}
	for _, entry := range manifest.Systems {
		path := filepath.Join(dataDir, entry.File)
		content, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			logger.Log.WithError(err).WithField("path", path).Warn("Skipping terminology source")
			continue
		}
		var file codeSystemFile
		if err := json.Unmarshal(content, &file); err != nil {
			logger.Log.WithError(err).WithField("path", path).Warn("Skipping unparseable terminology source")
			continue
		}
		for _, concept := range file.Concept {
			concept.System = entry.Name
			catalog.add(concept)
		}
		logger.Log.WithFields(map[string]interface{}{
			"system":   entry.Name,
			"concepts": len(file.Concept),
		}).Info("Loaded terminology source")
	}

	if len(catalog.concepts) == 0 {
		return nil, fmt.Errorf("no NAMC concepts loaded from %s", dataDir)
	}
	return catalog, nil
}

// NewCatalog builds a catalog from already-tagged concepts. Used by tests and
// the map builder.
func NewCatalog(concepts []Concept) *Catalog {
	catalog := &Catalog{byCode: make(map[string]Concept)}
	for _, concept := range concepts {
		catalog.add(concept)
	}
	return catalog
}

func (c *Catalog) add(concept Concept) {
	if concept.Code == "" || concept.Display == "" {
		return
	}
	c.concepts = append(c.concepts, concept)
	if _, exists := c.byCode[concept.Code]; !exists {
		c.byCode[concept.Code] = concept
	}
}

func (c *Catalog) Len() int {
	return len(c.concepts)
}

// Concepts returns the corpus in load order.
func (c *Catalog) Concepts() []Concept {
	return c.concepts
}

// Lookup finds a concept by exact NAMC code.
func (c *Catalog) Lookup(code string) (Concept, bool) {
	concept, ok := c.byCode[strings.TrimSpace(code)]
	return concept, ok
}
