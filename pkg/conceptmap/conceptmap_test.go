package conceptmap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleResource = `{
  "resourceType": "ConceptMap",
  "group": [
    {
      "source": "https://ndhm.gov.in/fhir/CodeSystem/namc",
      "target": "http://id.who.int/icd11/mms",
      "element": [
        {
          "code": "ABB1.1",
          "display": "Siddha: Obstructive Jaundice",
          "target": [
            {"code": "ME20.1", "display": "Jaundice", "equivalence": "relatedto"},
            {"code": "DB90", "display": "Biliary obstruction", "equivalence": "relatedto"}
          ]
        },
        {
          "code": "AYU-42",
          "display": "Ayurveda: Kamala",
          "target": [
            {"code": "ME20.1", "display": "Jaundice", "equivalence": "relatedto"}
          ]
        }
      ]
    }
  ]
}`

func writeResource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conceptmap.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write resource: %v", err)
	}
	return path
}

func TestLoadFileIndexesBothDirections(t *testing.T) {
	m, err := LoadFile(writeResource(t, sampleResource))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 elements, got %d", m.Len())
	}

	targets, err := m.Forward(context.Background(), "ABB1.1")
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if len(targets) != 2 || targets[0].Code != "ME20.1" {
		t.Fatalf("unexpected targets: %+v", targets)
	}

	sources, err := m.Reverse(context.Background(), "ME20.1")
	if err != nil {
		t.Fatalf("reverse failed: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected both NAMC sources for ME20.1, got %+v", sources)
	}
	if sources[0].Display != "Siddha: Obstructive Jaundice" {
		t.Fatalf("reverse hits must carry the composite display, got %q", sources[0].Display)
	}
}

func TestForwardMissTrimsWhitespace(t *testing.T) {
	m, err := LoadFile(writeResource(t, sampleResource))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	targets, err := m.Forward(context.Background(), " ABB1.1 ")
	if err != nil || len(targets) != 2 {
		t.Fatalf("expected trimmed lookup to hit, got %+v %v", targets, err)
	}
	if targets, _ := m.Forward(context.Background(), "nope"); targets != nil {
		t.Fatalf("expected nil for unmapped code, got %+v", targets)
	}
}

func TestLoadFileRejectsWrongResourceType(t *testing.T) {
	path := writeResource(t, `{"resourceType":"CodeSystem","group":[]}`)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for non-ConceptMap resource")
	}
}

func TestLoadFileRejectsEmptyMap(t *testing.T) {
	path := writeResource(t, `{"resourceType":"ConceptMap","group":[]}`)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for a map with no elements")
	}
}
