package fallback

import (
	"testing"

	"github.com/ayushsetu/platform/pkg/terminology"
)

func semanticCatalog() *terminology.Catalog {
	return terminology.NewCatalog([]terminology.Concept{
		{Code: "SID-01", Display: "Obstructive Jaundice", System: "Siddha",
			Designation: []terminology.Designation{{Value: "yellowing of skin and eyes"}}},
		{Code: "AYU-02", Display: "Jvara", System: "Ayurveda",
			Designation: []terminology.Designation{{Value: "fever with body ache"}}},
		{Code: "UNA-03", Display: "Suda", System: "Unani",
			Designation: []terminology.Designation{{Value: "headache and heaviness"}}},
	})
}

func TestSemanticSearchRanksRelevantConceptFirst(t *testing.T) {
	index := NewSemanticIndex(semanticCatalog())

	matches := index.Search("patient presents with fever and body ache", 5)
	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}
	if matches[0].Code != "AYU-02" {
		t.Fatalf("expected AYU-02 first, got %s", matches[0].Code)
	}
	if matches[0].Score <= 0 {
		t.Fatalf("expected positive similarity, got %v", matches[0].Score)
	}
	if matches[0].System != "Ayurveda" {
		t.Fatalf("expected system tag carried through, got %q", matches[0].System)
	}
}

func TestSemanticSearchUnknownVocabulary(t *testing.T) {
	index := NewSemanticIndex(semanticCatalog())
	if matches := index.Search("xylophone quantum entanglement", 5); len(matches) != 0 {
		t.Fatalf("expected no matches for out-of-corpus vocabulary, got %v", matches)
	}
}

func TestSemanticSearchHonorsLimit(t *testing.T) {
	index := NewSemanticIndex(semanticCatalog())
	if matches := index.Search("and", 1); len(matches) > 1 {
		t.Fatalf("expected at most 1 match, got %d", len(matches))
	}
}

func TestSemanticSearchBlankQuery(t *testing.T) {
	index := NewSemanticIndex(semanticCatalog())
	if matches := index.Search("   ", 5); matches != nil {
		t.Fatalf("expected nil for blank query, got %v", matches)
	}
}
