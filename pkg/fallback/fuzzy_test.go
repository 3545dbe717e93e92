package fallback

import (
	"testing"

	"github.com/ayushsetu/platform/pkg/terminology"
)

func testCatalog() *terminology.Catalog {
	return terminology.NewCatalog([]terminology.Concept{
		{Code: "ABB1.1", Display: "Obstructive Jaundice", System: "Siddha",
			Designation: []terminology.Designation{{Value: "அடைப்பு மஞ்சள்"}}},
		{Code: "AYU-42", Display: "Kamala", System: "Ayurveda"},
		{Code: "UNA-07", Display: "Yarkan", System: "Unani"},
	})
}

func TestScoreExactMatchBoosted(t *testing.T) {
	if score := Score("obstructive jaundice", "obstructive jaundice"); score != 150 {
		t.Fatalf("expected exact boost 150, got %v", score)
	}
}

func TestScoreContainmentBoosted(t *testing.T) {
	if score := Score("jaundice", "obstructive jaundice"); score != 125 {
		t.Fatalf("expected containment boost 125, got %v", score)
	}
}

func TestScoreTokenOrderInsensitive(t *testing.T) {
	score := Score("jaundice severe obstructive", "obstructive severe jaundice")
	if score != 100 {
		t.Fatalf("expected 100 for reordered tokens, got %v", score)
	}
}

func TestScoreApproximateStaysBelowBoosts(t *testing.T) {
	score := Score("ja", "obstructive jaundice")
	if score <= 0 || score >= 100 {
		t.Fatalf("expected partial score in (0,100), got %v", score)
	}
}

func TestMatchRanksExactHitFirst(t *testing.T) {
	matcher := NewMatcher(testCatalog())

	matches := matcher.Match("Obstructive Jaundice", 10)
	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}
	if matches[0].Code != "ABB1.1" {
		t.Fatalf("expected ABB1.1 first, got %s", matches[0].Code)
	}
	if matches[0].Score <= 100 {
		t.Fatalf("an exact display match must land in the map-like band, got %v", matches[0].Score)
	}
	if matches[0].Term != "Siddha: Obstructive Jaundice" {
		t.Fatalf("expected composite display term, got %q", matches[0].Term)
	}
	if matches[0].Definition != "அடைப்பு மஞ்சள்" {
		t.Fatalf("expected vernacular designation, got %q", matches[0].Definition)
	}
}

func TestMatchHonorsLimit(t *testing.T) {
	matcher := NewMatcher(testCatalog())
	if matches := matcher.Match("a", 1); len(matches) > 1 {
		t.Fatalf("expected at most 1 match, got %d", len(matches))
	}
}

func TestMatchBlankTerm(t *testing.T) {
	matcher := NewMatcher(testCatalog())
	if matches := matcher.Match("   ", 10); matches != nil {
		t.Fatalf("expected no matches for blank input, got %v", matches)
	}
}

func TestNormalizeStripsPunctuationAndCase(t *testing.T) {
	if got := normalize("  Obstructive, JAUNDICE!  "); got != "obstructive jaundice" {
		t.Fatalf("unexpected normalization %q", got)
	}
}
