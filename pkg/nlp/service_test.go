package nlp

import (
	"context"
	"errors"
	"testing"

	"github.com/ayushsetu/platform/pkg/binding"
	"github.com/ayushsetu/platform/pkg/common/models"
	"github.com/ayushsetu/platform/pkg/fallback"
	"github.com/ayushsetu/platform/pkg/terminology"
)

func testService() *Service {
	catalog := terminology.NewCatalog([]terminology.Concept{
		{Code: "AYU-02", Display: "Jvara", System: "Ayurveda",
			Designation: []terminology.Designation{{Value: "fever with body ache"}}},
		{Code: "SID-01", Display: "Obstructive Jaundice", System: "Siddha",
			Designation: []terminology.Designation{{Value: "yellowing of skin"}}},
	})
	return NewService(fallback.NewSemanticIndex(catalog), 5)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	service := testService()
	if _, err := service.Search(context.Background(), ""); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestSearchReturnsRankedMatches(t *testing.T) {
	service := testService()
	matches, err := service.Search(context.Background(), "high fever and body ache")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) == 0 || matches[0].Code != "AYU-02" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestSearchNoMatchesIsEmptyNotNil(t *testing.T) {
	service := testService()
	matches, err := service.Search(context.Background(), "zzzz qqqq")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if matches == nil || len(matches) != 0 {
		t.Fatalf("expected empty slice, got %v", matches)
	}
}

func TestSelectConfirmsSessionAndClearsICD(t *testing.T) {
	service := testService()
	session := binding.NewSession()
	session.Record.ICDCode = "ME20.1"

	service.Select(session, models.NLPMatch{Code: "AYU-02", Display: "Jvara", System: "Ayurveda"})

	if session.Record.NAMCCode != "AYU-02" || session.Record.ICDCode != "" {
		t.Fatalf("unexpected record: %+v", session.Record)
	}
	if session.Converters[binding.ConverterNAMCToICD].State != binding.StateConfirmed {
		t.Fatal("expected top converter confirmed")
	}
}
