package binding

import (
	"errors"
	"testing"

	"github.com/ayushsetu/platform/pkg/common/models"
)

func TestObserveInputTransitions(t *testing.T) {
	session := NewSession()

	generation, err := session.ObserveInput(ConverterNAMCToICD, "jaun")
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if generation != 1 {
		t.Fatalf("expected generation 1, got %d", generation)
	}
	if session.Converters[ConverterNAMCToICD].State != StateTyping {
		t.Fatalf("expected typing state, got %s", session.Converters[ConverterNAMCToICD].State)
	}

	if _, err := session.ObserveInput(ConverterNAMCToICD, ""); err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if session.Converters[ConverterNAMCToICD].State != StateEmpty {
		t.Fatalf("clearing the field must regress to empty")
	}
}

func TestEditAfterConfirmRegressesToTyping(t *testing.T) {
	session := NewSession()
	candidate := models.TermCandidate{Code: "ABB1.1", Display: "Siddha: Obstructive Jaundice"}

	if err := session.ConfirmTerm(ConverterNAMCToICD, candidate); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if _, err := session.EnsureConfirmed(ConverterNAMCToICD); err != nil {
		t.Fatalf("expected confirmed converter: %v", err)
	}

	if _, err := session.ObserveInput(ConverterNAMCToICD, "jaundi"); err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if _, err := session.EnsureConfirmed(ConverterNAMCToICD); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("an edit must revoke confirmation, got %v", err)
	}
	if session.Converters[ConverterNAMCToICD].Selected != nil {
		t.Fatal("an edit must clear the selected candidate")
	}
}

func TestConvertGateRejectsUnconfirmed(t *testing.T) {
	session := NewSession()
	if _, err := session.ObserveInput(ConverterNAMCToICD, "jaundice"); err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	if _, err := session.EnsureConfirmed(ConverterNAMCToICD); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
}

func TestConfirmWritesInputSideOnly(t *testing.T) {
	session := NewSession()
	session.Record.ICDCode = "ME20.1"

	err := session.ConfirmTerm(ConverterNAMCToICD, models.TermCandidate{Code: "ABB1.1", Display: "Siddha: Obstructive Jaundice"})
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if session.Record.NAMCCode != "ABB1.1" {
		t.Fatalf("expected NAMC half written, got %q", session.Record.NAMCCode)
	}
	if session.Record.ICDCode != "ME20.1" {
		t.Fatalf("confirm must not touch the other half, got %q", session.Record.ICDCode)
	}

	err = session.ConfirmTerm(ConverterICDToNAMC, models.TermCandidate{Code: "DB90", Display: "Biliary obstruction"})
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if session.Record.ICDCode != "DB90" {
		t.Fatalf("expected ICD half written by bottom converter, got %q", session.Record.ICDCode)
	}
}

func TestSelectResultWritesOutputSide(t *testing.T) {
	session := NewSession()

	if err := session.SelectResult(ConverterNAMCToICD, models.ConversionResult{Code: "ME20.1"}); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if session.Record.ICDCode != "ME20.1" {
		t.Fatalf("top converter result must fill the ICD half, got %q", session.Record.ICDCode)
	}

	if err := session.SelectResult(ConverterICDToNAMC, models.ConversionResult{Code: "ABB1.1"}); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if session.Record.NAMCCode != "ABB1.1" {
		t.Fatalf("bottom converter result must fill the NAMC half, got %q", session.Record.NAMCCode)
	}
}

func TestStaleSuggestionGenerationRejected(t *testing.T) {
	session := NewSession()

	old, err := session.ObserveInput(ConverterNAMCToICD, "ja")
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}
	current, err := session.ObserveInput(ConverterNAMCToICD, "jaun")
	if err != nil {
		t.Fatalf("observe failed: %v", err)
	}

	if ok, _ := session.AcceptSuggestions(ConverterNAMCToICD, old); ok {
		t.Fatal("a superseded generation must be rejected")
	}
	if ok, _ := session.AcceptSuggestions(ConverterNAMCToICD, current); !ok {
		t.Fatal("the current generation must be accepted")
	}
}

func TestNLPSelectionClearsICDHalf(t *testing.T) {
	session := NewSession()
	session.Record.ICDCode = "ME20.1"

	session.ApplyNLPSelection(models.NLPMatch{Code: "ABB1.1", Display: "Obstructive Jaundice", System: "Siddha"})

	if session.Record.NAMCCode != "ABB1.1" {
		t.Fatalf("expected NAMC half written, got %q", session.Record.NAMCCode)
	}
	if session.Record.ICDCode != "" {
		t.Fatalf("NLP selection must clear the ICD half, got %q", session.Record.ICDCode)
	}
	converter := session.Converters[ConverterNAMCToICD]
	if converter.State != StateConfirmed || converter.Selected == nil {
		t.Fatal("NLP selection must confirm the top converter")
	}
	if converter.Selected.Display != "Siddha: Obstructive Jaundice" {
		t.Fatalf("unexpected composite display %q", converter.Selected.Display)
	}
	if converter.Selected.Definition != "" {
		t.Fatalf("NLP candidates carry no vernacular designation, got %q", converter.Selected.Definition)
	}
}

func TestWidgetSelection(t *testing.T) {
	session := NewSession()

	if err := session.ApplyWidgetSelection(ConverterNAMCToICD, "ME20.1", "Jaundice"); err != nil {
		t.Fatalf("widget selection failed: %v", err)
	}
	if session.Record.ICDCode != "ME20.1" {
		t.Fatalf("expected ICD half written, got %q", session.Record.ICDCode)
	}
	if session.Converters[ConverterNAMCToICD].State == StateConfirmed {
		t.Fatal("a widget pick on the top converter must not confirm it")
	}

	if err := session.ApplyWidgetSelection(ConverterICDToNAMC, "DB90", "Biliary obstruction"); err != nil {
		t.Fatalf("widget selection failed: %v", err)
	}
	if session.Converters[ConverterICDToNAMC].State != StateConfirmed {
		t.Fatal("a widget pick on the bottom converter must confirm it")
	}

	if err := session.ApplyWidgetSelection(ConverterICDToNAMC, "", "No code"); err == nil {
		t.Fatal("expected error for a widget pick without a code")
	}
}

func TestUnknownConverterIndex(t *testing.T) {
	session := NewSession()
	if _, err := session.ObserveInput(ConverterIndex(2), "x"); err == nil {
		t.Fatal("expected error for unknown converter index")
	}
}
