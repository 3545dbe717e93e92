package fhir

import (
	"time"

	"github.com/ayushsetu/platform/pkg/common/models"
	"github.com/ayushsetu/platform/pkg/conceptmap"
)

// System URIs for the two code systems this service bridges.
const (
	NAMCSystemURI  = "https://ndhm.gov.in/fhir/CodeSystem/namc"
	ICD11SystemURI = "http://id.who.int/icd11/mms"
)

// ConceptMap is the FHIR ConceptMap resource published by the map builder
// and served on the FHIR read endpoint.
type ConceptMap struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id"`
	URL          string            `json:"url,omitempty"`
	Name         string            `json:"name,omitempty"`
	Title        string            `json:"title,omitempty"`
	Status       string            `json:"status"`
	Experimental bool              `json:"experimental,omitempty"`
	Date         string            `json:"date,omitempty"`
	Publisher    string            `json:"publisher,omitempty"`
	Description  string            `json:"description,omitempty"`
	SourceURI    string            `json:"sourceUri,omitempty"`
	TargetURI    string            `json:"targetUri,omitempty"`
	Group        []ConceptMapGroup `json:"group"`
}

type ConceptMapGroup struct {
	Source  string               `json:"source"`
	Target  string               `json:"target"`
	Element []conceptmap.Element `json:"element"`
}

// NewConceptMap assembles a draft ConceptMap from built elements.
func NewConceptMap(id string, elements []conceptmap.Element, description string) ConceptMap {
	return ConceptMap{
		ResourceType: "ConceptMap",
		ID:           id,
		URL:          "https://ayushsetu.in/fhir/ConceptMap/" + id,
		Name:         "NAMC_to_ICD11_ConceptMap",
		Title:        "NAMC (Ayurveda, Siddha, Unani) to ICD-11 ConceptMap",
		Status:       "draft",
		Experimental: true,
		Date:         time.Now().UTC().Format(time.RFC3339),
		Publisher:    "AYUSH Setu",
		Description:  description,
		SourceURI:    NAMCSystemURI,
		TargetURI:    ICD11SystemURI,
		Group: []ConceptMapGroup{{
			Source:  NAMCSystemURI,
			Target:  ICD11SystemURI,
			Element: elements,
		}},
	}
}

// CodeSystem is the read-only rendering of the loaded NAMC corpus.
type CodeSystem struct {
	ResourceType string              `json:"resourceType"`
	ID           string              `json:"id"`
	URL          string              `json:"url,omitempty"`
	Name         string              `json:"name,omitempty"`
	Status       string              `json:"status"`
	Content      string              `json:"content"`
	Count        int                 `json:"count"`
	Concept      []CodeSystemConcept `json:"concept"`
}

type CodeSystemConcept struct {
	Code        string                  `json:"code"`
	Display     string                  `json:"display"`
	Definition  string                  `json:"definition,omitempty"`
	Designation []CodeSystemDesignation `json:"designation,omitempty"`
}

type CodeSystemDesignation struct {
	Language string `json:"language,omitempty"`
	Value    string `json:"value"`
}

func NewCodeSystem(id string, concepts []CodeSystemConcept) CodeSystem {
	return CodeSystem{
		ResourceType: "CodeSystem",
		ID:           id,
		URL:          NAMCSystemURI,
		Name:         "NAMC_AYUSH_Terminology",
		Status:       "active",
		Content:      "complete",
		Count:        len(concepts),
		Concept:      concepts,
	}
}

// Coding and CodeableConcept follow the FHIR datatypes.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

// Condition is a dual-coded diagnosis: one NAMC coding, one ICD-11 coding.
type Condition struct {
	ResourceType   string          `json:"resourceType"`
	ID             string          `json:"id,omitempty"`
	ClinicalStatus CodeableConcept `json:"clinicalStatus,omitempty"`
	Code           CodeableConcept `json:"code"`
	Subject        Reference       `json:"subject"`
	RecordedDate   string          `json:"recordedDate,omitempty"`
}

// NewCondition builds a Condition from a reconciled record. Halves left
// empty by the binding layer are simply omitted from the coding list.
func NewCondition(id, patientRef, diagnosisText string, record models.CombinedRecord, recordedAt time.Time) Condition {
	var codings []Coding
	if record.NAMCCode != "" {
		codings = append(codings, Coding{System: NAMCSystemURI, Code: record.NAMCCode})
	}
	if record.ICDCode != "" {
		codings = append(codings, Coding{System: ICD11SystemURI, Code: record.ICDCode})
	}
	return Condition{
		ResourceType: "Condition",
		ID:           id,
		ClinicalStatus: CodeableConcept{Coding: []Coding{{
			System: "http://terminology.hl7.org/CodeSystem/condition-clinical",
			Code:   "active",
		}}},
		Code:         CodeableConcept{Coding: codings, Text: diagnosisText},
		Subject:      Reference{Reference: patientRef},
		RecordedDate: recordedAt.UTC().Format(time.RFC3339),
	}
}

// OperationOutcome carries errors on FHIR endpoints.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string `json:"severity"`
	Code        string `json:"code"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) OperationOutcome {
	return OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{{
			Severity:    severity,
			Code:        code,
			Diagnostics: diagnostics,
		}},
	}
}
