package models

import (
	"time"
)

// Direction of a terminology conversion.
type Direction string

const (
	NAMCToICD Direction = "namc_to_icd"
	ICDToNAMC Direction = "icd_to_namc"
)

// ResultSource tells which collaborator produced a conversion result set.
type ResultSource string

const (
	SourceMap   ResultSource = "map"
	SourceFlexi ResultSource = "flexi"
	SourceFuzzy ResultSource = "fuzzy"
	SourceNone  ResultSource = "none"
)

// TermCandidate is one autocomplete entry produced by the suggestion index.
// Display carries the composite "System: Display" key the converters exchange.
type TermCandidate struct {
	Code       string `json:"code"`
	Display    string `json:"display"`
	Definition string `json:"definition,omitempty"`
	System     string `json:"system"`
}

// ConversionResult is a single NAMC↔ICD candidate mapping. Score is nil for
// authoritative map hits, which outrank any scored fallback result.
type ConversionResult struct {
	Code   string       `json:"code"`
	Title  string       `json:"title"`
	Score  *float64     `json:"score,omitempty"`
	Source ResultSource `json:"source"`
}

// ConversionResponse is the envelope returned by the resolver.
type ConversionResponse struct {
	Source  ResultSource       `json:"source"`
	Results []ConversionResult `json:"data"`
}

// CombinedRecord is the reconciled NAMC/ICD pair a consuming EMR form reads.
type CombinedRecord struct {
	NAMCCode string `json:"namc_code"`
	ICDCode  string `json:"icd_code"`
}

// NLPMatch is one semantic-search card.
type NLPMatch struct {
	Code           string  `json:"code"`
	Display        string  `json:"display"`
	System         string  `json:"system"`
	FullDefinition string  `json:"full_definition"`
	Score          float64 `json:"score"`
}

// Event is the Kafka envelope shared by all services.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // suggestion, conversion, nlp_search, selection
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// EMR request/response models.

type RegisterPatientRequest struct {
	ABHA string `json:"abha"`
	Name string `json:"name"`
}

type ConsentRequest struct {
	ABHA string `json:"abha"`
}

type SaveDiagnosisRequest struct {
	ABHA      string `json:"abha"`
	Diagnosis string `json:"diagnosis"`
	NAMCCode  string `json:"namc_code"`
	ICDCode   string `json:"icd_code"`
}

type GenerateTokenRequest struct {
	ABHANumber  string `json:"abha_number"`
	ABHAAddress string `json:"abha_address"`
	Name        string `json:"name"`
}
