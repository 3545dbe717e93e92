package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ayushsetu/platform/pkg/abdm"
	"github.com/ayushsetu/platform/pkg/audit"
	"github.com/ayushsetu/platform/pkg/binding"
	"github.com/ayushsetu/platform/pkg/common/models"
	"github.com/ayushsetu/platform/pkg/conceptmap"
	"github.com/ayushsetu/platform/pkg/fhir"
	"github.com/ayushsetu/platform/pkg/nlp"
	"github.com/ayushsetu/platform/pkg/resolver"
	"github.com/ayushsetu/platform/pkg/terminology"
)

// TokenProvider is the WHO token surface the widget proxy needs.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// SuggestionReply tags suggestions with the generation that requested them.
// Stale means a newer keystroke burst superseded this response and the
// caller should drop it.
type SuggestionReply struct {
	Generation  uint64                 `json:"generation"`
	Suggestions []models.TermCandidate `json:"suggestions"`
	Stale       bool                   `json:"stale"`
}

// Service orchestrates the two converter flows, the NLP card flow, and the
// shared combined record over one session store.
type Service struct {
	catalog  *terminology.Catalog
	maps     *conceptmap.Map
	resolver *resolver.Resolver
	sessions binding.Store
	nlp      *nlp.Service
	audit    *audit.Service
	whoToken TokenProvider
	tokens   *abdm.TokenService

	suggestionLimit int
	dataDir         string
}

func NewService(
	catalog *terminology.Catalog,
	maps *conceptmap.Map,
	res *resolver.Resolver,
	sessions binding.Store,
	nlpService *nlp.Service,
	auditService *audit.Service,
	whoToken TokenProvider,
	tokens *abdm.TokenService,
	suggestionLimit int,
	dataDir string,
) *Service {
	if suggestionLimit <= 0 {
		suggestionLimit = 50
	}
	return &Service{
		catalog:         catalog,
		maps:            maps,
		resolver:        res,
		sessions:        sessions,
		nlp:             nlpService,
		audit:           auditService,
		whoToken:        whoToken,
		tokens:          tokens,
		suggestionLimit: suggestionLimit,
		dataDir:         dataDir,
	}
}

func (s *Service) CreateSession(ctx context.Context) (*binding.Session, error) {
	session := binding.NewSession()
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*binding.Session, error) {
	return s.sessions.Get(ctx, id)
}

// Suggest records the keystroke burst, then answers with candidates tagged by
// generation. An empty query short-circuits without touching the corpus.
// Before replying it re-reads the session: if a newer burst bumped the
// generation while we were searching, the reply is marked stale.
func (s *Service) Suggest(ctx context.Context, sessionID string, converter binding.ConverterIndex, query string) (SuggestionReply, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return SuggestionReply{}, err
	}
	generation, err := session.ObserveInput(converter, query)
	if err != nil {
		return SuggestionReply{}, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return SuggestionReply{}, err
	}

	reply := SuggestionReply{Generation: generation, Suggestions: []models.TermCandidate{}}
	if query == "" {
		return reply, nil
	}

	reply.Suggestions = s.catalog.Suggest(query, s.suggestionLimit)

	current, err := s.sessions.Get(ctx, sessionID)
	if err == nil {
		if ok, err := current.AcceptSuggestions(converter, generation); err == nil && !ok {
			reply.Stale = true
			reply.Suggestions = []models.TermCandidate{}
		}
	}

	s.audit.Record(ctx, "suggestion", query,
		fmt.Sprintf("Found %d suggestion(s).", len(reply.Suggestions)), nil)
	return reply, nil
}

// ConfirmSelection is the explicit candidate click that arms the convert
// action.
func (s *Service) ConfirmSelection(ctx context.Context, sessionID string, converter binding.ConverterIndex, candidate models.TermCandidate) (*binding.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.ConfirmTerm(converter, candidate); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Convert runs the resolver for a converter's confirmed candidate. Callers in
// any other state are rejected with binding.ErrNotConfirmed rather than
// silently ignored. An upstream failure yields a source=none envelope plus
// the error so the handler can tell it apart from a clean no-match.
func (s *Service) Convert(ctx context.Context, sessionID string, converter binding.ConverterIndex) (models.ConversionResponse, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.ConversionResponse{}, err
	}
	candidate, err := session.EnsureConfirmed(converter)
	if err != nil {
		return models.ConversionResponse{}, err
	}

	direction := models.NAMCToICD
	if converter == binding.ConverterICDToNAMC {
		direction = models.ICDToNAMC
	}

	term := candidate.Code + ", " + candidate.Display
	response, err := s.resolver.Resolve(ctx, direction, term)

	summary := fmt.Sprintf("Found %d result(s)", len(response.Results))
	if len(response.Results) > 0 {
		summary += fmt.Sprintf(" (e.g., '%s')", response.Results[0].Code)
	}
	s.audit.Record(ctx, string(direction), candidate.Display, summary, map[string]interface{}{
		"source": string(response.Source),
	})
	return response, err
}

// SelectResult records the click on a conversion result, filling the
// output-side half of the combined record.
func (s *Service) SelectResult(ctx context.Context, sessionID string, converter binding.ConverterIndex, result models.ConversionResult) (models.CombinedRecord, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.CombinedRecord{}, err
	}
	if err := session.SelectResult(converter, result); err != nil {
		return models.CombinedRecord{}, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return models.CombinedRecord{}, err
	}
	return session.Record, nil
}

// WidgetSelect is the embedded coding widget's callback.
func (s *Service) WidgetSelect(ctx context.Context, sessionID string, converter binding.ConverterIndex, code, title string) (models.CombinedRecord, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.CombinedRecord{}, err
	}
	if err := session.ApplyWidgetSelection(converter, code, title); err != nil {
		return models.CombinedRecord{}, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return models.CombinedRecord{}, err
	}
	return session.Record, nil
}

// NLPSearch runs the free-text card search.
func (s *Service) NLPSearch(ctx context.Context, query string) ([]models.NLPMatch, error) {
	matches, err := s.nlp.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "nlp_search", query,
		fmt.Sprintf("Found %d results.", len(matches)), nil)
	return matches, nil
}

// NLPSelect feeds a clicked card into the session as a confirmed NAMC
// selection and clears the ICD half.
func (s *Service) NLPSelect(ctx context.Context, sessionID string, match models.NLPMatch) (models.CombinedRecord, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.CombinedRecord{}, err
	}
	s.nlp.Select(session, match)
	if err := s.sessions.Save(ctx, session); err != nil {
		return models.CombinedRecord{}, err
	}
	return session.Record, nil
}

// WHOToken proxies an access token for the embedded coding widget. A nil
// provider or upstream failure yields an error; the widget degrades on its
// own.
func (s *Service) WHOToken(ctx context.Context) (string, error) {
	if s.whoToken == nil {
		return "", errors.New("WHO token provider not configured")
	}
	return s.whoToken.Token(ctx)
}

// IssueABDMToken mints a sandbox token for the frontend.
func (s *Service) IssueABDMToken(req models.GenerateTokenRequest) (string, error) {
	if req.ABHANumber == "" {
		req.ABHANumber = "12345678901234"
	}
	if req.ABHAAddress == "" {
		req.ABHAAddress = "patient@sbx"
	}
	if req.Name == "" {
		req.Name = "User"
	}
	return s.tokens.Issue(req.ABHANumber, req.ABHAAddress, req.Name)
}

// ConceptMapResource renders the loaded map as a FHIR resource.
func (s *Service) ConceptMapResource() fhir.ConceptMap {
	elements := s.maps.Elements()
	description := fmt.Sprintf("Concept map linking %d NAMC codes to ICD-11.", len(elements))
	return fhir.NewConceptMap("namc-to-icd11", elements, description)
}

// CodeSystemResource renders the loaded NAMC corpus as a FHIR CodeSystem.
func (s *Service) CodeSystemResource() fhir.CodeSystem {
	concepts := s.catalog.Concepts()
	rendered := make([]fhir.CodeSystemConcept, 0, len(concepts))
	for _, concept := range concepts {
		entry := fhir.CodeSystemConcept{
			Code:       concept.Code,
			Display:    concept.CompositeDisplay(),
			Definition: concept.Definition,
		}
		for _, designation := range concept.Designation {
			entry.Designation = append(entry.Designation, fhir.CodeSystemDesignation{
				Language: designation.Language,
				Value:    designation.Value,
			})
		}
		rendered = append(rendered, entry)
	}
	return fhir.NewCodeSystem("namc", rendered)
}

// SaveFacilityCSV stores an uploaded facility terminology sheet under the
// data directory, keyed by the health facility registry id.
func (s *Service) SaveFacilityCSV(hfrID string, file io.Reader) error {
	if hfrID == "" {
		return errors.New("hfr_id is required")
	}
	path := filepath.Join(s.dataDir, filepath.Base(hfrID)+".csv")
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		return fmt.Errorf("write csv file: %w", err)
	}
	return nil
}
