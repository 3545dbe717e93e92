package bridge

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ayushsetu/platform/pkg/abdm"
	"github.com/ayushsetu/platform/pkg/audit"
	"github.com/ayushsetu/platform/pkg/binding"
	"github.com/ayushsetu/platform/pkg/common/logger"
	"github.com/ayushsetu/platform/pkg/common/models"
	"github.com/ayushsetu/platform/pkg/conceptmap"
	"github.com/ayushsetu/platform/pkg/fallback"
	"github.com/ayushsetu/platform/pkg/nlp"
	"github.com/ayushsetu/platform/pkg/resolver"
	"github.com/ayushsetu/platform/pkg/terminology"
	"github.com/ayushsetu/platform/pkg/who"
	"github.com/gorilla/mux"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type stubSearcher struct {
	results []who.SearchResult
	err     error
}

func (s *stubSearcher) Search(context.Context, string) ([]who.SearchResult, error) {
	return s.results, s.err
}

func testService(t *testing.T, searcher resolver.ICDSearcher) *Service {
	t.Helper()
	catalog := terminology.NewCatalog([]terminology.Concept{
		{Code: "ABB1.1", Display: "Obstructive Jaundice", System: "Siddha",
			Designation: []terminology.Designation{{Value: "அடைப்பு மஞ்சள்"}}},
		{Code: "AYU-42", Display: "Kamala", System: "Ayurveda"},
	})
	maps := conceptmap.NewMap([]conceptmap.Element{
		{Code: "AYU-42", Display: "Ayurveda: Kamala",
			Target: []conceptmap.Target{{Code: "ME20.1", Display: "Jaundice", Equivalence: "relatedto"}}},
	})
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tokens := abdm.NewTokenServiceFromKeys(key, "https://sandbox.abdm.gov.in", "facility", time.Hour)

	res := resolver.New(maps, searcher, fallback.NewMatcher(catalog), 100, 10)
	nlpService := nlp.NewService(fallback.NewSemanticIndex(catalog), 5)
	return NewService(catalog, maps, res, binding.NewMemoryStore(),
		nlpService, audit.NewService(nil), nil, tokens, 50, t.TempDir())
}

func TestSuggestTracksGenerations(t *testing.T) {
	service := testService(t, &stubSearcher{})
	ctx := context.Background()

	session, err := service.CreateSession(ctx)
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}

	reply, err := service.Suggest(ctx, session.ID, binding.ConverterNAMCToICD, "jaundice")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if reply.Stale {
		t.Fatal("a fresh reply must not be stale")
	}
	if len(reply.Suggestions) != 1 || reply.Suggestions[0].Code != "ABB1.1" {
		t.Fatalf("unexpected suggestions: %+v", reply.Suggestions)
	}
	if reply.Generation != 1 {
		t.Fatalf("expected generation 1, got %d", reply.Generation)
	}
}

func TestSuggestEmptyQueryClearsConverter(t *testing.T) {
	service := testService(t, &stubSearcher{})
	ctx := context.Background()

	session, _ := service.CreateSession(ctx)
	reply, err := service.Suggest(ctx, session.ID, binding.ConverterNAMCToICD, "")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if len(reply.Suggestions) != 0 {
		t.Fatalf("expected no suggestions for empty query, got %+v", reply.Suggestions)
	}

	stored, _ := service.GetSession(ctx, session.ID)
	if stored.Converters[binding.ConverterNAMCToICD].State != binding.StateEmpty {
		t.Fatal("empty input must leave the converter in the empty state")
	}
}

func TestConvertRequiresConfirmedSelection(t *testing.T) {
	service := testService(t, &stubSearcher{})
	ctx := context.Background()

	session, _ := service.CreateSession(ctx)
	if _, err := service.Suggest(ctx, session.ID, binding.ConverterNAMCToICD, "jaun"); err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if _, err := service.Convert(ctx, session.ID, binding.ConverterNAMCToICD); !errors.Is(err, binding.ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
}

func TestConvertMapHitFlow(t *testing.T) {
	service := testService(t, &stubSearcher{err: errors.New("must not be called")})
	ctx := context.Background()

	session, _ := service.CreateSession(ctx)
	candidate := models.TermCandidate{Code: "AYU-42", Display: "Ayurveda: Kamala"}
	if _, err := service.ConfirmSelection(ctx, session.ID, binding.ConverterNAMCToICD, candidate); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	response, err := service.Convert(ctx, session.ID, binding.ConverterNAMCToICD)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if response.Source != models.SourceMap {
		t.Fatalf("expected map source, got %s", response.Source)
	}
	if len(response.Results) != 1 || response.Results[0].Code != "ME20.1" {
		t.Fatalf("unexpected results: %+v", response.Results)
	}
}

func TestResultSelectionCompletesRecord(t *testing.T) {
	service := testService(t, &stubSearcher{})
	ctx := context.Background()

	session, _ := service.CreateSession(ctx)
	candidate := models.TermCandidate{Code: "AYU-42", Display: "Ayurveda: Kamala"}
	if _, err := service.ConfirmSelection(ctx, session.ID, binding.ConverterNAMCToICD, candidate); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	record, err := service.SelectResult(ctx, session.ID, binding.ConverterNAMCToICD,
		models.ConversionResult{Code: "ME20.1", Title: "Jaundice"})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if record.NAMCCode != "AYU-42" || record.ICDCode != "ME20.1" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestNLPSelectClearsICDHalf(t *testing.T) {
	service := testService(t, &stubSearcher{})
	ctx := context.Background()

	session, _ := service.CreateSession(ctx)
	if _, err := service.WidgetSelect(ctx, session.ID, binding.ConverterNAMCToICD, "ME20.1", "Jaundice"); err != nil {
		t.Fatalf("widget select failed: %v", err)
	}

	record, err := service.NLPSelect(ctx, session.ID,
		models.NLPMatch{Code: "ABB1.1", Display: "Obstructive Jaundice", System: "Siddha"})
	if err != nil {
		t.Fatalf("nlp select failed: %v", err)
	}
	if record.NAMCCode != "ABB1.1" || record.ICDCode != "" {
		t.Fatalf("expected ICD half cleared, got %+v", record)
	}
}

func newTestRouter(service *Service) *mux.Router {
	handler := NewHandler(service)
	router := mux.NewRouter()
	protected := router.PathPrefix("").Subrouter()
	handler.Register(router, protected)
	return router
}

func TestHandlerConvertUpstreamFailureIs502(t *testing.T) {
	service := testService(t, &stubSearcher{err: errors.New("connection refused")})
	ctx := context.Background()

	session, _ := service.CreateSession(ctx)
	candidate := models.TermCandidate{Code: "ABB1.1", Display: "Siddha: Obstructive Jaundice"}
	if _, err := service.ConfirmSelection(ctx, session.ID, binding.ConverterNAMCToICD, candidate); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+session.ID+"/converters/0/convert", nil)
	recorder := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var payload struct {
		Source string                    `json:"source"`
		Data   []models.ConversionResult `json:"data"`
		Error  string                    `json:"error"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.Source != "none" || len(payload.Data) != 0 || payload.Error == "" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandlerConvertUnconfirmedIs409(t *testing.T) {
	service := testService(t, &stubSearcher{})
	session, _ := service.CreateSession(context.Background())

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+session.ID+"/converters/0/convert", nil)
	recorder := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", recorder.Code)
	}
}

func TestHandlerUnknownSessionIs404(t *testing.T) {
	service := testService(t, &stubSearcher{})
	req := httptest.NewRequest(http.MethodGet, "/sessions/missing/record", nil)
	recorder := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestHandlerInvalidConverterIndexIs400(t *testing.T) {
	service := testService(t, &stubSearcher{})
	session, _ := service.CreateSession(context.Background())

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+session.ID+"/converters/7/convert", nil)
	recorder := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestHandlerServesFHIRResources(t *testing.T) {
	service := testService(t, &stubSearcher{})
	router := newTestRouter(service)

	for path, wantType := range map[string]string{
		"/fhir/ConceptMap/namc-to-icd11": "ConceptMap",
		"/fhir/CodeSystem/namc":          "CodeSystem",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, recorder.Code)
		}
		var resource struct {
			ResourceType string `json:"resourceType"`
		}
		if err := json.Unmarshal(recorder.Body.Bytes(), &resource); err != nil {
			t.Fatalf("%s: decode failed: %v", path, err)
		}
		if resource.ResourceType != wantType {
			t.Fatalf("%s: expected %s resource, got %q", path, wantType, resource.ResourceType)
		}
	}
}

func TestHandlerNLPSearchEmptyQueryIs400(t *testing.T) {
	service := testService(t, &stubSearcher{})
	req := httptest.NewRequest(http.MethodPost, "/nlp/search", strings.NewReader(`{"query":""}`))
	recorder := httptest.NewRecorder()
	newTestRouter(service).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}
