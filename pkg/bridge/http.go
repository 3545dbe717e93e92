package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ayushsetu/platform/pkg/binding"
	"github.com/ayushsetu/platform/pkg/common/logger"
	"github.com/ayushsetu/platform/pkg/common/models"
	"github.com/ayushsetu/platform/pkg/nlp"
	"github.com/ayushsetu/platform/pkg/resolver"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register wires the converter flow routes. Protected carries the routes
// that require an ABDM token; the caller wraps it with the auth middleware.
func (h *Handler) Register(r *mux.Router, protected *mux.Router) {
	r.HandleFunc("/sessions", h.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/record", h.handleGetRecord).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/converters/{index}/selection", h.handleConfirmSelection).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/converters/{index}/convert", h.handleConvert).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/converters/{index}/result", h.handleSelectResult).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/converters/{index}/widget", h.handleWidgetSelect).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/nlp/selection", h.handleNLPSelect).Methods(http.MethodPost)
	r.HandleFunc("/nlp/search", h.handleNLPSearch).Methods(http.MethodPost)
	r.HandleFunc("/token/who", h.handleWHOToken).Methods(http.MethodGet)
	r.HandleFunc("/token/abdm", h.handleIssueABDMToken).Methods(http.MethodPost)
	r.HandleFunc("/fhir/ConceptMap/namc-to-icd11", h.handleConceptMap).Methods(http.MethodGet)
	r.HandleFunc("/fhir/CodeSystem/namc", h.handleCodeSystem).Methods(http.MethodGet)

	protected.HandleFunc("/sessions/{id}/converters/{index}/suggestions", h.handleSuggest).Methods(http.MethodGet)
	protected.HandleFunc("/facilities/{hfr}/csv", h.handleCSVUpload).Methods(http.MethodPost)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.CreateSession(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("failed to create session")
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Record)
}

func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	converter, ok := parseConverter(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	reply, err := h.service.Suggest(r.Context(), mux.Vars(r)["id"], converter, query)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleConfirmSelection(w http.ResponseWriter, r *http.Request) {
	converter, ok := parseConverter(w, r)
	if !ok {
		return
	}
	var candidate models.TermCandidate
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if candidate.Code == "" || candidate.Display == "" {
		http.Error(w, "code and display are required", http.StatusBadRequest)
		return
	}
	session, err := h.service.ConfirmSelection(r.Context(), mux.Vars(r)["id"], converter, candidate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	converter, ok := parseConverter(w, r)
	if !ok {
		return
	}
	response, err := h.service.Convert(r.Context(), mux.Vars(r)["id"], converter)
	if err != nil {
		var upstream *resolver.UpstreamLookupError
		if errors.As(err, &upstream) {
			// Distinguishable from a clean no-match: same empty
			// envelope, but with an error string and a 502.
			writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"source": response.Source,
				"data":   response.Results,
				"error":  "lookup service unavailable, please try again",
			})
			return
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleSelectResult(w http.ResponseWriter, r *http.Request) {
	converter, ok := parseConverter(w, r)
	if !ok {
		return
	}
	var result models.ConversionResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if result.Code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}
	record, err := h.service.SelectResult(r.Context(), mux.Vars(r)["id"], converter, result)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleWidgetSelect(w http.ResponseWriter, r *http.Request) {
	converter, ok := parseConverter(w, r)
	if !ok {
		return
	}
	var payload struct {
		Code  string `json:"code"`
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	record, err := h.service.WidgetSelect(r.Context(), mux.Vars(r)["id"], converter, payload.Code, payload.Title)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleNLPSearch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	matches, err := h.service.NLPSearch(r.Context(), payload.Query)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (h *Handler) handleNLPSelect(w http.ResponseWriter, r *http.Request) {
	var match models.NLPMatch
	if err := json.NewDecoder(r.Body).Decode(&match); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if match.Code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}
	record, err := h.service.NLPSelect(r.Context(), mux.Vars(r)["id"], match)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleWHOToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.service.WHOToken(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("failed to fetch WHO token")
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error": "Cannot connect to the token service.",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token})
}

func (h *Handler) handleIssueABDMToken(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	token, err := h.service.IssueABDMToken(req)
	if err != nil {
		logger.Log.WithError(err).Error("failed to issue ABDM token")
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token})
}

func (h *Handler) handleConceptMap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ConceptMapResource())
}

func (h *Handler) handleCodeSystem(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.CodeSystemResource())
}

func (h *Handler) handleCSVUpload(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("csv_file")
	if err != nil {
		http.Error(w, "csv_file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	hfrID := mux.Vars(r)["hfr"]
	if err := h.service.SaveFacilityCSV(hfrID, file); err != nil {
		logger.Log.WithError(err).Error("failed to store facility csv")
		http.Error(w, "failed to store csv", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "success"})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, binding.ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, binding.ErrNotConfirmed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, nlp.ErrEmptyQuery):
		http.Error(w, "Missing 'query' in request body.", http.StatusBadRequest)
	default:
		var malformed *resolver.MalformedTermError
		if errors.As(err, &malformed) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseConverter(w http.ResponseWriter, r *http.Request) (binding.ConverterIndex, bool) {
	raw := mux.Vars(r)["index"]
	value, err := strconv.Atoi(raw)
	if err != nil || (value != 0 && value != 1) {
		http.Error(w, "invalid converter index", http.StatusBadRequest)
		return 0, false
	}
	return binding.ConverterIndex(value), true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
