package emr

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ayushsetu/platform/pkg/common/logger"
	"github.com/ayushsetu/platform/pkg/common/models"
	"github.com/ayushsetu/platform/pkg/fhir"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/patients", h.handleRegisterPatient).Methods(http.MethodPost)
	r.HandleFunc("/patients", h.handleListPatients).Methods(http.MethodGet)
	r.HandleFunc("/consent", h.handleGiveConsent).Methods(http.MethodPost)
	r.HandleFunc("/diagnoses", h.handleSaveDiagnosis).Methods(http.MethodPost)
	r.HandleFunc("/health-data", h.handleGetHealthData).Methods(http.MethodGet)
	r.HandleFunc("/patients/{abha}/conditions", h.handleGetConditions).Methods(http.MethodGet)
}

func (h *Handler) handleRegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.ABHA == "" || req.Name == "" {
		http.Error(w, "abha and name are required", http.StatusBadRequest)
		return
	}
	patient, err := h.service.RegisterPatient(r.Context(), req)
	if err != nil {
		logger.Log.WithError(err).Error("failed to register patient")
		http.Error(w, "failed to register patient", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Patient registered",
		"abha":    patient.ABHA,
		"name":    patient.Name,
	})
}

func (h *Handler) handleListPatients(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)
	patients, err := h.service.ListPatients(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list patients")
		http.Error(w, "failed to list patients", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": patients})
}

func (h *Handler) handleGiveConsent(w http.ResponseWriter, r *http.Request) {
	var req models.ConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.ABHA == "" {
		http.Error(w, "abha is required", http.StatusBadRequest)
		return
	}
	if err := h.service.GiveConsent(r.Context(), req.ABHA); err != nil {
		h.writeServiceError(w, err, "failed to record consent")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":        "Consent given",
		"abha":           req.ABHA,
		"consent_status": "ACTIVE",
	})
}

func (h *Handler) handleSaveDiagnosis(w http.ResponseWriter, r *http.Request) {
	var req models.SaveDiagnosisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.ABHA == "" || req.Diagnosis == "" {
		http.Error(w, "abha and diagnosis are required", http.StatusBadRequest)
		return
	}
	diagnosis, err := h.service.SaveDiagnosis(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "failed to save diagnosis")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Diagnosis saved",
		"namc":    diagnosis.NAMCCode,
		"icd":     diagnosis.ICDCode,
	})
}

func (h *Handler) handleGetHealthData(w http.ResponseWriter, r *http.Request) {
	abha := r.URL.Query().Get("abha")
	if abha == "" {
		http.Error(w, "abha query parameter is required", http.StatusBadRequest)
		return
	}
	data, err := h.service.GetHealthData(r.Context(), abha)
	if err != nil {
		h.writeServiceError(w, err, "failed to fetch health data")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// handleGetConditions is a FHIR surface, so errors come back as
// OperationOutcome resources rather than plain text.
func (h *Handler) handleGetConditions(w http.ResponseWriter, r *http.Request) {
	abha := mux.Vars(r)["abha"]
	conditions, err := h.service.GetConditions(r.Context(), abha)
	if err != nil {
		switch {
		case errors.Is(err, ErrPatientNotFound):
			writeJSON(w, http.StatusNotFound, fhir.NewOperationOutcome("error", "not-found", "patient not found"))
		case errors.Is(err, ErrNoConsent):
			writeJSON(w, http.StatusForbidden, fhir.NewOperationOutcome("error", "forbidden", "no consent given"))
		default:
			logger.Log.WithError(err).Error("failed to fetch conditions")
			writeJSON(w, http.StatusInternalServerError, fhir.NewOperationOutcome("error", "exception", "internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resourceType": "Bundle",
		"type":         "searchset",
		"total":        len(conditions),
		"entry":        conditions,
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrPatientNotFound):
		http.Error(w, "patient not found", http.StatusNotFound)
	case errors.Is(err, ErrNoConsent):
		http.Error(w, "no consent given", http.StatusForbidden)
	default:
		logger.Log.WithError(err).Error(fallback)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
