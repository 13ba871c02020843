package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"gagetrack/internal/audit"
	"gagetrack/internal/auth"
	devapp "gagetrack/internal/deviation/application"
	deviation "gagetrack/internal/deviation/domain"
)

// Handler provides tolerance record HTTP endpoints.
type Handler struct {
	service     *devapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *devapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("deviation handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes /api/v1/tolerance-records requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	if path == "/api/v1/tolerance-records" {
		h.handleList(w, r, companyID)
		return
	}

	rest := strings.TrimPrefix(path, "/api/v1/tolerance-records/")
	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 2 && parts[1] == "resolve" {
		h.handleResolve(w, r, companyID, id)
		return
	}
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := h.service.Get(r.Context(), companyID, id)
		if err != nil {
			respondDeviationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodPut, http.MethodPatch:
		var input devapp.UpdateInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		rec, err := h.service.Update(r.Context(), companyID, id, input)
		if err != nil {
			respondDeviationError(w, err)
			return
		}
		h.logAudit(r, companyID, "tolerance_record.update", rec.ID, rec.GageID, input)
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		if err := h.service.Delete(r.Context(), companyID, id); err != nil {
			respondDeviationError(w, err)
			return
		}
		h.logAudit(r, companyID, "tolerance_record.delete", id, "", nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, companyID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := h.service.List(r.Context(), companyID, r.URL.Query().Get("status"))
	if err != nil {
		respondDeviationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tolerance_records": list})
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request, companyID, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var input struct {
		Notes string `json:"notes"`
	}
	_ = json.NewDecoder(r.Body).Decode(&input)

	rec, err := h.service.Resolve(r.Context(), companyID, id, input.Notes)
	if err != nil {
		respondDeviationError(w, err)
		return
	}
	h.logAudit(r, companyID, "tolerance_record.resolve", rec.ID, rec.GageID, input)
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) logAudit(r *http.Request, companyID, action, resourceID, gageID string, payload any) {
	if h.auditLogger == nil || companyID == "" {
		return
	}
	var meta json.RawMessage
	if payload != nil {
		meta, _ = json.Marshal(payload)
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		CompanyID:    companyID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "tolerance_record",
		ResourceID:   resourceID,
		GageID:       gageID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondDeviationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, deviation.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, deviation.ErrAlreadyResolved):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
