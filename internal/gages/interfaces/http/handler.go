package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"gagetrack/internal/audit"
	"gagetrack/internal/auth"
	"gagetrack/internal/billing"
	gagesapp "gagetrack/internal/gages/application"
	gages "gagetrack/internal/gages/domain"
)

// Handler provides gage, department and checkout HTTP endpoints.
type Handler struct {
	service     *gagesapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *gagesapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("gages handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes /api/v1/gages and /api/v1/departments requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")

	switch {
	case path == "/api/v1/gages":
		h.handleCollection(w, r)
	case path == "/api/v1/departments":
		h.handleDepartments(w, r)
	case strings.HasPrefix(path, "/api/v1/gages/"):
		h.handleItem(w, r, strings.TrimPrefix(path, "/api/v1/gages/"))
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		list, err := h.service.ListGages(r.Context(), companyID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"gages": list})
	case http.MethodPost:
		var input gagesapp.CreateGageInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		gage, err := h.service.CreateGage(r.Context(), companyID, input)
		if err != nil {
			respondGageError(w, err)
			return
		}
		h.logAudit(r, companyID, "gage.create", "gage", gage.ID, gage.ID, input)
		writeJSON(w, http.StatusCreated, gage)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleDepartments(w http.ResponseWriter, r *http.Request) {
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		list, err := h.service.ListDepartments(r.Context(), companyID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"departments": list})
	case http.MethodPost:
		var input struct {
			Name         string `json:"name"`
			ManagerEmail string `json:"manager_email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		dept, err := h.service.CreateDepartment(r.Context(), companyID, input.Name, input.ManagerEmail)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logAudit(r, companyID, "department.create", "department", dept.ID, "", input)
		writeJSON(w, http.StatusCreated, dept)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request, rest string) {
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	parts := strings.Split(rest, "/")
	gageID := parts[0]
	if gageID == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "checkout":
			h.handleCheckout(w, r, companyID, gageID)
		case "checkin":
			h.handleCheckin(w, r, companyID, gageID)
		case "checkouts":
			h.handleCheckoutList(w, r, companyID, gageID)
		default:
			http.NotFound(w, r)
		}
		return
	}
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		view, err := h.service.GetGage(r.Context(), companyID, gageID)
		if err != nil {
			respondGageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPut, http.MethodPatch:
		var input gagesapp.UpdateGageInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		gage, err := h.service.UpdateGage(r.Context(), companyID, gageID, input)
		if err != nil {
			respondGageError(w, err)
			return
		}
		h.logAudit(r, companyID, "gage.update", "gage", gage.ID, gage.ID, input)
		writeJSON(w, http.StatusOK, gage)
	case http.MethodDelete:
		if err := h.service.DeleteGage(r.Context(), companyID, gageID); err != nil {
			respondGageError(w, err)
			return
		}
		h.logAudit(r, companyID, "gage.delete", "gage", gageID, gageID, nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request, companyID, gageID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var input struct {
		Notes string `json:"notes"`
	}
	_ = json.NewDecoder(r.Body).Decode(&input)

	co, err := h.service.Checkout(r.Context(), companyID, gageID, auth.SubjectFromContext(r.Context()), input.Notes)
	if err != nil {
		respondGageError(w, err)
		return
	}
	h.logAudit(r, companyID, "gage.checkout", "checkout", co.ID, gageID, input)
	writeJSON(w, http.StatusCreated, co)
}

func (h *Handler) handleCheckin(w http.ResponseWriter, r *http.Request, companyID, gageID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var input struct {
		Notes string `json:"notes"`
	}
	_ = json.NewDecoder(r.Body).Decode(&input)

	co, err := h.service.CheckIn(r.Context(), companyID, gageID, input.Notes)
	if err != nil {
		respondGageError(w, err)
		return
	}
	h.logAudit(r, companyID, "gage.checkin", "checkout", co.ID, gageID, input)
	writeJSON(w, http.StatusOK, co)
}

func (h *Handler) handleCheckoutList(w http.ResponseWriter, r *http.Request, companyID, gageID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := h.service.ListCheckouts(r.Context(), companyID, gageID)
	if err != nil {
		respondGageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checkouts": list})
}

func (h *Handler) logAudit(r *http.Request, companyID, action, resourceType, resourceID, gageID string, payload any) {
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
		ResourceType: resourceType,
		ResourceID:   resourceID,
		GageID:       gageID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondGageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gages.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, gages.ErrAlreadyCheckedOut), errors.Is(err, gages.ErrNotCheckedOut):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, billing.ErrSubscriptionInactive), errors.Is(err, billing.ErrGageQuotaExceeded):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, gages.ErrDuplicateSerial):
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
