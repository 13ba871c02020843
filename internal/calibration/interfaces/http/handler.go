package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"gagetrack/internal/audit"
	"gagetrack/internal/auth"
	calapp "gagetrack/internal/calibration/application"
	calibration "gagetrack/internal/calibration/domain"
)

// Handler provides calibration record and measurement group HTTP endpoints.
type Handler struct {
	service     *calapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *calapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("calibration handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes /api/v1/calibration-records and
// /api/v1/measurement-groups requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")

	switch {
	case path == "/api/v1/calibration-records":
		h.handleRecords(w, r)
	case strings.HasPrefix(path, "/api/v1/calibration-records/"):
		h.handleRecordItem(w, r, strings.TrimPrefix(path, "/api/v1/calibration-records/"))
	case path == "/api/v1/measurement-groups":
		h.handleGroups(w, r)
	case strings.HasPrefix(path, "/api/v1/measurement-groups/"):
		h.handleGroupItem(w, r, strings.TrimPrefix(path, "/api/v1/measurement-groups/"))
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleRecords(w http.ResponseWriter, r *http.Request) {
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		gageID := r.URL.Query().Get("gage_id")
		if gageID == "" {
			http.Error(w, "gage_id required", http.StatusBadRequest)
			return
		}
		list, err := h.service.ListRecords(r.Context(), companyID, gageID)
		if err != nil {
			respondCalibrationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"calibration_records": list})
	case http.MethodPost:
		var input calapp.CreateRecordInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		rec, deviation, err := h.service.CreateRecord(r.Context(), companyID, input)
		if err != nil {
			respondCalibrationError(w, err)
			return
		}
		h.logAudit(r, companyID, "calibration.create", "calibration_record", rec.ID, rec.GageID, input)
		writeJSON(w, http.StatusCreated, map[string]any{"record": rec, "deviation": deviation})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleRecordItem(w http.ResponseWriter, r *http.Request, recordID string) {
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if recordID == "" || strings.Contains(recordID, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		view, err := h.service.GetRecord(r.Context(), companyID, recordID)
		if err != nil {
			respondCalibrationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPut, http.MethodPatch:
		var input calapp.UpdateRecordInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		rec, deviation, err := h.service.UpdateRecord(r.Context(), companyID, recordID, input)
		if err != nil {
			respondCalibrationError(w, err)
			return
		}
		h.logAudit(r, companyID, "calibration.update", "calibration_record", rec.ID, rec.GageID, input)
		writeJSON(w, http.StatusOK, map[string]any{"record": rec, "deviation": deviation})
	case http.MethodDelete:
		if err := h.service.DeleteRecord(r.Context(), companyID, recordID); err != nil {
			respondCalibrationError(w, err)
			return
		}
		h.logAudit(r, companyID, "calibration.delete", "calibration_record", recordID, "", nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGroups(w http.ResponseWriter, r *http.Request) {
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var input calapp.CreateGroupInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	group, err := h.service.CreateGroup(r.Context(), companyID, input)
	if err != nil {
		respondCalibrationError(w, err)
		return
	}
	h.logAudit(r, companyID, "measurement_group.create", "measurement_group", group.ID, "", input)
	writeJSON(w, http.StatusCreated, group)
}

func (h *Handler) handleGroupItem(w http.ResponseWriter, r *http.Request, rest string) {
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	parts := strings.Split(rest, "/")
	groupID := parts[0]
	if groupID == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 2 && parts[1] == "measurements" {
		h.handleMeasurements(w, r, companyID, groupID)
		return
	}
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		group, err := h.service.GetGroup(r.Context(), companyID, groupID)
		if err != nil {
			respondCalibrationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"group": group, "status": group.Status()})
	case http.MethodPut, http.MethodPatch:
		var input calapp.UpdateGroupInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		group, err := h.service.UpdateGroup(r.Context(), companyID, groupID, input)
		if err != nil {
			respondCalibrationError(w, err)
			return
		}
		h.logAudit(r, companyID, "measurement_group.update", "measurement_group", group.ID, "", input)
		writeJSON(w, http.StatusOK, group)
	case http.MethodDelete:
		if err := h.service.DeleteGroup(r.Context(), companyID, groupID); err != nil {
			respondCalibrationError(w, err)
			return
		}
		h.logAudit(r, companyID, "measurement_group.delete", "measurement_group", groupID, "", nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleMeasurements(w http.ResponseWriter, r *http.Request, companyID, groupID string) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var input struct {
		Values []calapp.MeasurementValue `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	result, err := h.service.RecordMeasurements(r.Context(), companyID, groupID, input.Values)
	if err != nil {
		respondCalibrationError(w, err)
		return
	}
	h.logAudit(r, companyID, "measurement_group.record", "measurement_group", groupID, "", input)
	writeJSON(w, http.StatusOK, result)
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

func respondCalibrationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, calibration.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, calibration.ErrInvalidMode), errors.Is(err, calibration.ErrInvalidToleranceType):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
