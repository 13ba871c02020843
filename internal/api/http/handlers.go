package apihttp

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"gagetrack/internal/auth"
	calibration "gagetrack/internal/calibration/domain"
	"gagetrack/internal/exports"
	gagesapp "gagetrack/internal/gages/application"
	"gagetrack/internal/observability/metrics"
)

const timeLayout = time.RFC3339

// upcomingLimit caps the dashboard's upcoming-calibrations list.
const upcomingLimit = 10

// GageDirectory lists a company's gages with their schedule classification.
type GageDirectory interface {
	ListGages(ctx context.Context, companyID string) ([]gagesapp.GageView, error)
}

// RecordDirectory lists a company's calibration records.
type RecordDirectory interface {
	ListByCompany(ctx context.Context, companyID string) ([]calibration.Record, error)
	ListByGage(ctx context.Context, gageID string) ([]calibration.Record, error)
}

// Clock abstracts time for handlers.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// DashboardHandler serves the schedule overview.
type DashboardHandler struct {
	gages GageDirectory
	clock Clock
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(gages GageDirectory) *DashboardHandler {
	return &DashboardHandler{gages: gages, clock: realClock{}}
}

type dashboardResponse struct {
	TotalGages  int                     `json:"total_gages"`
	Counts      map[string]int          `json:"counts"`
	Upcoming    []gagesapp.GageView     `json:"upcoming"`
	GeneratedAt time.Time               `json:"generated_at"`
	Statuses    []calibration.DueStatus `json:"statuses"`
}

// ServeHTTP handles GET /api/v1/dashboard.
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.gages == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		http.Error(w, "company scope missing", http.StatusUnauthorized)
		return
	}

	views, err := h.gages.ListGages(r.Context(), companyID)
	if err != nil {
		http.Error(w, "query gages error", http.StatusInternalServerError)
		return
	}

	statuses := []calibration.DueStatus{
		calibration.DueStatusOverdue,
		calibration.DueStatusDueSoon,
		calibration.DueStatusOnSchedule,
		calibration.DueStatusUnknown,
	}
	counts := make(map[string]int, len(statuses))
	for _, status := range statuses {
		counts[string(status)] = 0
	}
	for _, view := range views {
		counts[string(view.DueStatus)]++
	}
	for _, status := range statuses {
		metrics.SetDueStatusCount(string(status), counts[string(status)])
	}

	upcoming := make([]gagesapp.GageView, 0, len(views))
	for _, view := range views {
		if view.DueStatus == calibration.DueStatusOverdue || view.DueStatus == calibration.DueStatusDueSoon {
			upcoming = append(upcoming, view)
		}
	}
	sortByDueDate(upcoming)
	if len(upcoming) > upcomingLimit {
		upcoming = upcoming[:upcomingLimit]
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(dashboardResponse{
		TotalGages:  len(views),
		Counts:      counts,
		Upcoming:    upcoming,
		GeneratedAt: h.clock.Now().UTC(),
		Statuses:    statuses,
	})
}

// CalendarHandler serves due dates as calendar entries.
type CalendarHandler struct {
	gages GageDirectory
}

// NewCalendarHandler constructs a CalendarHandler.
func NewCalendarHandler(gages GageDirectory) *CalendarHandler {
	return &CalendarHandler{gages: gages}
}

type calendarEntry struct {
	GageID       string                `json:"gage_id"`
	Name         string                `json:"name"`
	SerialNumber string                `json:"serial_number"`
	DueDate      time.Time             `json:"due_date"`
	Status       calibration.DueStatus `json:"status"`
	DaysUntilDue *int                  `json:"days_until_due"`
}

// ServeHTTP handles GET /api/v1/calendar. Optional from/to query
// parameters (RFC3339) bound the window; unscheduled gages are omitted.
func (h *CalendarHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.gages == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		http.Error(w, "company scope missing", http.StatusUnauthorized)
		return
	}

	from, err := parseOptionalTime(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseOptionalTime(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if from != nil && to != nil && !to.After(*from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	views, err := h.gages.ListGages(r.Context(), companyID)
	if err != nil {
		http.Error(w, "query gages error", http.StatusInternalServerError)
		return
	}
	sortByDueDate(views)

	entries := make([]calendarEntry, 0, len(views))
	for _, view := range views {
		if view.NextDueDate == nil {
			continue
		}
		due := view.NextDueDate.UTC()
		if from != nil && due.Before(*from) {
			continue
		}
		if to != nil && due.After(*to) {
			continue
		}
		entries = append(entries, calendarEntry{
			GageID:       view.ID,
			Name:         view.Name,
			SerialNumber: view.SerialNumber,
			DueDate:      due,
			Status:       view.DueStatus,
			DaysUntilDue: view.DaysUntilDue,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

// ExportGagesHandler serves gage inventory exports. The format comes
// from the path extension: gages.csv, gages.pdf or gages.xlsx.
type ExportGagesHandler struct {
	gages GageDirectory
	clock Clock
}

// NewExportGagesHandler constructs an ExportGagesHandler.
func NewExportGagesHandler(gages GageDirectory) *ExportGagesHandler {
	return &ExportGagesHandler{gages: gages, clock: realClock{}}
}

// ServeHTTP handles GET /api/v1/exports/gages.{csv,pdf,xlsx}.
func (h *ExportGagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.gages == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		http.Error(w, "company scope missing", http.StatusUnauthorized)
		return
	}
	format, ok := exportFormat(r.URL.Path)
	if !ok {
		http.Error(w, "format must be csv, pdf or xlsx", http.StatusNotFound)
		return
	}

	started := h.clock.Now()
	views, err := h.gages.ListGages(r.Context(), companyID)
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, h.clock.Now().Sub(started))
		http.Error(w, "query gages error", http.StatusInternalServerError)
		return
	}
	sortByDueDate(views)

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="gages.csv"`)
		writer := csv.NewWriter(w)
		_ = writer.Write([]string{
			"id",
			"name",
			"serial_number",
			"department_id",
			"frequency_days",
			"next_due_date",
			"due_status",
			"days_until_due",
		})
		for _, view := range views {
			_ = writer.Write([]string{
				view.ID,
				view.Name,
				view.SerialNumber,
				view.DepartmentID,
				strconv.Itoa(view.FrequencyDays),
				formatNullableTime(view.NextDueDate),
				string(view.DueStatus),
				formatNullableInt(view.DaysUntilDue),
			})
		}
		writer.Flush()
	case "pdf":
		payload, err := exports.BuildGagesPDF(companyID, views, h.clock.Now())
		if err != nil {
			metrics.ObserveExport(format, metrics.ResultError, h.clock.Now().Sub(started))
			http.Error(w, "build pdf error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="gages.pdf"`)
		_, _ = w.Write(payload)
	case "xlsx":
		payload, err := exports.BuildGagesXLSX(companyID, views, h.clock.Now())
		if err != nil {
			metrics.ObserveExport(format, metrics.ResultError, h.clock.Now().Sub(started))
			http.Error(w, "build xlsx error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="gages.xlsx"`)
		_, _ = w.Write(payload)
	}
	metrics.ObserveExport(format, metrics.ResultSuccess, h.clock.Now().Sub(started))
}

// ExportRecordsHandler serves calibration history exports, path-addressed
// like ExportGagesHandler. An optional gage_id query parameter narrows
// the export to one gage.
type ExportRecordsHandler struct {
	records RecordDirectory
	checker auth.GageCompanyChecker
	clock   Clock
}

// NewExportRecordsHandler constructs an ExportRecordsHandler.
func NewExportRecordsHandler(records RecordDirectory, checker auth.GageCompanyChecker) *ExportRecordsHandler {
	return &ExportRecordsHandler{records: records, checker: checker, clock: realClock{}}
}

// ServeHTTP handles GET /api/v1/exports/calibration-records.{csv,pdf,xlsx}.
func (h *ExportRecordsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.records == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		http.Error(w, "company scope missing", http.StatusUnauthorized)
		return
	}
	format, ok := exportFormat(r.URL.Path)
	if !ok {
		http.Error(w, "format must be csv, pdf or xlsx", http.StatusNotFound)
		return
	}

	started := h.clock.Now()
	var records []calibration.Record
	var err error
	if gageID := r.URL.Query().Get("gage_id"); gageID != "" {
		if h.checker != nil {
			if err := h.checker.EnsureGageCompany(r.Context(), companyID, gageID); err != nil {
				if errors.Is(err, auth.ErrNotFound) || errors.Is(err, auth.ErrCompanyMismatch) {
					http.Error(w, "gage not found", http.StatusNotFound)
					return
				}
				http.Error(w, "ownership check error", http.StatusInternalServerError)
				return
			}
		}
		records, err = h.records.ListByGage(r.Context(), gageID)
	} else {
		records, err = h.records.ListByCompany(r.Context(), companyID)
	}
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, h.clock.Now().Sub(started))
		http.Error(w, "query records error", http.StatusInternalServerError)
		return
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="calibration-records.csv"`)
		writer := csv.NewWriter(w)
		_ = writer.Write([]string{
			"id",
			"gage_id",
			"mode",
			"calibrated_at",
			"measured_value",
			"calibrated_value",
			"performed_by",
			"cert_file",
		})
		for _, rec := range records {
			measured, calibrated := "", ""
			if rec.Mode == calibration.WorkflowSimple {
				measured = strconv.FormatFloat(rec.MeasuredValue, 'f', -1, 64)
				calibrated = strconv.FormatFloat(rec.CalibratedValue, 'f', -1, 64)
			}
			_ = writer.Write([]string{
				rec.ID,
				rec.GageID,
				string(rec.Mode),
				rec.CalibratedAt.UTC().Format(timeLayout),
				measured,
				calibrated,
				rec.PerformedBy,
				rec.CertFile,
			})
		}
		writer.Flush()
	case "pdf":
		payload, err := exports.BuildRecordsPDF(companyID, records, h.clock.Now())
		if err != nil {
			metrics.ObserveExport(format, metrics.ResultError, h.clock.Now().Sub(started))
			http.Error(w, "build pdf error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="calibration-records.pdf"`)
		_, _ = w.Write(payload)
	case "xlsx":
		payload, err := exports.BuildRecordsXLSX(companyID, records, h.clock.Now())
		if err != nil {
			metrics.ObserveExport(format, metrics.ResultError, h.clock.Now().Sub(started))
			http.Error(w, "build xlsx error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="calibration-records.xlsx"`)
		_, _ = w.Write(payload)
	}
	metrics.ObserveExport(format, metrics.ResultSuccess, h.clock.Now().Sub(started))
}

func exportFormat(path string) (string, bool) {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return "", false
	}
	switch format := path[idx+1:]; format {
	case "csv", "pdf", "xlsx":
		return format, true
	default:
		return "", false
	}
}

func sortByDueDate(views []gagesapp.GageView) {
	sort.SliceStable(views, func(i, j int) bool {
		left, right := views[i].NextDueDate, views[j].NextDueDate
		if left == nil {
			return false
		}
		if right == nil {
			return true
		}
		return left.Before(*right)
	})
}

func parseOptionalTime(r *http.Request, key string) (*time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return nil, errors.New(key + " must be RFC3339")
	}
	utc := parsed.UTC()
	return &utc, nil
}

func formatNullableTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(timeLayout)
}

func formatNullableInt(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}
