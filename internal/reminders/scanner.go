package reminders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	calibration "gagetrack/internal/calibration/domain"
	gages "gagetrack/internal/gages/domain"
	"gagetrack/internal/observability/metrics"
	"gagetrack/internal/reminders/notify"
)

// GageSource lists gages due for calibration.
type GageSource interface {
	ListDueBy(ctx context.Context, cutoff time.Time) ([]gages.Gage, error)
}

// DepartmentSource resolves departments.
type DepartmentSource interface {
	Get(ctx context.Context, id string) (*gages.Department, error)
}

// Digest is one reminder grouped by department manager.
type Digest struct {
	CompanyID    string
	Department   string
	ManagerEmail string
	Gages        []gages.Gage
}

// Summary reports the outcome of one scan run.
type Summary struct {
	Scanned int
	Digests int
	Sent    int
	Skipped int
}

// Scanner finds due gages and sends grouped reminders to department
// managers.
type Scanner struct {
	gageRepo    GageSource
	deptRepo    DepartmentSource
	channel     notify.Channel
	template    *notify.Template
	logger      *log.Logger
	windowDays  int
	dueSoonDays int
	dryRun      bool
}

// ScannerOption configures the scanner.
type ScannerOption func(*Scanner)

// WithWindowDays sets how far ahead the scan looks.
func WithWindowDays(days int) ScannerOption {
	return func(s *Scanner) {
		if days > 0 {
			s.windowDays = days
		}
	}
}

// WithDryRun logs reminders instead of sending them.
func WithDryRun(dryRun bool) ScannerOption {
	return func(s *Scanner) {
		s.dryRun = dryRun
	}
}

// WithTemplate overrides the reminder template.
func WithTemplate(template *notify.Template) ScannerOption {
	return func(s *Scanner) {
		if template != nil {
			s.template = template
		}
	}
}

// NewScanner constructs a reminder scanner.
func NewScanner(gageRepo GageSource, deptRepo DepartmentSource, channel notify.Channel, logger *log.Logger, opts ...ScannerOption) (*Scanner, error) {
	if gageRepo == nil || deptRepo == nil {
		return nil, errors.New("reminders: nil repository")
	}
	template, err := notify.NewTemplate("")
	if err != nil {
		return nil, err
	}
	scanner := &Scanner{
		gageRepo:    gageRepo,
		deptRepo:    deptRepo,
		channel:     channel,
		template:    template,
		logger:      logger,
		windowDays:  calibration.DefaultDueSoonWindowDays,
		dueSoonDays: calibration.DefaultDueSoonWindowDays,
	}
	for _, opt := range opts {
		opt(scanner)
	}
	return scanner, nil
}

// Run scans once and sends one digest per department manager. Gages in
// departments without a manager email are counted as skipped.
func (s *Scanner) Run(ctx context.Context, now time.Time) (Summary, error) {
	if s == nil {
		return Summary{}, errors.New("reminders: nil scanner")
	}
	now = now.UTC()
	cutoff := now.AddDate(0, 0, s.windowDays)

	due, err := s.gageRepo.ListDueBy(ctx, cutoff)
	if err != nil {
		metrics.ObserveReminderRun(metrics.ResultError)
		return Summary{}, err
	}

	summary := Summary{Scanned: len(due)}
	digests, skipped, err := s.groupByManager(ctx, due)
	if err != nil {
		metrics.ObserveReminderRun(metrics.ResultError)
		return summary, err
	}
	summary.Skipped = skipped
	summary.Digests = len(digests)

	for _, digest := range digests {
		content, err := s.render(digest, now)
		if err != nil {
			if s.logger != nil {
				s.logger.Printf("reminder render failed: department=%s err=%v", digest.Department, err)
			}
			continue
		}
		subject := fmt.Sprintf("Calibration due: %d gage(s) in %s", len(digest.Gages), digest.Department)
		if s.dryRun || s.channel == nil {
			if s.logger != nil {
				s.logger.Printf("reminder dry-run: to=%s subject=%q", digest.ManagerEmail, subject)
			}
			continue
		}
		if err := s.channel.Send(ctx, digest.ManagerEmail, subject, content); err != nil {
			if s.logger != nil {
				s.logger.Printf("reminder send failed: to=%s err=%v", digest.ManagerEmail, err)
			}
			continue
		}
		summary.Sent++
	}

	metrics.ObserveReminderRun(metrics.ResultSuccess)
	metrics.AddRemindersSent(summary.Sent)
	return summary, nil
}

func (s *Scanner) groupByManager(ctx context.Context, due []gages.Gage) ([]Digest, int, error) {
	type key struct {
		departmentID string
	}
	byDept := make(map[key][]gages.Gage)
	for _, gage := range due {
		k := key{departmentID: gage.DepartmentID}
		byDept[k] = append(byDept[k], gage)
	}

	var digests []Digest
	skipped := 0
	for k, list := range byDept {
		dept, err := s.deptRepo.Get(ctx, k.departmentID)
		if err != nil {
			return nil, 0, err
		}
		if dept == nil || dept.ManagerEmail == "" {
			skipped += len(list)
			if s.logger != nil && dept != nil {
				s.logger.Printf("reminder skipped: department=%s has no manager email", dept.Name)
			}
			continue
		}
		sort.Slice(list, func(i, j int) bool {
			left, right := list[i].NextDueDate, list[j].NextDueDate
			if left == nil {
				return true
			}
			if right == nil {
				return false
			}
			return left.Before(*right)
		})
		digests = append(digests, Digest{
			CompanyID:    dept.CompanyID,
			Department:   dept.Name,
			ManagerEmail: dept.ManagerEmail,
			Gages:        list,
		})
	}
	sort.Slice(digests, func(i, j int) bool { return digests[i].ManagerEmail < digests[j].ManagerEmail })
	return digests, skipped, nil
}

func (s *Scanner) render(digest Digest, now time.Time) (string, error) {
	data := notify.TemplateData{
		Department:   digest.Department,
		ManagerEmail: digest.ManagerEmail,
		Date:         now.Format("2006-01-02"),
	}
	for _, gage := range digest.Gages {
		line := notify.GageLine{
			Name:         gage.Name,
			SerialNumber: gage.SerialNumber,
			Status:       string(calibration.ClassifyStatus(gage.NextDueDate, now, s.dueSoonDays)),
			DueDate:      "unscheduled",
		}
		if gage.NextDueDate != nil {
			line.DueDate = gage.NextDueDate.Format("2006-01-02")
			line.DaysUntilDue = fmt.Sprintf("%d", calibration.DaysUntilDue(*gage.NextDueDate, now))
		}
		data.Gages = append(data.Gages, line)
	}
	return s.template.Render(data)
}
