package reminders

import (
	"context"
	"log"
	"time"
)

// Scheduler runs the reminder scan once per day.
type Scheduler struct {
	scanner *Scanner
	dailyAt string
	logger  *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(scanner *Scanner, dailyAt string, logger *log.Logger) *Scheduler {
	return &Scheduler{scanner: scanner, dailyAt: dailyAt, logger: logger}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.scanner == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			summary, err := s.scanner.Run(ctx, now.UTC())
			if err != nil {
				if s.logger != nil {
					s.logger.Printf("reminder schedule error: %v", err)
				}
				continue
			}
			if s.logger != nil {
				s.logger.Printf("reminder run: scanned=%d digests=%d sent=%d skipped=%d",
					summary.Scanned, summary.Digests, summary.Sent, summary.Skipped)
			}
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
