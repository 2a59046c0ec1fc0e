package incidents

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepInterval is how often breached incidents are escalated when
// the interval is not configured.
const DefaultSweepInterval = 5 * time.Second

// Sweeper periodically runs the SLA breach sweep against the service.
// It must be stopped on shutdown so the timer does not leak.
type Sweeper struct {
	service  *Service
	interval time.Duration
	cron     *cron.Cron
}

// NewSweeper creates a sweeper running every interval. Non-positive
// intervals fall back to DefaultSweepInterval.
func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		service:  service,
		interval: interval,
		cron:     cron.New(),
	}
}

// Start schedules the sweep and begins ticking.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.sweep); err != nil {
		return fmt.Errorf("schedule sla sweep: %w", err)
	}
	s.cron.Start()

	slog.Info("sla sweeper started", "interval", s.interval)
	return nil
}

// Stop cancels the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("sla sweeper stopped")
}

// Sweep runs one sweep immediately, outside the schedule.
func (s *Sweeper) Sweep() int {
	start := time.Now()
	n := s.service.EscalateBreached()
	recordSweepDuration(time.Since(start))

	if n > 0 {
		slog.Info("auto-escalated breached incidents", "count", n)
	}
	return n
}

func (s *Sweeper) sweep() {
	s.Sweep()
}
