package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner performs one monitoring run
type Runner interface {
	RunMonitoring() error
}

// Service handles scheduling of monitoring runs
type Service struct {
	interval time.Duration
	runner   Runner
	cron     *cron.Cron
}

// NewService creates a scheduler that runs runner every interval
func NewService(interval time.Duration, runner Runner) *Service {
	return &Service{
		interval: interval,
		runner:   runner,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Schedule returns the cron expression used for the polling interval
func (s *Service) Schedule() string {
	return fmt.Sprintf("@every %s", s.interval)
}

// Start begins the scheduled monitoring. When runNow is set the first run
// starts immediately instead of after one interval.
func (s *Service) Start(runNow bool) error {
	if s.interval < time.Second {
		return fmt.Errorf("polling interval must be at least 1s, got %s", s.interval)
	}

	if _, err := s.cron.AddFunc(s.Schedule(), s.run); err != nil {
		return fmt.Errorf("failed to schedule monitoring: %w", err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started, polling every %s", s.interval)

	if runNow {
		go s.run()
	}
	return nil
}

func (s *Service) run() {
	logrus.Debug("Starting scheduled monitoring run")
	if err := s.runner.RunMonitoring(); err != nil {
		logrus.Errorf("Scheduled monitoring run failed: %v", err)
	}
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
