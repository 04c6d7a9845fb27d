package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/xtc-labs/xtc/internal/config"
	"github.com/xtc-labs/xtc/internal/pipeline"
)

// Service triggers periodic pipeline runs on a fixed interval
type Service struct {
	config   *config.Config
	pipeline *pipeline.Service
	cron     *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, p *pipeline.Service) *Service {
	return &Service{
		config:   cfg,
		pipeline: p,
		cron:     cron.New(),
	}
}

// Start begins scheduled refreshes. Triggers that land while a run is
// still in flight are coalesced by the pipeline itself.
func (s *Service) Start() error {
	spec := fmt.Sprintf("@every %s", s.config.RefreshInterval)

	_, err := s.cron.AddFunc(spec, func() {
		logrus.Info("Starting scheduled refresh")
		if !s.pipeline.TryRun() {
			logrus.Info("Scheduled refresh skipped, run already in progress")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started, refreshing every %s", s.config.RefreshInterval)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
