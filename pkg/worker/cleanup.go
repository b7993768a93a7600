package worker

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/rosterhq/roster/pkg/auth"
	"github.com/rosterhq/roster/pkg/observability"
	"github.com/rosterhq/roster/pkg/orgs"
)

// CleanupWorker periodically deletes expired invites and sessions. Expiry is
// enforced at read time as well; the sweep just keeps the tables from
// accumulating dead rows.
type CleanupWorker struct {
	cron       *cron.Cron
	schedule   string
	orgService orgs.Service
	authStore  auth.Store
	logger     *logrus.Logger
	metrics    *observability.Metrics
}

// NewCleanupWorker creates a cleanup worker with the given cron schedule
func NewCleanupWorker(schedule string, orgService orgs.Service, authStore auth.Store, logger *logrus.Logger, metrics *observability.Metrics) *CleanupWorker {
	if logger == nil {
		logger = logrus.New()
	}
	return &CleanupWorker{
		cron:       cron.New(),
		schedule:   schedule,
		orgService: orgService,
		authStore:  authStore,
		logger:     logger,
		metrics:    metrics,
	}
}

// Start schedules the sweep and starts the cron scheduler
func (w *CleanupWorker) Start() error {
	if _, err := w.cron.AddFunc(w.schedule, w.Run); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}
	w.cron.Start()
	w.logger.WithField("schedule", w.schedule).Info("cleanup worker started")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (w *CleanupWorker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("cleanup worker stopped")
}

// Run performs one sweep. It is exported for the run-once mode and tests.
func (w *CleanupWorker) Run() {
	invites, err := w.orgService.CleanupExpiredInvites()
	if err != nil {
		w.logger.WithError(err).Error("failed to clean up expired invites")
	} else if invites > 0 {
		if w.metrics != nil {
			w.metrics.InvitesExpired.Add(float64(invites))
		}
		w.logger.WithField("count", invites).Info("expired invites removed")
	}

	sessions, err := w.authStore.CleanupExpiredSessions()
	if err != nil {
		w.logger.WithError(err).Error("failed to clean up expired sessions")
	} else if sessions > 0 {
		w.logger.WithField("count", sessions).Info("expired sessions removed")
	}
}
