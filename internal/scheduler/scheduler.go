// Package scheduler submits reel jobs for a configured list of games on a
// cron schedule, so a channel keeps producing without manual requests.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/veedran/reelsmith/internal/jobs"
	"github.com/veedran/reelsmith/pkg/icron"
	"github.com/veedran/reelsmith/pkg/log"
)

// Submitter is the job intake surface the scheduler drives.
type Submitter interface {
	Submit(ctx context.Context, req jobs.Request) ([]*jobs.Job, string, error)
}

// Scheduler runs the configured automation on a cron expression. A zero
// configuration (no expression or no app ids) disables it.
type Scheduler struct {
	expr      string
	appIDs    []string
	submitter Submitter
	cron      *cron.Cron
}

func New(expr string, appIDs []string, submitter Submitter) *Scheduler {
	return &Scheduler{
		expr:      expr,
		appIDs:    appIDs,
		submitter: submitter,
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
	}
}

// Start registers the cron entry and begins scheduling. Returns without
// error when scheduling is not configured.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.expr == "" || len(s.appIDs) == 0 {
		log.Info("scheduler: not configured, skipping")
		return nil
	}

	info, err := icron.GetTriggerInfo(s.expr, time.Now())
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	log.Info("scheduler: %q next trigger at %s (in %s) for %d app id(s)",
		info.Expression, info.Next.Format(time.RFC3339), info.TimeUntilNext.Round(time.Second), len(s.appIDs))

	if _, err := s.cron.AddFunc(s.expr, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling. Jobs already submitted keep running.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	log.Info("scheduler: trigger fired, submitting %d app id(s)", len(s.appIDs))
	for _, appID := range s.appIDs {
		created, name, err := s.submitter.Submit(ctx, jobs.Request{SteamAppID: appID})
		if err != nil {
			log.Warn("scheduler: submission for app id %s failed: %v", appID, err)
			continue
		}
		log.Info("scheduler: queued %d job(s) for %q", len(created), name)
	}
	if info, err := icron.GetTriggerInfo(s.expr, time.Now()); err == nil {
		log.Info("scheduler: next trigger at %s", info.Next.Format(time.RFC3339))
	}
}
