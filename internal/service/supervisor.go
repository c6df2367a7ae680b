// Package service sits between the HTTP layer and the pipeline: it validates
// incoming requests, owns job creation and cancellation and launches one
// pipeline run per accepted job.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/veedran/reelsmith/internal/adapters/steam"
	"github.com/veedran/reelsmith/internal/broadcast"
	"github.com/veedran/reelsmith/internal/jobs"
	"github.com/veedran/reelsmith/pkg/log"
)

var (
	// ErrJobNotFound is returned for operations on unknown job ids.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobFinished is returned when cancelling a job that already
	// reached a terminal state.
	ErrJobFinished = errors.New("job already finished")
)

const maxJobsPerRequest = 5

// AppValidator checks a Steam app id against the live store.
type AppValidator interface {
	Validate(ctx context.Context, appID string) (*steam.AppDetails, error)
}

// Runner executes the pipeline for one job. It is expected to block until the
// job reaches a terminal state.
type Runner interface {
	Run(ctx context.Context, jobID string, req jobs.Request)
}

// Supervisor coordinates job intake and lifecycle operations.
type Supervisor struct {
	registry  *jobs.Registry
	hub       *broadcast.Hub
	validator AppValidator
	runner    Runner

	// runCtx outlives individual requests so pipelines keep running after
	// the submitting HTTP request returns.
	runCtx context.Context
}

func NewSupervisor(runCtx context.Context, registry *jobs.Registry, hub *broadcast.Hub, validator AppValidator, runner Runner) *Supervisor {
	return &Supervisor{
		registry:  registry,
		hub:       hub,
		validator: validator,
		runner:    runner,
		runCtx:    runCtx,
	}
}

// Submit validates the request and creates one queued job per requested count,
// launching a pipeline run for each. Returns the created jobs and the
// validated game name.
func (s *Supervisor) Submit(ctx context.Context, req jobs.Request) ([]*jobs.Job, string, error) {
	req.SteamAppID = strings.TrimSpace(req.SteamAppID)
	if req.SteamAppID == "" {
		return nil, "", validationErrorf("steam app id is required")
	}
	if err := steam.ValidateAppIDFormat(req.SteamAppID); err != nil {
		return nil, "", validationErrorf("invalid steam app id: %v", err)
	}
	if req.CustomVideoURL != "" && !ValidYouTubeURL(req.CustomVideoURL) {
		return nil, "", validationErrorf("custom video url must be a valid YouTube URL")
	}
	if req.Count == 0 {
		req.Count = 1
	}
	if req.Count < 1 || req.Count > maxJobsPerRequest {
		return nil, "", validationErrorf("count must be between 1 and %d", maxJobsPerRequest)
	}

	details, err := s.validator.Validate(ctx, req.SteamAppID)
	if err != nil {
		return nil, "", validationErrorf("invalid steam app id: %v", err)
	}
	if req.GameTitle == "" {
		req.GameTitle = details.Name
	}

	created := make([]*jobs.Job, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		job := s.registry.Create(req)
		created = append(created, job)
		go s.runner.Run(s.runCtx, job.ID, req)
	}
	log.Info("service: %d job(s) queued for %q (app id %s)", len(created), details.Name, req.SteamAppID)
	return created, details.Name, nil
}

// Status returns the current snapshot of a job. For terminal jobs the
// terminal event is re-broadcast so listeners that connected late still see
// the outcome.
func (s *Supervisor) Status(id string) (*jobs.Job, error) {
	job, ok := s.registry.Get(id)
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status.Terminal() {
		s.hub.Broadcast(broadcast.TerminalEvent(job))
	}
	return job, nil
}

// List returns all known jobs, most recent first.
func (s *Supervisor) List() []*jobs.Job {
	return s.registry.List()
}

// Cancel marks a job cancelled. The pipeline observes the record change at
// its next stage boundary; work already in flight at a vendor is not
// interrupted.
func (s *Supervisor) Cancel(id string) (*jobs.Job, error) {
	updated, ok := s.registry.Update(id, func(j *jobs.Job) {
		j.Status = jobs.StatusCancelled
		j.StageName = "cancelled"
	})
	if !ok {
		return nil, ErrJobNotFound
	}
	if updated.Status != jobs.StatusCancelled {
		// The job reached a terminal state before the cancel landed; the
		// registry kept that outcome and discarded the mutation.
		return nil, ErrJobFinished
	}
	s.hub.Broadcast(broadcast.TerminalEvent(updated))
	log.Info("service: job %s cancelled", id)
	return updated, nil
}
