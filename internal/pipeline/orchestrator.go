package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veedran/reelsmith/internal/broadcast"
	"github.com/veedran/reelsmith/internal/jobs"
	"github.com/veedran/reelsmith/pkg/log"
)

// Orchestrator runs the four fixed stages for one job, strictly in order.
// It is the outermost error boundary: nothing escapes Run. Any stage failure
// lands on the job record as a failed transition plus a broadcast; broadcast
// problems never touch the job.
type Orchestrator struct {
	store    JobStore
	hub      Broadcaster
	games    GameResolver
	intro    IntroProducer
	clips    ClipProducer
	banner   BannerProducer
	compiler Compiler
	assets   Downloader

	fallbackBannerURL string
	logoURL           string
	stageTimeout      time.Duration
}

type Deps struct {
	Store    JobStore
	Hub      Broadcaster
	Games    GameResolver
	Intro    IntroProducer
	Clips    ClipProducer
	Banner   BannerProducer
	Compiler Compiler
	Assets   Downloader

	FallbackBannerURL string
	LogoURL           string
	// StageTimeout caps each stage on top of the adapters' own
	// polling limits.
	StageTimeout time.Duration
}

func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.StageTimeout <= 0 {
		deps.StageTimeout = 30 * time.Minute
	}
	return &Orchestrator{
		store:             deps.Store,
		hub:               deps.Hub,
		games:             deps.Games,
		intro:             deps.Intro,
		clips:             deps.Clips,
		banner:            deps.Banner,
		compiler:          deps.Compiler,
		assets:            deps.Assets,
		fallbackBannerURL: deps.FallbackBannerURL,
		logoURL:           deps.LogoURL,
		stageTimeout:      deps.StageTimeout,
	}
}

// Run executes the pipeline for jobID. Results land on the job record; the
// caller gets nothing back and must not wait on it.
func (o *Orchestrator) Run(ctx context.Context, jobID string, req jobs.Request) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job %s: pipeline panic: %v", jobID, r)
			o.fail(jobID, fmt.Errorf("internal pipeline error: %v", r))
		}
	}()

	if o.cancelled(jobID) {
		log.Info("Job %s: cancelled before start, skipping", jobID)
		return
	}

	o.store.Update(jobID, func(j *jobs.Job) {
		j.Status = jobs.StatusRunning
		j.StageName = "starting"
	})
	o.emit(broadcast.Event{Type: broadcast.TypeJobStarted, JobID: jobID})

	game := o.resolveGame(ctx, req)
	log.Info("Job %s: pipeline started for %q (app id %s)", jobID, game.Title, game.AppID)

	// Stage 1: narrated avatar intro. No fallback video; later stages depend
	// on this narrative content, so failure is fatal.
	introURL, err := o.runStage(ctx, jobID, StageIntro, func(ctx context.Context) (string, error) {
		return o.intro.Produce(ctx, game)
	})
	if err != nil {
		o.fail(jobID, err)
		return
	}

	// Stage 2: gameplay clip, from the custom source when supplied.
	source := req.CustomVideoURL
	if source == "" {
		source = game.TrailerURL
	}
	clipURL, err := o.runStage(ctx, jobID, StageClip, func(ctx context.Context) (string, error) {
		return o.clips.Produce(ctx, game, source)
	})
	if err != nil {
		o.fail(jobID, err)
		return
	}

	// Stage 3: price banner. The banner is supplementary content, so this is
	// the one stage that degrades instead of failing the job.
	bannerURL, err := o.runStage(ctx, jobID, StageBanner, func(ctx context.Context) (string, error) {
		return o.banner.Produce(ctx, game)
	})
	if err != nil {
		if err == errCancelled {
			return
		}
		log.Warn("Job %s: banner stage degraded, using fallback asset: %v", jobID, err)
		bannerURL = o.fallbackBannerURL
	}

	// Stage 4: final composition.
	finalURL, err := o.runStage(ctx, jobID, StageCompile, func(ctx context.Context) (string, error) {
		return o.compiler.Produce(ctx, Composition{
			Title:     game.Title,
			IntroURL:  introURL,
			ClipURL:   clipURL,
			BannerURL: bannerURL,
			LogoURL:   o.logoURL,
		})
	})
	if err != nil {
		o.fail(jobID, err)
		return
	}

	result := &jobs.Result{RemoteURL: finalURL}
	if o.assets != nil {
		localPath, err := o.assets.Download(ctx, finalURL, game.Title)
		if err != nil {
			// The remote URL is still a valid result on its own.
			log.Warn("Job %s: failed to cache final reel locally: %v", jobID, err)
		} else {
			result.LocalPath = localPath
		}
	}

	done, ok := o.store.Update(jobID, func(j *jobs.Job) {
		j.Status = jobs.StatusCompleted
		j.Progress = 100
		j.Result = result
	})
	if !ok || done.Status != jobs.StatusCompleted {
		// Lost the race against a cancel; the record stays as it is.
		return
	}
	log.Info("Job %s: completed, final reel at %s", jobID, finalURL)
	o.emit(broadcast.TerminalEvent(done))
}

// runStage advances the job record to the stage, broadcasts the progress
// update, then executes the stage under the stage timeout.
func (o *Orchestrator) runStage(ctx context.Context, jobID string, stage int, produce func(context.Context) (string, error)) (string, error) {
	if o.cancelled(jobID) {
		return "", errCancelled
	}

	updated, ok := o.store.Update(jobID, func(j *jobs.Job) {
		j.CurrentStage = stage
		j.StageName = StageName(stage)
		j.Progress = stage * 100 / jobs.TotalStages
	})
	if ok && updated != nil {
		o.emit(broadcast.ProgressEvent(updated))
	}

	stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	assetURL, err := produce(stageCtx)
	if err != nil {
		return "", newStageError(stage, err)
	}
	if assetURL == "" {
		return "", newStageError(stage, fmt.Errorf("no retrievable asset produced"))
	}
	log.Info("Job %s: stage %d (%s) completed: %s", jobID, stage, StageName(stage), assetURL)
	return assetURL, nil
}

func (o *Orchestrator) resolveGame(ctx context.Context, req jobs.Request) Game {
	fallbackTitle := req.GameTitle
	if fallbackTitle == "" {
		fallbackTitle = "Steam_Game_" + req.SteamAppID
	}

	if o.games == nil {
		return Game{AppID: req.SteamAppID, Title: fallbackTitle}
	}
	game, err := o.games.Resolve(ctx, req.SteamAppID)
	if err != nil {
		log.Warn("Metadata lookup failed for app %s, using placeholder title: %v", req.SteamAppID, err)
		return Game{AppID: req.SteamAppID, Title: fallbackTitle}
	}
	if game.Title == "" {
		game.Title = fallbackTitle
	}
	return game
}

var errCancelled = errors.New("job cancelled")

func (o *Orchestrator) cancelled(jobID string) bool {
	job, ok := o.store.Get(jobID)
	return !ok || job.Status.Terminal()
}

func (o *Orchestrator) fail(jobID string, err error) {
	if err == errCancelled {
		// Cancel already stamped the record and broadcast the event.
		return
	}

	failed, ok := o.store.Update(jobID, func(j *jobs.Job) {
		j.Status = jobs.StatusFailed
		j.Error = err.Error()
	})
	if !ok || failed.Status != jobs.StatusFailed {
		return
	}
	log.Error("Job %s: %v", jobID, err)
	o.emit(broadcast.TerminalEvent(failed))
}

// emit shields the pipeline from the broadcaster. The hub already swallows
// subscriber failures; this keeps even a broken Broadcaster implementation
// from failing an otherwise-successful job.
func (o *Orchestrator) emit(event broadcast.Event) {
	if o.hub == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("Broadcast of %s panicked: %v", event.Type, r)
		}
	}()
	o.hub.Broadcast(event)
}
