package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veedran/reelsmith/internal/broadcast"
	"github.com/veedran/reelsmith/internal/jobs"
	"github.com/veedran/reelsmith/internal/poll"
)

type recordingHub struct {
	mu     sync.Mutex
	events []broadcast.Event
	panics bool
}

func (h *recordingHub) Broadcast(event broadcast.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.panics {
		panic("hub exploded")
	}
	h.events = append(h.events, event)
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ret := make([]string, 0, len(h.events))
	for _, ev := range h.events {
		ret = append(ret, ev.Type)
	}
	return ret
}

type fakeResolver struct {
	game Game
	err  error
}

func (f *fakeResolver) Resolve(context.Context, string) (Game, error) {
	return f.game, f.err
}

type fakeStages struct {
	mu       sync.Mutex
	order    []string
	introErr error
	clipErr  error
	banErr   error
	compErr  error

	clipSource string
	comps      []Composition
	panicStage string
}

func (f *fakeStages) record(name string) {
	f.mu.Lock()
	f.order = append(f.order, name)
	f.mu.Unlock()
	if f.panicStage == name {
		panic("producer blew up")
	}
}

func (f *fakeStages) Produce(ctx context.Context, game Game) (string, error) {
	f.record("intro")
	if f.introErr != nil {
		return "", f.introErr
	}
	return "https://cdn.example.com/intro.mp4", nil
}

type clipStage struct{ *fakeStages }

func (c clipStage) Produce(ctx context.Context, game Game, sourceURL string) (string, error) {
	c.record("clip")
	c.mu.Lock()
	c.clipSource = sourceURL
	c.mu.Unlock()
	if c.clipErr != nil {
		return "", c.clipErr
	}
	return "https://cdn.example.com/clip.mp4", nil
}

type bannerStage struct{ *fakeStages }

func (b bannerStage) Produce(ctx context.Context, game Game) (string, error) {
	b.record("banner")
	if b.banErr != nil {
		return "", b.banErr
	}
	return "https://cdn.example.com/banner.png", nil
}

type compileStage struct{ *fakeStages }

func (c compileStage) Produce(ctx context.Context, comp Composition) (string, error) {
	c.record("compile")
	c.mu.Lock()
	c.comps = append(c.comps, comp)
	c.mu.Unlock()
	if c.compErr != nil {
		return "", c.compErr
	}
	return "https://cdn.example.com/final.mp4", nil
}

type fakeDownloader struct {
	err error
}

func (f *fakeDownloader) Download(ctx context.Context, assetURL, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "/output/" + name + ".mp4", nil
}

func newTestOrchestrator(stages *fakeStages, hub Broadcaster) (*Orchestrator, *jobs.Registry) {
	registry := jobs.NewRegistry()
	orch := NewOrchestrator(Deps{
		Store: registry,
		Hub:   hub,
		Games: &fakeResolver{game: Game{
			AppID:      "1245620",
			Title:      "Elden Ring",
			TrailerURL: "https://cdn.steam.example/trailer.mp4",
		}},
		Intro:             stages,
		Clips:             clipStage{stages},
		Banner:            bannerStage{stages},
		Compiler:          compileStage{stages},
		Assets:            &fakeDownloader{},
		FallbackBannerURL: "https://cdn.example.com/fallback-banner.png",
		LogoURL:           "https://cdn.example.com/logo.png",
	})
	return orch, registry
}

func TestOrchestrator_HappyPath(t *testing.T) {
	stages := &fakeStages{}
	hub := &recordingHub{}
	orch, registry := newTestOrchestrator(stages, hub)

	job := registry.Create(jobs.Request{SteamAppID: "1245620"})
	orch.Run(context.Background(), job.ID, job.Request)

	got, ok := registry.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, jobs.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Result)
	assert.Equal(t, "https://cdn.example.com/final.mp4", got.Result.RemoteURL)
	assert.Equal(t, "/output/Elden Ring.mp4", got.Result.LocalPath)
	assert.Empty(t, got.Error)

	assert.Equal(t, []string{"intro", "clip", "banner", "compile"}, stages.order)
	assert.Equal(t, []string{
		broadcast.TypeJobStarted,
		broadcast.TypeProgressUpdate,
		broadcast.TypeProgressUpdate,
		broadcast.TypeProgressUpdate,
		broadcast.TypeProgressUpdate,
		broadcast.TypeJobCompleted,
	}, hub.types())

	// progress is monotonically non-decreasing across the broadcast stream
	last := 0
	for _, ev := range hub.events {
		if ev.Type != broadcast.TypeProgressUpdate {
			continue
		}
		assert.GreaterOrEqual(t, ev.Progress, last)
		last = ev.Progress
	}
	assert.Equal(t, 100, last)
}

func TestOrchestrator_ClipSourcePrefersCustomURL(t *testing.T) {
	stages := &fakeStages{}
	orch, registry := newTestOrchestrator(stages, &recordingHub{})

	job := registry.Create(jobs.Request{
		SteamAppID:     "1245620",
		CustomVideoURL: "https://youtu.be/abc123",
	})
	orch.Run(context.Background(), job.ID, job.Request)

	assert.Equal(t, "https://youtu.be/abc123", stages.clipSource)
}

func TestOrchestrator_ClipSourceFallsBackToTrailer(t *testing.T) {
	stages := &fakeStages{}
	orch, registry := newTestOrchestrator(stages, &recordingHub{})

	job := registry.Create(jobs.Request{SteamAppID: "1245620"})
	orch.Run(context.Background(), job.ID, job.Request)

	assert.Equal(t, "https://cdn.steam.example/trailer.mp4", stages.clipSource)
}

func TestOrchestrator_IntroFailureIsFatal(t *testing.T) {
	stages := &fakeStages{introErr: errors.New("avatar render rejected")}
	hub := &recordingHub{}
	orch, registry := newTestOrchestrator(stages, hub)

	job := registry.Create(jobs.Request{SteamAppID: "1245620"})
	orch.Run(context.Background(), job.ID, job.Request)

	got, _ := registry.Get(job.ID)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "stage 1 (intro)")
	assert.Contains(t, got.Error, "avatar render rejected")
	require.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.Result)

	assert.Equal(t, []string{"intro"}, stages.order)
	assert.Contains(t, hub.types(), broadcast.TypeJobFailed)
}

func TestOrchestrator_ClipTimeoutNamesStageTwo(t *testing.T) {
	stages := &fakeStages{clipErr: poll.ErrTimeout}
	orch, registry := newTestOrchestrator(stages, &recordingHub{})

	job := registry.Create(jobs.Request{SteamAppID: "1245620"})
	orch.Run(context.Background(), job.ID, job.Request)

	got, _ := registry.Get(job.ID)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "stage 2 (clip)")
	require.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.Result)
	// progress reflects how far the pipeline got before the failure
	assert.Equal(t, 50, got.Progress)
}

func TestOrchestrator_BannerFailureDegradesToFallback(t *testing.T) {
	stages := &fakeStages{banErr: errors.New("no price data from either source")}
	orch, registry := newTestOrchestrator(stages, &recordingHub{})

	job := registry.Create(jobs.Request{SteamAppID: "1245620"})
	orch.Run(context.Background(), job.ID, job.Request)

	got, _ := registry.Get(job.ID)
	assert.Equal(t, jobs.StatusCompleted, got.Status)
	assert.Empty(t, got.Error)

	require.Len(t, stages.comps, 1)
	assert.Equal(t, "https://cdn.example.com/fallback-banner.png", stages.comps[0].BannerURL)
}

func TestOrchestrator_CompileFailureNamesStageFour(t *testing.T) {
	stages := &fakeStages{compErr: errors.New("render error")}
	orch, registry := newTestOrchestrator(stages, &recordingHub{})

	job := registry.Create(jobs.Request{SteamAppID: "1245620"})
	orch.Run(context.Background(), job.ID, job.Request)

	got, _ := registry.Get(job.ID)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "stage 4 (compile)")
}

func TestOrchestrator_CompositionCarriesAllAssets(t *testing.T) {
	stages := &fakeStages{}
	orch, registry := newTestOrchestrator(stages, &recordingHub{})

	job := registry.Create(jobs.Request{SteamAppID: "1245620"})
	orch.Run(context.Background(), job.ID, job.Request)

	require.Len(t, stages.comps, 1)
	comp := stages.comps[0]
	assert.Equal(t, "https://cdn.example.com/intro.mp4", comp.IntroURL)
	assert.Equal(t, "https://cdn.example.com/clip.mp4", comp.ClipURL)
	assert.Equal(t, "https://cdn.example.com/banner.png", comp.BannerURL)
	assert.Equal(t, "https://cdn.example.com/logo.png", comp.LogoURL)
	assert.Equal(t, "Elden Ring", comp.Title)
}

func TestOrchestrator_CancelledBeforeStartRunsNothing(t *testing.T) {
	stages := &fakeStages{}
	hub := &recordingHub{}
	orch, registry := newTestOrchestrator(stages, hub)

	job := registry.Create(jobs.Request{SteamAppID: "1245620"})
	_, ok := registry.Update(job.ID, func(j *jobs.Job) { j.Status = jobs.StatusCancelled })
	require.True(t, ok)

	orch.Run(context.Background(), job.ID, job.Request)

	assert.Empty(t, stages.order)
	got, _ := registry.Get(job.ID)
	assert.Equal(t, jobs.StatusCancelled, got.Status)
	assert.Empty(t, hub.types())
}

func TestOrchestrator_ProducerPanicBecomesFailedJob(t *testing.T) {
	stages := &fakeStages{panicStage: "clip"}
	orch, registry := newTestOrchestrator(stages, &recordingHub{})

	job := registry.Create(jobs.Request{SteamAppID: "1245620"})
	require.NotPanics(t, func() {
		orch.Run(context.Background(), job.ID, job.Request)
	})

	got, _ := registry.Get(job.ID)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "internal pipeline error")
	require.NotNil(t, got.CompletedAt)
}

func TestOrchestrator_BrokenBroadcasterDoesNotFailJob(t *testing.T) {
	stages := &fakeStages{}
	orch, registry := newTestOrchestrator(stages, &recordingHub{panics: true})

	job := registry.Create(jobs.Request{SteamAppID: "1245620"})
	require.NotPanics(t, func() {
		orch.Run(context.Background(), job.ID, job.Request)
	})

	got, _ := registry.Get(job.ID)
	assert.Equal(t, jobs.StatusCompleted, got.Status)
}

func TestOrchestrator_DownloadFailureKeepsRemoteResult(t *testing.T) {
	stages := &fakeStages{}
	registry := jobs.NewRegistry()
	orch := NewOrchestrator(Deps{
		Store:             registry,
		Hub:               &recordingHub{},
		Games:             &fakeResolver{game: Game{AppID: "1245620", Title: "Elden Ring", TrailerURL: "https://t"}},
		Intro:             stages,
		Clips:             clipStage{stages},
		Banner:            bannerStage{stages},
		Compiler:          compileStage{stages},
		Assets:            &fakeDownloader{err: errors.New("disk full")},
		FallbackBannerURL: "https://cdn.example.com/fallback-banner.png",
		LogoURL:           "https://cdn.example.com/logo.png",
	})

	job := registry.Create(jobs.Request{SteamAppID: "1245620"})
	orch.Run(context.Background(), job.ID, job.Request)

	got, _ := registry.Get(job.ID)
	require.Equal(t, jobs.StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "https://cdn.example.com/final.mp4", got.Result.RemoteURL)
	assert.Empty(t, got.Result.LocalPath)
}

func TestOrchestrator_ResolverFailureUsesPlaceholderTitle(t *testing.T) {
	stages := &fakeStages{}
	registry := jobs.NewRegistry()
	orch := NewOrchestrator(Deps{
		Store:             registry,
		Hub:               &recordingHub{},
		Games:             &fakeResolver{err: errors.New("steam unavailable")},
		Intro:             stages,
		Clips:             clipStage{stages},
		Banner:            bannerStage{stages},
		Compiler:          compileStage{stages},
		FallbackBannerURL: "https://cdn.example.com/fallback-banner.png",
		LogoURL:           "https://cdn.example.com/logo.png",
	})

	job := registry.Create(jobs.Request{SteamAppID: "777"})
	orch.Run(context.Background(), job.ID, job.Request)

	require.Len(t, stages.comps, 1)
	assert.Equal(t, "Steam_Game_777", stages.comps[0].Title)
}
