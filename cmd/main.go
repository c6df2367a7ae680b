package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/veedran/reelsmith/internal/adapters/creatomate"
	"github.com/veedran/reelsmith/internal/adapters/heygen"
	"github.com/veedran/reelsmith/internal/adapters/steam"
	"github.com/veedran/reelsmith/internal/adapters/vizard"
	"github.com/veedran/reelsmith/internal/assets"
	"github.com/veedran/reelsmith/internal/banner"
	"github.com/veedran/reelsmith/internal/broadcast"
	"github.com/veedran/reelsmith/internal/config"
	"github.com/veedran/reelsmith/internal/httpapi"
	"github.com/veedran/reelsmith/internal/jobs"
	"github.com/veedran/reelsmith/internal/llm"
	"github.com/veedran/reelsmith/internal/pipeline"
	"github.com/veedran/reelsmith/internal/scheduler"
	"github.com/veedran/reelsmith/internal/service"
	"github.com/veedran/reelsmith/internal/ws"
	"github.com/veedran/reelsmith/pkg/log"
)

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

type jobScheduler interface {
	Start(ctx context.Context) error
	Stop()
}

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.Server.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, sched, err := buildComponents(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to build components: %v", err)
	}

	if err := run(ctx, cfg, sched, srv); err != nil {
		log.Fatal("Server error: %v", err)
	}
}

func buildComponents(runCtx context.Context, cfg *config.Config) (*httpapi.Server, *scheduler.Scheduler, error) {
	registry := jobs.NewRegistry()
	hub := broadcast.NewHub()
	webhooks := heygen.NewWebhookStore()

	llmClient, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	steamClient := steam.NewClient()
	introProducer := heygen.NewClient(cfg.Vendors.HeyGenAPIKey, llmClient,
		heygen.WithBaseURL(cfg.Vendors.HeyGenBaseURL),
		heygen.WithWebhookStore(webhooks))
	clipProducer := vizard.NewClient(cfg.Vendors.VizardAPIKey,
		vizard.WithBaseURL(cfg.Vendors.VizardBaseURL))
	compiler := creatomate.NewClient(cfg.Vendors.CreatomateAPIKey,
		creatomate.WithBaseURL(cfg.Vendors.CreatomateURL))
	bannerProducer := banner.NewGenerator(
		banner.NewPriceClient(banner.WithCatalogURL(cfg.Vendors.PriceAPIURL)),
		banner.TemplateRenderer{BaseURL: cfg.Pipeline.BannerRenderURL})
	downloader := assets.NewDownloader(cfg.Pipeline.AssetCacheDir)

	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Store:             registry,
		Hub:               hub,
		Games:             steamClient,
		Intro:             introProducer,
		Clips:             clipProducer,
		Banner:            bannerProducer,
		Compiler:          compiler,
		Assets:            downloader,
		FallbackBannerURL: cfg.Pipeline.FallbackBannerURL,
		LogoURL:           cfg.Pipeline.LogoURL,
		StageTimeout:      cfg.Pipeline.StageTimeout,
	})

	supervisor := service.NewSupervisor(runCtx, registry, hub, steamClient, orch)
	sched := scheduler.New(cfg.Scheduler.CronExpr, cfg.Scheduler.AppIDs, supervisor)
	srv := httpapi.NewServer(supervisor, hub, steamClient,
		httpapi.WithWebhookStore(webhooks),
		httpapi.WithWebSocket(ws.NewHandler(hub, registry)))
	return srv, sched, nil
}

func run(ctx context.Context, cfg *config.Config, sched jobScheduler, srv httpServer) error {
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.Server.Addr)
		errCh <- srv.ListenAndServe(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
