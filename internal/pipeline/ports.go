package pipeline

import (
	"context"

	"github.com/veedran/reelsmith/internal/broadcast"
	"github.com/veedran/reelsmith/internal/jobs"
)

// Game is the subject metadata the stages work from.
type Game struct {
	AppID            string
	Title            string
	ShortDescription string
	CoverURL         string
	TrailerURL       string
}

// GameResolver looks up subject metadata before the stages run.
type GameResolver interface {
	Resolve(ctx context.Context, appID string) (Game, error)
}

// IntroProducer produces the narrated avatar intro video and returns a
// retrievable asset URL.
type IntroProducer interface {
	Produce(ctx context.Context, game Game) (string, error)
}

// ClipProducer produces the gameplay highlight clip. sourceURL is the video
// to cut from; the producer fails if no usable clip comes back.
type ClipProducer interface {
	Produce(ctx context.Context, game Game, sourceURL string) (string, error)
}

// BannerProducer produces the price-comparison banner image.
type BannerProducer interface {
	Produce(ctx context.Context, game Game) (string, error)
}

// Composition is the fixed layering contract of the final reel.
type Composition struct {
	Title     string
	IntroURL  string
	ClipURL   string
	BannerURL string
	LogoURL   string
}

// Compiler renders the final reel from the produced assets.
type Compiler interface {
	Produce(ctx context.Context, comp Composition) (string, error)
}

// Downloader caches a produced asset locally and returns the local path.
type Downloader interface {
	Download(ctx context.Context, assetURL, name string) (string, error)
}

// JobStore is the registry surface the orchestrator needs. Kept narrow so a
// persistent backing store can be swapped in without touching the pipeline.
type JobStore interface {
	Get(id string) (*jobs.Job, bool)
	Update(id string, mutate func(*jobs.Job)) (*jobs.Job, bool)
}

// Broadcaster pushes job state changes to real-time listeners.
type Broadcaster interface {
	Broadcast(event broadcast.Event)
}
