// Package banner produces the price-comparison banner shown in the back half
// of the reel. Price data comes from two catalog queries run concurrently; the
// actual image composition is delegated to a Renderer collaborator.
package banner

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/veedran/reelsmith/internal/pipeline"
	"github.com/veedran/reelsmith/pkg/log"
)

// Renderer turns price data into a banner image asset.
type Renderer interface {
	Render(ctx context.Context, title string, prices Prices, coverURL string) (string, error)
}

// RenderFunc adapts a function to the Renderer interface.
type RenderFunc func(ctx context.Context, title string, prices Prices, coverURL string) (string, error)

func (f RenderFunc) Render(ctx context.Context, title string, prices Prices, coverURL string) (string, error) {
	return f(ctx, title, prices, coverURL)
}

// Generator implements pipeline.BannerProducer. Any error it returns is
// expected to be degraded to a static fallback by the caller.
type Generator struct {
	prices   *PriceClient
	renderer Renderer
}

func NewGenerator(prices *PriceClient, renderer Renderer) *Generator {
	return &Generator{prices: prices, renderer: renderer}
}

// Produce fetches both price points concurrently and renders the banner. One
// missing price source is tolerated; when both sources come back empty there
// is nothing worth showing and an error is returned.
func (g *Generator) Produce(ctx context.Context, game pipeline.Game) (string, error) {
	pageURL := PageURL(game.Title)

	var (
		best, steam       Quote
		bestErr, steamErr error
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		best, bestErr = g.prices.FetchBest(egCtx, pageURL)
		return nil
	})
	eg.Go(func() error {
		steam, steamErr = g.prices.FetchSteam(egCtx, pageURL)
		return nil
	})
	_ = eg.Wait()

	if bestErr != nil && steamErr != nil {
		return "", fmt.Errorf("no price data for %q: %v; %v", game.Title, bestErr, steamErr)
	}
	if bestErr != nil {
		log.Warn("banner: market price lookup for %q failed: %v", game.Title, bestErr)
		best = Quote{Display: "N/A", Merchant: "N/A"}
	}
	if steamErr != nil {
		log.Warn("banner: store price lookup for %q failed: %v", game.Title, steamErr)
		steam = Quote{Display: "N/A", Merchant: "Steam"}
	}

	bannerURL, err := g.renderer.Render(ctx, game.Title, Prices{Best: best, Steam: steam}, game.CoverURL)
	if err != nil {
		return "", fmt.Errorf("banner render failed: %w", err)
	}
	return bannerURL, nil
}

// TemplateRenderer composes a banner URL against an external image-templating
// endpoint by passing the price data as query parameters.
type TemplateRenderer struct {
	BaseURL string
}

func (r TemplateRenderer) Render(_ context.Context, title string, prices Prices, coverURL string) (string, error) {
	if r.BaseURL == "" {
		return "", fmt.Errorf("no banner render endpoint configured")
	}
	params := url.Values{
		"title":          []string{title},
		"cover":          []string{coverURL},
		"best_price":     []string{prices.Best.Display},
		"best_merchant":  []string{prices.Best.Merchant},
		"steam_price":    []string{prices.Steam.Display},
		"steam_merchant": []string{prices.Steam.Merchant},
	}
	return r.BaseURL + "?" + params.Encode(), nil
}
