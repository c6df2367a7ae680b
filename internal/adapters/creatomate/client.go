// Package creatomate renders the final reel through the Creatomate API by
// layering the produced assets into a fixed vertical composition.
package creatomate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/veedran/reelsmith/internal/pipeline"
	"github.com/veedran/reelsmith/internal/poll"
	"github.com/veedran/reelsmith/pkg/log"
)

const defaultBaseURL = "https://api.creatomate.com/v1"

// Client implements pipeline.Compiler.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	pollCfg    poll.Config
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithPollConfig(cfg poll.Config) Option {
	return func(c *Client) { c.pollCfg = cfg }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		pollCfg: poll.Config{
			Initial:   5 * time.Second,
			Slow:      5 * time.Second,
			SlowAfter: 10 * time.Minute,
			Ceiling:   10 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Produce submits the composition for rendering, waits for the render to
// finish and returns the URL of the final video.
func (c *Client) Produce(ctx context.Context, comp pipeline.Composition) (string, error) {
	renderID, err := c.submitRender(ctx, comp)
	if err != nil {
		return "", fmt.Errorf("render submission failed: %w", err)
	}
	log.Info("creatomate: render %s submitted for %q", renderID, comp.Title)

	var finalURL string
	probe := func(ctx context.Context) (bool, error) {
		status, url, err := c.queryRender(ctx, renderID)
		if err != nil {
			log.Warn("creatomate: status check for render %s failed: %v", renderID, err)
			return false, nil
		}
		switch status {
		case "succeeded":
			finalURL = url
			return true, nil
		case "failed":
			return false, fmt.Errorf("vendor reported render failure")
		default:
			return false, nil
		}
	}
	if err := poll.Until(ctx, c.pollCfg, probe); err != nil {
		return "", fmt.Errorf("render did not finish: %w", err)
	}

	if finalURL == "" {
		return "", fmt.Errorf("render succeeded but no output url returned")
	}
	return finalURL, nil
}

// animation mirrors the Creatomate keyframe animation object.
type animation struct {
	Time       any     `json:"time,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	Easing     string  `json:"easing,omitempty"`
	Reversed   bool    `json:"reversed,omitempty"`
	Transition bool    `json:"transition,omitempty"`
	Type       string  `json:"type"`
}

type element struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	Type                 string      `json:"type"`
	Track                int         `json:"track"`
	Time                 any         `json:"time"`
	Duration             any         `json:"duration,omitempty"`
	Source               string      `json:"source"`
	Fit                  string      `json:"fit,omitempty"`
	Loop                 bool        `json:"loop,omitempty"`
	Volume               string      `json:"volume,omitempty"`
	ChromaKeyColor       string      `json:"chroma_key_color,omitempty"`
	ChromaKeySensitivity string      `json:"chroma_key_sensitivity,omitempty"`
	Animations           []animation `json:"animations,omitempty"`
}

type renderRequest struct {
	Source renderSource `json:"source"`
}

type renderSource struct {
	OutputFormat string    `json:"output_format"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	FrameRate    string    `json:"frame_rate"`
	Elements     []element `json:"elements"`
}

type renderStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	URL    string `json:"url"`
	Error  string `json:"error"`
}

// buildElements lays the assets out on the fixed four-track timeline: the
// gameplay clip spans the whole reel with a fade-out, the banner occupies
// the back half, the chroma-keyed intro sits over the front and the logo
// stays on top throughout.
func buildElements(comp pipeline.Composition) []element {
	return []element{
		{
			ID: "gameplay", Name: "gameplay", Type: "video",
			Track: 1, Time: 0,
			Source: comp.ClipURL,
			Loop:   true, Volume: "20%",
			Animations: []animation{
				{Time: "end", Duration: 4, Easing: "quadratic-out", Reversed: true, Type: "fade"},
			},
		},
		{
			ID: "banner", Name: "banner", Type: "image",
			Track: 2, Time: "50%", Duration: "50%",
			Source: comp.BannerURL,
			Animations: []animation{
				{Time: 0, Duration: 0.5, Transition: true, Type: "fade"},
			},
		},
		{
			ID: "intro", Name: "intro", Type: "video",
			Track: 3, Time: 0,
			Source:               comp.IntroURL,
			Fit:                  "contain",
			ChromaKeyColor:       "rgba(0,255,0,1)",
			ChromaKeySensitivity: "50%",
		},
		{
			ID: "logo", Name: "logo", Type: "image",
			Track: 4, Time: 0,
			Source: comp.LogoURL,
			Animations: []animation{
				{Time: 0, Duration: 1, Transition: true, Type: "fade"},
				{Time: "end", Duration: 3, Easing: "quadratic-out", Reversed: true, Type: "fade"},
			},
		},
	}
}

func (c *Client) submitRender(ctx context.Context, comp pipeline.Composition) (string, error) {
	payload := renderRequest{
		Source: renderSource{
			OutputFormat: "mp4",
			Width:        720,
			Height:       1280,
			FrameRate:    "25 fps",
			Elements:     buildElements(comp),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/renders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// 202 means the render was queued, which is the normal case.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("vendor returned status %d: %s", resp.StatusCode, data)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	// The API answers with a list of renders, older versions with a single
	// object. Accept both.
	var renders []renderStatus
	if err := json.Unmarshal(data, &renders); err != nil {
		var single renderStatus
		if err := json.Unmarshal(data, &single); err != nil {
			return "", fmt.Errorf("decoding render response: %w", err)
		}
		renders = []renderStatus{single}
	}
	if len(renders) == 0 || renders[0].ID == "" {
		return "", fmt.Errorf("no render id returned")
	}
	return renders[0].ID, nil
}

func (c *Client) queryRender(ctx context.Context, renderID string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/renders/"+renderID, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", "", fmt.Errorf("vendor returned status %d: %s", resp.StatusCode, data)
	}

	var result renderStatus
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", fmt.Errorf("decoding render status: %w", err)
	}
	return result.Status, result.URL, nil
}
