// Package heygen wraps the avatar intro-video vendor: generate a narration
// script, submit the render, then poll until the video is retrievable.
// There is no fallback intro; the reel's narrative depends on this asset, so
// every failure here is surfaced to the pipeline.
package heygen

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

const scriptSystemPrompt = "You are a hype narrator for short-form gaming videos. " +
	"Write energetic, spoken-word scripts of at most 60 words. No hashtags, no emoji, " +
	"no stage directions, just the narration text."

// ScriptWriter generates the narration text for the intro. Satisfied by
// llm.Client.
type ScriptWriter interface {
	SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

type Client struct {
	apiKey     string
	baseURL    string
	avatarID   string
	voiceID    string
	httpClient *http.Client
	scripts    ScriptWriter
	webhooks   *WebhookStore
	pollCfg    poll.Config
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

func WithAvatar(avatarID, voiceID string) Option {
	return func(c *Client) {
		c.avatarID = avatarID
		c.voiceID = voiceID
	}
}

// WithWebhookStore lets vendor push notifications short-circuit the polling
// loop.
func WithWebhookStore(store *WebhookStore) Option {
	return func(c *Client) { c.webhooks = store }
}

func WithPollConfig(cfg poll.Config) Option {
	return func(c *Client) { c.pollCfg = cfg }
}

func NewClient(apiKey string, scripts ScriptWriter, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		baseURL:  "https://api.heygen.com",
		avatarID: "Daisy-inskirt-20220818",
		voiceID:  "2d5b0e6cf36f460aa7fc47e3eee4ba54",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		scripts: scripts,
		pollCfg: poll.Config{
			Initial:   5 * time.Second,
			Slow:      10 * time.Second,
			SlowAfter: 2 * time.Minute,
			Ceiling:   30 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Produce implements pipeline.IntroProducer.
func (c *Client) Produce(ctx context.Context, game pipeline.Game) (string, error) {
	script, err := c.writeScript(ctx, game)
	if err != nil {
		return "", fmt.Errorf("script generation failed: %w", err)
	}
	log.Info("Intro script for %q: %d chars", game.Title, len(script))

	taskID, err := c.submit(ctx, script)
	if err != nil {
		return "", err
	}
	log.Info("Intro video task submitted: %s", taskID)

	var videoURL string
	err = poll.Until(ctx, c.pollCfg, func(ctx context.Context) (bool, error) {
		// A webhook receipt with a usable URL saves the remaining wait.
		if c.webhooks != nil {
			if receipt, ok := c.webhooks.Get(taskID); ok && receipt.AssetURL != "" {
				log.Info("Intro task %s resolved via webhook receipt", taskID)
				videoURL = receipt.AssetURL
				return true, nil
			}
		}

		status, url, err := c.queryStatus(ctx, taskID)
		if err != nil {
			// Transient status-endpoint hiccups should not kill a render
			// that is still progressing.
			log.Warn("Intro status check failed for %s: %v", taskID, err)
			return false, nil
		}
		switch status {
		case "completed":
			videoURL = url
			return true, nil
		case "failed":
			return false, fmt.Errorf("vendor reported render failure")
		default:
			return false, nil
		}
	})
	if err != nil {
		if err == poll.ErrTimeout {
			return "", fmt.Errorf("intro video not ready within polling ceiling: %w", err)
		}
		return "", err
	}

	if videoURL == "" || isDashboardURL(videoURL) {
		return "", fmt.Errorf("vendor returned no retrievable video url (got %q)", videoURL)
	}
	return videoURL, nil
}

func (c *Client) writeScript(ctx context.Context, game pipeline.Game) (string, error) {
	prompt := fmt.Sprintf("Write an intro narration for a short reel about the game %q.", game.Title)
	if game.ShortDescription != "" {
		prompt += fmt.Sprintf(" Game description: %s", game.ShortDescription)
	}

	script, err := c.scripts.SimpleChat(ctx, prompt, scriptSystemPrompt)
	if err != nil {
		return "", err
	}
	script = strings.TrimSpace(script)
	if script == "" {
		return "", fmt.Errorf("empty script returned")
	}
	return script, nil
}

type generateRequest struct {
	VideoInputs []videoInput `json:"video_inputs"`
	Dimension   dimension    `json:"dimension"`
	Caption     bool         `json:"caption"`
}

type videoInput struct {
	Character  character  `json:"character"`
	Voice      voice      `json:"voice"`
	Background background `json:"background"`
}

type character struct {
	Type     string `json:"type"`
	AvatarID string `json:"avatar_id"`
}

type voice struct {
	Type      string `json:"type"`
	VoiceID   string `json:"voice_id"`
	InputText string `json:"input_text"`
}

type background struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (c *Client) submit(ctx context.Context, script string) (string, error) {
	payload := generateRequest{
		VideoInputs: []videoInput{{
			Character: character{Type: "avatar", AvatarID: c.avatarID},
			Voice:     voice{Type: "text", VoiceID: c.voiceID, InputText: script},
			// Green background so the compile stage can chroma-key the
			// avatar over the gameplay footage.
			Background: background{Type: "color", Value: "#00FF00"},
		}},
		Dimension: dimension{Width: 720, Height: 1280},
		Caption:   true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/video/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("video generate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("video generate returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			VideoID string `json:"video_id"`
		} `json:"data"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}
	if result.Error != nil && result.Error.Message != "" {
		return "", fmt.Errorf("vendor error: %s", result.Error.Message)
	}
	if result.Data.VideoID == "" {
		return "", fmt.Errorf("no task id in generate response")
	}
	return result.Data.VideoID, nil
}

func (c *Client) queryStatus(ctx context.Context, taskID string) (string, string, error) {
	endpoint := fmt.Sprintf("%s/v1/video_status.get?video_id=%s", c.baseURL, taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Status          string `json:"status"`
			VideoURL        string `json:"video_url"`
			VideoURLCaption string `json:"video_url_caption"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", err
	}

	videoURL := result.Data.VideoURLCaption
	if videoURL == "" {
		videoURL = result.Data.VideoURL
	}
	return result.Data.Status, videoURL, nil
}

// isDashboardURL rejects share-page links that cannot be downloaded
// programmatically. From the pipeline's point of view those are failures,
// not results.
func isDashboardURL(url string) bool {
	return strings.Contains(url, "app.heygen.com")
}
