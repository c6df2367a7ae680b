// Package vizard cuts a vertical gameplay highlight out of a longer video
// through the Vizard AI clipping API.
package vizard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/veedran/reelsmith/internal/pipeline"
	"github.com/veedran/reelsmith/internal/poll"
	"github.com/veedran/reelsmith/pkg/log"
)

const (
	defaultBaseURL = "https://elb-api.vizard.ai/hvizard-server-front"

	// templateID is the fullscreen vertical template every clip uses.
	templateID = 73952796

	// codeDownloadFailed is the vendor code for a source video it could
	// not fetch. Retrying the same URL will not help.
	codeDownloadFailed = 4008
)

// Client implements pipeline.ClipProducer against the Vizard open API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	pollCfg    poll.Config
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithPollConfig overrides the status polling cadence.
func WithPollConfig(cfg poll.Config) Option {
	return func(c *Client) { c.pollCfg = cfg }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		pollCfg: poll.Config{
			Initial:   30 * time.Second,
			Slow:      30 * time.Second,
			SlowAfter: 30 * time.Minute,
			Ceiling:   30 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Produce submits sourceURL for clipping, waits for the project to finish
// and returns the URL of the highest-scoring clip.
func (c *Client) Produce(ctx context.Context, game pipeline.Game, sourceURL string) (string, error) {
	normalized := NormalizeYouTubeURL(sourceURL)
	if normalized != sourceURL {
		log.Info("vizard: normalized source url %s -> %s", sourceURL, normalized)
	}

	projectID, err := c.createProject(ctx, normalized)
	if err != nil {
		return "", fmt.Errorf("project creation failed: %w", err)
	}
	log.Info("vizard: project %s created for %q", projectID, game.Title)

	var clips []clip
	probe := func(ctx context.Context) (bool, error) {
		result, err := c.queryProject(ctx, projectID)
		if err != nil {
			log.Warn("vizard: status check for project %s failed: %v", projectID, err)
			return false, nil
		}
		if result.Code == codeDownloadFailed {
			return false, fmt.Errorf("vendor could not download source video: %s", result.ErrMsg)
		}
		if len(result.Videos) > 0 {
			clips = result.Videos
			return true, nil
		}
		return false, nil
	}

	if err := poll.Until(ctx, c.pollCfg, probe); err != nil {
		return "", fmt.Errorf("clipping did not finish: %w", err)
	}

	best := bestClip(clips)
	if best.VideoURL == "" {
		return "", fmt.Errorf("vendor returned %d clips but none with a video url", len(clips))
	}
	log.Info("vizard: selected clip for %q (viral score %s, %.1fs)",
		game.Title, best.ViralScore, float64(best.VideoMsDuration)/1000)
	return best.VideoURL, nil
}

type createRequest struct {
	Lang          string `json:"lang"`
	PreferLength  []int  `json:"preferLength"`
	VideoType     int    `json:"videoType"`
	VideoURL      string `json:"videoUrl"`
	Ext           string `json:"ext"`
	MaxClipNumber int    `json:"maxClipNumber"`
	TemplateID    int    `json:"templateId"`
	CropMode      int    `json:"cropMode"`
	AspectRatio   string `json:"aspectRatio"`
	MinDuration   int    `json:"minDuration"`
	MaxDuration   int    `json:"maxDuration"`
}

type createResponse struct {
	ProjectID int64  `json:"projectId"`
	Code      int    `json:"code"`
	ErrMsg    string `json:"errMsg"`
}

type clip struct {
	VideoURL        string `json:"videoUrl"`
	ViralScore      string `json:"viralScore"`
	VideoMsDuration int64  `json:"videoMsDuration"`
}

type queryResponse struct {
	Code   int    `json:"code"`
	ErrMsg string `json:"errMsg"`
	Videos []clip `json:"videos"`
}

func (c *Client) createProject(ctx context.Context, sourceURL string) (string, error) {
	payload := createRequest{
		Lang:          "en",
		PreferLength:  []int{2},
		VideoType:     2,
		VideoURL:      sourceURL,
		Ext:           "mp4",
		MaxClipNumber: 2,
		TemplateID:    templateID,
		CropMode:      4,
		AspectRatio:   "9:16",
		MinDuration:   60,
		MaxDuration:   90,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/open-api/v1/project/create", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("VIZARDAI_API_KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("vendor returned status %d: %s", resp.StatusCode, data)
	}

	var result createResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding create response: %w", err)
	}
	if result.ProjectID == 0 {
		if result.ErrMsg != "" {
			return "", fmt.Errorf("no project id returned: %s", result.ErrMsg)
		}
		return "", fmt.Errorf("no project id returned")
	}
	return strconv.FormatInt(result.ProjectID, 10), nil
}

func (c *Client) queryProject(ctx context.Context, projectID string) (queryResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/open-api/v1/project/query/"+projectID, nil)
	if err != nil {
		return queryResponse{}, err
	}
	req.Header.Set("VIZARDAI_API_KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return queryResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return queryResponse{}, fmt.Errorf("vendor returned status %d: %s", resp.StatusCode, data)
	}

	var result queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return queryResponse{}, fmt.Errorf("decoding query response: %w", err)
	}
	return result, nil
}

// bestClip picks the clip with the highest viral score. Scores arrive as
// strings; unparseable ones rank lowest.
func bestClip(clips []clip) clip {
	var best clip
	bestScore := -1.0
	for _, c := range clips {
		score, err := strconv.ParseFloat(c.ViralScore, 64)
		if err != nil {
			score = 0
		}
		if c.VideoURL != "" && score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best
}

// NormalizeYouTubeURL rewrites Shorts and youtu.be links into the canonical
// watch URL form the clipping vendor accepts. Anything else passes through.
func NormalizeYouTubeURL(rawURL string) string {
	extract := func(s string) string {
		if i := strings.IndexAny(s, "?&"); i >= 0 {
			s = s[:i]
		}
		return s
	}
	if i := strings.Index(rawURL, "/shorts/"); i >= 0 {
		if id := extract(rawURL[i+len("/shorts/"):]); id != "" {
			return "https://www.youtube.com/watch?v=" + id
		}
	}
	if i := strings.Index(rawURL, "youtu.be/"); i >= 0 {
		if id := extract(rawURL[i+len("youtu.be/"):]); id != "" {
			return "https://www.youtube.com/watch?v=" + id
		}
	}
	return rawURL
}
