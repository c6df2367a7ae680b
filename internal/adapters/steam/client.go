// Package steam looks up store metadata for an app id. The lookup doubles as
// the live half of submit validation: an id that the store does not report as
// a game (or demo) is rejected before any job is created.
package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/veedran/reelsmith/internal/pipeline"
)

const defaultBaseURL = "https://store.steampowered.com"

var appIDPattern = regexp.MustCompile(`^\d+$`)

// ValidateAppIDFormat applies the format rules that do not need a network
// round trip: numeric, 3 to 10 digits.
func ValidateAppIDFormat(appID string) error {
	if appID == "" {
		return fmt.Errorf("steam app id cannot be empty")
	}
	if !appIDPattern.MatchString(appID) {
		return fmt.Errorf("steam app id must be numeric (e.g. 1962700)")
	}
	if len(appID) < 3 {
		return fmt.Errorf("steam app id too short")
	}
	if len(appID) > 10 {
		return fmt.Errorf("steam app id too long")
	}
	return nil
}

// AppDetails is the subset of the appdetails response the pipeline uses.
type AppDetails struct {
	AppID            string
	Name             string
	Type             string
	ShortDescription string
	HeaderImage      string
	TrailerURL       string
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type detailsEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		Name             string `json:"name"`
		Type             string `json:"type"`
		ShortDescription string `json:"short_description"`
		HeaderImage      string `json:"header_image"`
		Movies           []struct {
			MP4 struct {
				Max string `json:"max"`
				Low string `json:"480"`
			} `json:"mp4"`
		} `json:"movies"`
	} `json:"data"`
}

// Lookup fetches appdetails for the id.
func (c *Client) Lookup(ctx context.Context, appID string) (*AppDetails, error) {
	url := fmt.Sprintf("%s/api/appdetails?appids=%s", c.baseURL, appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("steam api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("steam api returned status %d", resp.StatusCode)
	}

	var envelope map[string]detailsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode steam api response: %w", err)
	}

	entry, ok := envelope[appID]
	if !ok || !entry.Success {
		return nil, fmt.Errorf("steam app id %s not found", appID)
	}

	details := &AppDetails{
		AppID:            appID,
		Name:             entry.Data.Name,
		Type:             entry.Data.Type,
		ShortDescription: entry.Data.ShortDescription,
		HeaderImage:      entry.Data.HeaderImage,
	}
	for _, movie := range entry.Data.Movies {
		if movie.MP4.Max != "" {
			details.TrailerURL = movie.MP4.Max
			break
		}
		if movie.MP4.Low != "" {
			details.TrailerURL = movie.MP4.Low
			break
		}
	}
	return details, nil
}

// Validate runs the full submit validation: format rules plus a live store
// check that the id refers to an actual game.
func (c *Client) Validate(ctx context.Context, appID string) (*AppDetails, error) {
	if err := ValidateAppIDFormat(appID); err != nil {
		return nil, err
	}

	details, err := c.Lookup(ctx, appID)
	if err != nil {
		return nil, err
	}
	switch details.Type {
	case "game", "demo":
		return details, nil
	default:
		return nil, fmt.Errorf("steam app id %s is not a game (type: %s)", appID, details.Type)
	}
}

// Resolve implements pipeline.GameResolver.
func (c *Client) Resolve(ctx context.Context, appID string) (pipeline.Game, error) {
	details, err := c.Lookup(ctx, appID)
	if err != nil {
		return pipeline.Game{}, err
	}
	return pipeline.Game{
		AppID:            appID,
		Title:            details.Name,
		ShortDescription: details.ShortDescription,
		CoverURL:         details.HeaderImage,
		TrailerURL:       details.TrailerURL,
	}, nil
}
