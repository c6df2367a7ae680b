package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/veedran/reelsmith/pkg/log"
)

// Config holds all application configuration
// Includes vendor API configuration, pipeline tuning and server settings
// Supports environment variables with sensible defaults
//
// Environment Variables:
// Server Configuration:
// - HTTP_ADDR: Listen address for the API server (default: :8000)
// - LOG_LEVEL: debug|info|warn|error (default: info)
//
// Vendor Configuration:
// - LLM_API_KEY: API key for the script-generation LLM (required)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: openai/gpt-3.5-turbo)
// - HEYGEN_API_KEY: Avatar intro-video API key (required)
// - VIZARD_API_KEY: Clip-extraction API key (required)
// - CREATOMATE_API_KEY: Render-compilation API key (required)
//
// Pipeline Configuration:
// - ASSET_CACHE_DIR: Local directory for downloaded assets (default: ./output)
// - BANNER_RENDER_URL: Image-templating endpoint for the price banner (optional;
//   when unset the banner stage always degrades to the fallback asset)
// - FALLBACK_BANNER_URL: Static banner used when the banner stage degrades (required)
// - LOGO_URL: Watermark/logo asset layered on top of the final reel (required)
// - STAGE_TIMEOUT_MINUTES: Hard ceiling per external stage (default: 30)
//
// Scheduler Configuration:
// - AUTOMATION_CRON: Optional cron expression for scheduled reel creation
// - AUTOMATION_APP_IDS: Comma-separated Steam app ids submitted on schedule

type Config struct {
	// Server Configuration
	Server ServerConfig `json:"server"`

	// LLM Configuration (intro narration script)
	LLM LLMConfig `json:"llm"`

	// Vendor API Configuration
	Vendors VendorConfig `json:"vendors"`

	// Pipeline Configuration
	Pipeline PipelineConfig `json:"pipeline"`

	// Scheduler Configuration
	Scheduler SchedulerConfig `json:"scheduler"`
}

type ServerConfig struct {
	Addr     string `json:"addr"`
	LogLevel string `json:"log_level"`
}

// LLMConfig holds the configuration for the script-generation LLM client
// Supports any OpenAI-compatible provider (OpenRouter, OpenAI, etc.)
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

// VendorConfig holds the keys and base URLs for the external content vendors
type VendorConfig struct {
	HeyGenAPIKey     string `json:"heygen_api_key"`
	HeyGenBaseURL    string `json:"heygen_base_url"`
	VizardAPIKey     string `json:"vizard_api_key"`
	VizardBaseURL    string `json:"vizard_base_url"`
	CreatomateAPIKey string `json:"creatomate_api_key"`
	CreatomateURL    string `json:"creatomate_url"`
	PriceAPIURL      string `json:"price_api_url"`
}

// PipelineConfig holds tuning for the reel pipeline itself
type PipelineConfig struct {
	AssetCacheDir     string        `json:"asset_cache_dir"`
	BannerRenderURL   string        `json:"banner_render_url"`
	FallbackBannerURL string        `json:"fallback_banner_url"`
	LogoURL           string        `json:"logo_url"`
	StageTimeout      time.Duration `json:"stage_timeout"`
}

// SchedulerConfig holds the optional cron-driven automation settings
type SchedulerConfig struct {
	CronExpr string   `json:"cron_expr"`
	AppIDs   []string `json:"app_ids"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Addr:     getEnvString("HTTP_ADDR", ":8000"),
			LogLevel: getEnvString("LOG_LEVEL", "info"),
		},
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-3.5-turbo"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 500),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			Timeout:     getEnvInt("LLM_TIMEOUT", 30),
		},
		Vendors: VendorConfig{
			HeyGenAPIKey:     getEnvString("HEYGEN_API_KEY", ""),
			HeyGenBaseURL:    getEnvString("HEYGEN_BASE_URL", "https://api.heygen.com"),
			VizardAPIKey:     getEnvString("VIZARD_API_KEY", ""),
			VizardBaseURL:    getEnvString("VIZARD_BASE_URL", "https://elb-api.vizard.ai/hvizard-server-front"),
			CreatomateAPIKey: getEnvString("CREATOMATE_API_KEY", ""),
			CreatomateURL:    getEnvString("CREATOMATE_BASE_URL", "https://api.creatomate.com/v1"),
			PriceAPIURL:      getEnvString("PRICE_API_URL", "https://www.allkeyshop.com/api/v2-1-250304/vaks.php"),
		},
		Pipeline: PipelineConfig{
			AssetCacheDir:     getEnvString("ASSET_CACHE_DIR", "./output"),
			BannerRenderURL:   getEnvString("BANNER_RENDER_URL", ""),
			FallbackBannerURL: getEnvString("FALLBACK_BANNER_URL", ""),
			LogoURL:           getEnvString("LOGO_URL", ""),
			StageTimeout:      time.Duration(getEnvInt("STAGE_TIMEOUT_MINUTES", 30)) * time.Minute,
		},
		Scheduler: SchedulerConfig{
			CronExpr: getEnvString("AUTOMATION_CRON", ""),
			AppIDs:   splitList(getEnvString("AUTOMATION_APP_IDS", "")),
		},
	}

	log.Info("Config loaded: addr=%s cache=%s", config.Server.Addr, config.Pipeline.AssetCacheDir)

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	required := map[string]string{
		"LLM_API_KEY":         c.LLM.APIKey,
		"HEYGEN_API_KEY":      c.Vendors.HeyGenAPIKey,
		"VIZARD_API_KEY":      c.Vendors.VizardAPIKey,
		"CREATOMATE_API_KEY":  c.Vendors.CreatomateAPIKey,
		"FALLBACK_BANNER_URL": c.Pipeline.FallbackBannerURL,
		"LOGO_URL":            c.Pipeline.LogoURL,
	}
	missing := make([]string, 0)
	for key, value := range required {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Pipeline.StageTimeout <= 0 {
		return fmt.Errorf("STAGE_TIMEOUT_MINUTES must be positive")
	}
	return nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	ret := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			ret = append(ret, trimmed)
		}
	}
	return ret
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
