package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr     string
	AllowedOrigins []string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	AIMaxAttempts    int
	AIRequestTimeout time.Duration

	MsgcatOverrideDir string
}

const (
	defaultListenAddr = ":3000"
	defaultModel      = "gemini-2.5-flash"
	defaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
)

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:       defaultListenAddr,
		GeminiModel:      defaultModel,
		GeminiBaseURL:    defaultBaseURL,
		AIMaxAttempts:    3,
		AIRequestTimeout: 30 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	// AI credentials are optional: absence puts the provider into degraded
	// mode instead of failing startup.
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if v := strings.TrimSpace(os.Getenv("GEMINI_MODEL")); v != "" {
		cfg.GeminiModel = v
	}
	if v := strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")); v != "" {
		cfg.GeminiBaseURL = strings.TrimRight(v, "/")
	}

	if v := strings.TrimSpace(os.Getenv("AI_MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AIMaxAttempts = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("AI_REQUEST_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AIRequestTimeout = d
		}
	}

	cfg.MsgcatOverrideDir = strings.TrimSpace(os.Getenv("MSGCAT_OVERRIDE_DIR"))

	if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		return nil, fmt.Errorf("invalid LISTEN_ADDR %q: %w", cfg.ListenAddr, err)
	}
	return cfg, nil
}
