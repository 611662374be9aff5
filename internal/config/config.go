package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile  = ".env"
	defaultImage    = "img1.png"
	defaultAssetDir = "public"
	defaultEndpoint = "http://localhost:5000/take-picture"
	defaultOrdering = "sequenced"

	envPublicURL    = "SNAPVIEW_PUBLIC_URL"
	envDefaultImage = "SNAPVIEW_DEFAULT_IMAGE"
	envAssetDir     = "SNAPVIEW_ASSET_DIR"
	envEndpoint     = "SNAPVIEW_ENDPOINT"
	envOrdering     = "SNAPVIEW_ORDERING"
)

// Config holds all configuration for the viewer
type Config struct {
	PublicURL    string // base path of the static assets, like PUBLIC_URL of a web build
	DefaultImage string // filename shown before any picture is taken
	AssetDir     string // directory that relative locators resolve into
	Endpoint     string // picture service URL
	Ordering     string // how overlapping responses are applied, see display.ParseOrdering
}

// Load loads the configuration from environment variables.
// Variables already set in the environment win over the env files.
// Without arguments it reads .env from the working directory if present.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s file: %w", defaultEnvFile, err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("error loading env files: %w", err)
	}

	cfg := &Config{
		PublicURL:    os.Getenv(envPublicURL),
		DefaultImage: getenv(envDefaultImage, defaultImage),
		AssetDir:     getenv(envAssetDir, defaultAssetDir),
		Endpoint:     getenv(envEndpoint, defaultEndpoint),
		Ordering:     getenv(envOrdering, defaultOrdering),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that the viewer cannot run without.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("%s: %w", envEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", envEndpoint, c.Endpoint)
	}

	if strings.TrimSpace(c.DefaultImage) == "" {
		return fmt.Errorf("%s is required", envDefaultImage)
	}
	return nil
}

// DefaultLocator returns the locator of the image shown at startup.
// It is the public URL followed by the default image name, so an
// empty public URL yields a root relative path like /img1.png.
func (c *Config) DefaultLocator() string {
	return strings.TrimSuffix(c.PublicURL, "/") + "/" + strings.TrimPrefix(c.DefaultImage, "/")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
