package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the solar analysis proxy. Loaded once
// at process start and injected into collaborators at construction; never
// mutated per-request.
type Config struct {
	// Server configuration
	Port string `env:"PORT,default=3001"`

	// Google API credentials
	GoogleAPIKey     string `env:"GOOGLE_API_KEY,required"`
	URLSigningSecret string `env:"URL_SIGNING_SECRET"`

	// Upstream endpoints
	GeocodeURL  string `env:"GEOCODE_URL,default=https://maps.googleapis.com/maps/api/geocode/json"`
	SolarAPIURL string `env:"SOLAR_API_URL,default=https://solar.googleapis.com/v1"`

	// Imagery fetch radius around the requested coordinate, in meters
	ImageryRadiusMeters int `env:"IMAGERY_RADIUS_METERS,default=100"`

	// Tile cache configuration (local dir by default, GCS when bucket set)
	TileCacheDir string `env:"TILE_CACHE_DIR,default=./tile-cache"`
	GCSBucket    string `env:"GCS_BUCKET"`

	// Service configuration
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}
