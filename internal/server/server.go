package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Zhihong0321/solar-analysis-app/internal/config"
	"github.com/Zhihong0321/solar-analysis-app/internal/geocode"
	"github.com/Zhihong0321/solar-analysis-app/internal/metrics"
	"github.com/Zhihong0321/solar-analysis-app/internal/raster"
	"github.com/Zhihong0321/solar-analysis-app/internal/signing"
	"github.com/Zhihong0321/solar-analysis-app/internal/solar"
	"github.com/Zhihong0321/solar-analysis-app/internal/storage"
)

// Server wires the proxy's collaborators behind the HTTP surface
type Server struct {
	Config   *config.Config
	Geocoder *geocode.Geocoder
	Insights *solar.InsightsFetcher
	Imagery  *solar.DataLayersFetcher
	Decoder  *raster.Decoder
	Signer   *signing.Signer
	Tiles    storage.TileStore
	Metrics  *metrics.Metrics

	log      *logrus.Logger
	registry *prometheus.Registry
}

// New creates a server instance with all collaborators constructed from
// configuration
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Server, error) {
	client := resty.New()
	client.SetTimeout(30 * time.Second)

	tiles, err := storage.NewTileStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tile store: %w", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	var signer *signing.Signer
	if cfg.URLSigningSecret != "" {
		signer, err = signing.New(cfg.URLSigningSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize URL signer: %w", err)
		}
		log.Info("URL signing enabled")
	}

	return &Server{
		Config:   cfg,
		Geocoder: geocode.New(cfg.GeocodeURL, cfg.GoogleAPIKey, log),
		Insights: solar.NewInsightsFetcher(client, cfg.SolarAPIURL, cfg.GoogleAPIKey, m, log),
		Imagery:  solar.NewDataLayersFetcher(client, cfg.SolarAPIURL, cfg.GoogleAPIKey, cfg.ImageryRadiusMeters, m, log),
		Decoder:  raster.NewDecoder(client, tiles, m, log),
		Signer:   signer,
		Tiles:    tiles,
		Metrics:  m,
		log:      log,
		registry: registry,
	}, nil
}

// SetupRoutes configures the HTTP routes for the server
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/geocode", s.HandleGeocode)
	mux.HandleFunc("/api/solar/building-insights", s.HandleBuildingInsights)
	mux.HandleFunc("/api/solar/imagery", s.HandleImagery)
	mux.HandleFunc("/api/proxy-image", s.HandleProxyImage)
	mux.HandleFunc("/api/process-geotiff", s.HandleProcessGeoTIFF)
	mux.HandleFunc("/api/convert-image", s.HandleConvertImage)
	mux.HandleFunc("/api/health", s.HandleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return s.withCORS(s.withObservability(mux))
}

// CleanupLoop periodically evicts aged tile cache entries until the context
// is cancelled
func (s *Server) CleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Tiles.Cleanup(ctx, maxAge); err != nil {
				s.log.WithError(err).Warn("Tile cache cleanup failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close cleans up server resources
func (s *Server) Close() error {
	if s.Tiles != nil {
		return s.Tiles.Close()
	}
	return nil
}
