// Package geocode resolves free-text street addresses to coordinates via
// the Google Geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/Zhihong0321/solar-analysis-app/internal/apperrors"
	"github.com/Zhihong0321/solar-analysis-app/internal/models"
)

// Geocoder resolves addresses against the geocoding provider
type Geocoder struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	log     *logrus.Entry
}

// geocodeResponse is the subset of the provider response we consume
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

// New creates a geocoder backed by the given endpoint and API key
func New(baseURL, apiKey string, log *logrus.Logger) *Geocoder {
	client := resty.New()
	client.SetTimeout(30 * time.Second)

	return &Geocoder{
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
		log:     log.WithField("component", "geocoder"),
	}
}

// Resolve turns a free-text address into a coordinate and a formatted
// address string. The address is percent-encoded on the wire; validation
// failures never reach the network.
func (g *Geocoder) Resolve(ctx context.Context, address string) (*models.GeocodeResult, error) {
	if strings.TrimSpace(address) == "" {
		return nil, &apperrors.ValidationError{Msg: "address is required"}
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("address", address).
		SetQueryParam("key", g.apiKey).
		Get(g.baseURL)
	if err != nil {
		return nil, &apperrors.NetworkError{Op: "failed to reach geocoding API", Err: err}
	}

	var data geocodeResponse
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		g.log.WithField("body", truncate(resp.Body(), 512)).Warn("Unparseable geocoding response")
		return nil, &apperrors.UpstreamError{
			Provider: "geocoding API",
			Status:   fmt.Sprintf("%d", resp.StatusCode()),
			Msg:      "unparseable response body",
		}
	}

	if data.Status != "OK" || len(data.Results) == 0 {
		g.log.WithFields(logrus.Fields{
			"status":  data.Status,
			"results": len(data.Results),
		}).Info("Geocoding returned no usable result")
		return nil, &apperrors.UpstreamError{
			Provider: "geocoding API",
			Status:   data.Status,
			Msg:      data.ErrorMessage,
		}
	}

	first := data.Results[0]
	result := &models.GeocodeResult{
		Coordinate: models.Coordinate{
			Latitude:  first.Geometry.Location.Lat,
			Longitude: first.Geometry.Location.Lng,
		},
		FormattedAddress: first.FormattedAddress,
	}

	g.log.WithFields(logrus.Fields{
		"lat": result.Coordinate.Latitude,
		"lng": result.Coordinate.Longitude,
	}).Debug("Address resolved")
	return result, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
