package solar

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/Zhihong0321/solar-analysis-app/internal/metrics"
	"github.com/Zhihong0321/solar-analysis-app/internal/models"
)

// DataLayersFetcher retrieves data layer tile references for a coordinate
// at the best available quality tier. Absent imagery is an expected outcome
// for many locations, so every failure collapses into an unavailable
// result; this fetcher never returns an error.
type DataLayersFetcher struct {
	tiered *TieredFetcher
}

// NewDataLayersFetcher creates a data layers fetcher with a fixed fetch
// radius around the requested coordinate
func NewDataLayersFetcher(client *resty.Client, baseURL, apiKey string, radiusMeters int, m *metrics.Metrics, log *logrus.Logger) *DataLayersFetcher {
	buildURL := func(coord models.Coordinate, quality models.Quality) string {
		params := url.Values{}
		params.Set("location.latitude", fmt.Sprintf("%.6f", coord.Latitude))
		params.Set("location.longitude", fmt.Sprintf("%.6f", coord.Longitude))
		params.Set("radiusMeters", strconv.Itoa(radiusMeters))
		params.Set("requiredQuality", string(quality))
		params.Set("key", apiKey)
		if quality.ExpandedCoverage() {
			params.Set("experiments", "EXPANDED_COVERAGE")
		}
		return baseURL + "/dataLayers:get?" + params.Encode()
	}

	return &DataLayersFetcher{
		tiered: NewTieredFetcher(
			client,
			buildURL,
			PolicySwallow,
			m,
			log.WithField("component", "datalayers_fetcher"),
		),
	}
}

// Fetch returns the data layers payload for the best available tier, or an
// unavailable result when no tier has imagery
func (f *DataLayersFetcher) Fetch(ctx context.Context, coord models.Coordinate) *models.ImageryResult {
	quality, payload, _ := f.tiered.FetchBestAvailable(ctx, coord)
	if payload == nil {
		return &models.ImageryResult{Available: false}
	}

	return &models.ImageryResult{
		Available: true,
		Quality:   quality,
		Payload:   payload,
	}
}
