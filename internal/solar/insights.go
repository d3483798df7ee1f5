package solar

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/Zhihong0321/solar-analysis-app/internal/metrics"
	"github.com/Zhihong0321/solar-analysis-app/internal/models"
)

// InsightsFetcher retrieves building insights for a coordinate at the best
// available quality tier. Terminal failures propagate to the caller.
type InsightsFetcher struct {
	tiered *TieredFetcher
}

// NewInsightsFetcher creates a building insights fetcher
func NewInsightsFetcher(client *resty.Client, baseURL, apiKey string, m *metrics.Metrics, log *logrus.Logger) *InsightsFetcher {
	buildURL := func(coord models.Coordinate, quality models.Quality) string {
		params := url.Values{}
		params.Set("location.latitude", fmt.Sprintf("%.6f", coord.Latitude))
		params.Set("location.longitude", fmt.Sprintf("%.6f", coord.Longitude))
		params.Set("requiredQuality", string(quality))
		params.Set("key", apiKey)
		if quality.ExpandedCoverage() {
			params.Set("experiments", "EXPANDED_COVERAGE")
		}
		return baseURL + "/buildingInsights:findClosest?" + params.Encode()
	}

	return &InsightsFetcher{
		tiered: NewTieredFetcher(
			client,
			buildURL,
			PolicyPropagate,
			m,
			log.WithField("component", "insights_fetcher"),
		),
	}
}

// Fetch returns the building insights payload for the best available tier,
// tagged with the tier and its human-readable descriptor
func (f *InsightsFetcher) Fetch(ctx context.Context, coord models.Coordinate) (*models.SolarInsightsResult, error) {
	quality, payload, err := f.tiered.FetchBestAvailable(ctx, coord)
	if err != nil {
		return nil, err
	}

	return &models.SolarInsightsResult{
		Quality:     quality,
		QualityInfo: quality.Description(),
		Payload:     payload,
	}, nil
}
