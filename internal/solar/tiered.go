// Package solar fetches building insights and data layer imagery from the
// upstream solar provider across decreasing quality tiers.
package solar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/Zhihong0321/solar-analysis-app/internal/apperrors"
	"github.com/Zhihong0321/solar-analysis-app/internal/metrics"
	"github.com/Zhihong0321/solar-analysis-app/internal/models"
)

// FailurePolicy decides what a terminal failure of the tier loop becomes:
// an error for the caller, or a silent "no data" outcome.
type FailurePolicy int

const (
	// PolicyPropagate surfaces terminal failures to the caller
	PolicyPropagate FailurePolicy = iota
	// PolicySwallow turns every terminal failure into an empty result
	PolicySwallow
)

// URLBuilder builds the upstream request URL for one coordinate and tier
type URLBuilder func(coord models.Coordinate, quality models.Quality) string

// tierOutcome classifies one tier attempt
type tierOutcome int

const (
	tierSucceeded tierOutcome = iota
	tierUnavailable
	tierFailed
)

func (o tierOutcome) String() string {
	switch o {
	case tierSucceeded:
		return "success"
	case tierUnavailable:
		return "unavailable"
	default:
		return "terminal"
	}
}

// TieredFetcher drives the HIGH -> MEDIUM -> BASE fallback loop against one
// upstream endpoint. First success wins; a "not found" on a non-final tier
// moves to the next tier; every other failure is terminal.
type TieredFetcher struct {
	client   *resty.Client
	buildURL URLBuilder
	policy   FailurePolicy
	metrics  *metrics.Metrics
	log      *logrus.Entry
}

// NewTieredFetcher creates a tier fallback driver for one endpoint
func NewTieredFetcher(client *resty.Client, buildURL URLBuilder, policy FailurePolicy, m *metrics.Metrics, log *logrus.Entry) *TieredFetcher {
	return &TieredFetcher{
		client:   client,
		buildURL: buildURL,
		policy:   policy,
		metrics:  m,
		log:      log,
	}
}

// upstreamErrorBody is the provider's error envelope
type upstreamErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// FetchBestAvailable tries each quality tier in order and returns the first
// successful payload. Under PolicySwallow a nil payload with nil error means
// "no data"; under PolicyPropagate failures come back as errors and tier
// exhaustion is apperrors.ErrNoDataAvailable.
func (f *TieredFetcher) FetchBestAvailable(ctx context.Context, coord models.Coordinate) (models.Quality, json.RawMessage, error) {
	for _, tier := range models.QualityOrder {
		outcome, payload, err := f.tryTier(ctx, coord, tier)
		if f.metrics != nil {
			f.metrics.TierAttempts.WithLabelValues(string(tier), outcome.String()).Inc()
		}

		switch outcome {
		case tierSucceeded:
			f.log.WithField("quality", tier).Debug("Tier fetch succeeded")
			return tier, payload, nil
		case tierUnavailable:
			f.log.WithField("quality", tier).Debug("Tier unavailable, trying next")
			continue
		case tierFailed:
			if f.policy == PolicySwallow {
				f.log.WithField("quality", tier).WithError(err).Info("Terminal tier failure swallowed")
				return "", nil, nil
			}
			return "", nil, err
		}
	}

	if f.policy == PolicySwallow {
		return "", nil, nil
	}
	return "", nil, apperrors.ErrNoDataAvailable
}

// tryTier issues one tier request and classifies the result. A "not found"
// counts as unavailable on every tier, so exhausting the list is reported
// as no-data rather than an upstream failure.
func (f *TieredFetcher) tryTier(ctx context.Context, coord models.Coordinate, tier models.Quality) (tierOutcome, json.RawMessage, error) {
	url := f.buildURL(coord, tier)

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(url)
	if err != nil {
		return tierFailed, nil, &apperrors.NetworkError{Op: "failed to reach solar API", Err: err}
	}

	body := resp.Body()

	if resp.IsSuccess() {
		if !json.Valid(body) {
			f.log.WithFields(logrus.Fields{
				"quality": tier,
				"body":    truncate(body, 512),
			}).Error("Unparseable success body from solar API")
			return tierFailed, nil, &apperrors.UpstreamError{
				Provider: "solar API",
				Status:   fmt.Sprintf("%d", resp.StatusCode()),
				Msg:      "unparseable response body",
			}
		}
		return tierSucceeded, json.RawMessage(body), nil
	}

	var envelope upstreamErrorBody
	if err := json.Unmarshal(body, &envelope); err != nil {
		f.log.WithFields(logrus.Fields{
			"quality": tier,
			"status":  resp.StatusCode(),
			"body":    truncate(body, 512),
		}).Error("Unparseable error body from solar API")
		return tierFailed, nil, &apperrors.UpstreamError{
			Provider: "solar API",
			Status:   fmt.Sprintf("%d", resp.StatusCode()),
			Msg:      "unparseable error body",
		}
	}

	if isNotFound(resp.StatusCode(), envelope) {
		return tierUnavailable, nil, nil
	}

	return tierFailed, nil, &apperrors.UpstreamError{
		Provider: "solar API",
		Status:   upstreamStatus(resp.StatusCode(), envelope),
		Msg:      envelope.Error.Message,
	}
}

// isNotFound reports whether the upstream error means "no data at this
// tier" as opposed to quota, auth, or request shape problems
func isNotFound(statusCode int, envelope upstreamErrorBody) bool {
	if statusCode == 404 || envelope.Error.Code == 404 {
		return true
	}
	if envelope.Error.Status == "NOT_FOUND" {
		return true
	}
	return strings.Contains(strings.ToLower(envelope.Error.Message), "not found")
}

func upstreamStatus(statusCode int, envelope upstreamErrorBody) string {
	if envelope.Error.Status != "" {
		return envelope.Error.Status
	}
	return fmt.Sprintf("%d", statusCode)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
