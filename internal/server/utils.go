package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/Zhihong0321/solar-analysis-app/internal/apperrors"
)

// maxBodyBytes bounds request bodies on the JSON endpoints
const maxBodyBytes = 1 << 20

// writeJSON encodes a response payload with the standard headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.WithError(err).Error("Failed to encode response")
	}
}

// writeError maps an error to its HTTP status and emits the error envelope
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).Error("Request failed")
	} else {
		s.log.WithError(err).Info("Request rejected")
	}

	s.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}

// prepareUpstreamURL validates a caller-supplied tile URL, appends the API
// key for Google hosts, and signs the result when signing is configured
func (s *Server) prepareUpstreamURL(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &apperrors.ValidationError{Msg: "url parameter is required"}
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &apperrors.ValidationError{Msg: "url parameter must be an absolute http(s) URL"}
	}

	if strings.HasSuffix(u.Hostname(), "googleapis.com") {
		q := u.Query()
		if q.Get("key") == "" {
			q.Set("key", s.Config.GoogleAPIKey)
			u.RawQuery = q.Encode()
		}
		if s.Signer != nil {
			return s.Signer.SignURL(u.String())
		}
	}
	return u.String(), nil
}

// intSlice converts raw byte samples to ints so they marshal as a JSON
// number array instead of a base64 string
func intSlice(values []uint8) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}
