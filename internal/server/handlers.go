package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Zhihong0321/solar-analysis-app/internal/apperrors"
	"github.com/Zhihong0321/solar-analysis-app/internal/models"
	"github.com/Zhihong0321/solar-analysis-app/internal/raster"
)

// geocodeRequest is the body of POST /api/geocode
type geocodeRequest struct {
	Address string `json:"address"`
}

// coordRequest is the body of the solar endpoints. Pointers distinguish
// missing fields from zero coordinates.
type coordRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// HandleGeocode resolves a street address to a coordinate
func (s *Server) HandleGeocode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req geocodeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, &apperrors.ValidationError{Msg: "invalid JSON body"})
		return
	}

	result, err := s.Geocoder.Resolve(r.Context(), req.Address)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"lat":              result.Coordinate.Latitude,
		"lng":              result.Coordinate.Longitude,
		"formattedAddress": result.FormattedAddress,
	})
}

// HandleBuildingInsights fetches solar building insights at the best
// available quality tier
func (s *Server) HandleBuildingInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	coord, err := s.parseCoordinate(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.Insights.Fetch(r.Context(), coord)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"quality":     result.Quality,
		"qualityInfo": result.QualityInfo,
		"data":        json.RawMessage(result.Payload),
	})
}

// HandleImagery fetches data layer tile references. Absent imagery is an
// expected outcome, so the response is success-shaped either way.
func (s *Server) HandleImagery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	coord, err := s.parseCoordinate(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result := s.Imagery.Fetch(r.Context(), coord)
	if !result.Available {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"data":    nil,
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"quality": result.Quality,
		"data":    json.RawMessage(result.Payload),
	})
}

// HandleProxyImage fetches an upstream tile and passes the bytes through
func (s *Server) HandleProxyImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tileURL, err := s.prepareUpstreamURL(r.URL.Query().Get("url"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	data, contentType, err := s.Decoder.Fetch(r.Context(), tileURL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// HandleProcessGeoTIFF decodes an upstream raster into numeric per-pixel
// data for the requested layer kind
func (s *Server) HandleProcessGeoTIFF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tileURL, err := s.prepareUpstreamURL(r.URL.Query().Get("url"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	decoded, err := s.Decoder.FetchRaster(r.Context(), tileURL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	layer := r.URL.Query().Get("layer")
	switch raster.ParseLayerKind(layer) {
	case raster.LayerRGB:
		rgb, err := raster.ExtractRGB(decoded)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"type":    "rgb",
			"width":   rgb.Width,
			"height":  rgb.Height,
			"data": map[string]interface{}{
				"red":   intSlice(rgb.Red),
				"green": intSlice(rgb.Green),
				"blue":  intSlice(rgb.Blue),
			},
		})

	case raster.LayerSingleBand:
		band := raster.ExtractSingleBand(decoded)
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"type":    "singleBand",
			"width":   band.Width,
			"height":  band.Height,
			"stats":   band.Stats,
			"data":    intSlice(band.Values),
		})
	}
}

// HandleConvertImage transcodes an upstream raster into PNG
func (s *Server) HandleConvertImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tileURL, err := s.prepareUpstreamURL(r.URL.Query().Get("url"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	data, err := s.Decoder.Transcode(r.Context(), tileURL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// HandleHealth provides the health check endpoint
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"env": map[string]bool{
			"hasApiKey":        s.Config.GoogleAPIKey != "",
			"hasSigningSecret": s.Config.URLSigningSecret != "",
		},
	})
}

// parseCoordinate decodes and validates the lat/lng request body
func (s *Server) parseCoordinate(w http.ResponseWriter, r *http.Request) (models.Coordinate, error) {
	var req coordRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return models.Coordinate{}, &apperrors.ValidationError{Msg: "invalid JSON body"}
	}
	if req.Lat == nil || req.Lng == nil {
		return models.Coordinate{}, &apperrors.ValidationError{Msg: "lat and lng are required"}
	}

	coord := models.Coordinate{Latitude: *req.Lat, Longitude: *req.Lng}
	if err := coord.Validate(); err != nil {
		return models.Coordinate{}, &apperrors.ValidationError{Msg: err.Error()}
	}
	return coord, nil
}
