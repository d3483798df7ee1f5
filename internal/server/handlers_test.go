package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/image/tiff"

	"github.com/sirupsen/logrus"

	"github.com/Zhihong0321/solar-analysis-app/internal/config"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// newTestServer builds a fully wired server against stub upstream endpoints
func newTestServer(t *testing.T, geocodeURL, solarURL string) *Server {
	t.Helper()

	cfg := &config.Config{
		Port:                "0",
		GoogleAPIKey:        "test-key",
		GeocodeURL:          geocodeURL,
		SolarAPIURL:         solarURL,
		ImageryRadiusMeters: 100,
		TileCacheDir:        t.TempDir(),
	}

	srv, err := New(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("server init failed: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func notFoundBody() string {
	return `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`
}

func postJSON(handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleGeocode(t *testing.T) {
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("address") != "1600 Amphitheatre Pkwy" {
			t.Errorf("address not forwarded: %q", r.URL.Query().Get("address"))
		}
		fmt.Fprint(w, `{"status":"OK","results":[{"formatted_address":"1600 Amphitheatre Pkwy, Mountain View, CA","geometry":{"location":{"lat":37.422,"lng":-122.084}}}]}`)
	}))
	defer geo.Close()

	srv := newTestServer(t, geo.URL, "http://unused.invalid")
	rec := postJSON(srv.HandleGeocode, "/api/geocode", `{"address":"1600 Amphitheatre Pkwy"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Error("expected success response")
	}
	if body["lat"] != 37.422 || body["lng"] != -122.084 {
		t.Errorf("coordinates not passed through: %v, %v", body["lat"], body["lng"])
	}
	if body["formattedAddress"] != "1600 Amphitheatre Pkwy, Mountain View, CA" {
		t.Errorf("unexpected formatted address: %v", body["formattedAddress"])
	}
}

func TestHandleGeocodeEmptyAddress(t *testing.T) {
	srv := newTestServer(t, "http://unused.invalid", "http://unused.invalid")
	rec := postJSON(srv.HandleGeocode, "/api/geocode", `{"address":"   "}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank address, got %d", rec.Code)
	}
	if decodeBody(t, rec)["success"] != false {
		t.Error("error envelope must carry success=false")
	}
}

func TestHandleBuildingInsightsFallback(t *testing.T) {
	payload := `{"name":"buildings/123","center":{"latitude":3.14,"longitude":101.69}}`
	solar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("requiredQuality") == "HIGH" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, notFoundBody())
			return
		}
		fmt.Fprint(w, payload)
	}))
	defer solar.Close()

	srv := newTestServer(t, "http://unused.invalid", solar.URL)
	rec := postJSON(srv.HandleBuildingInsights, "/api/solar/building-insights", `{"lat":3.14,"lng":101.69}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["quality"] != "MEDIUM" {
		t.Errorf("expected MEDIUM fallback, got %v", body["quality"])
	}
	if body["qualityInfo"] != "0.25m/pixel aerial" {
		t.Errorf("unexpected quality descriptor: %v", body["qualityInfo"])
	}
	data, err := json.Marshal(body["data"])
	if err != nil || !bytes.Contains(data, []byte("buildings/123")) {
		t.Errorf("upstream payload not passed through: %s", data)
	}
}

func TestHandleBuildingInsightsNoData(t *testing.T) {
	solar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, notFoundBody())
	}))
	defer solar.Close()

	srv := newTestServer(t, "http://unused.invalid", solar.URL)
	rec := postJSON(srv.HandleBuildingInsights, "/api/solar/building-insights", `{"lat":60.0,"lng":25.0}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after tier exhaustion, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "No solar data available for this location" {
		t.Errorf("unexpected error message: %v", body["error"])
	}
}

func TestHandleBuildingInsightsMissingCoordinate(t *testing.T) {
	srv := newTestServer(t, "http://unused.invalid", "http://unused.invalid")

	for _, body := range []string{`{}`, `{"lat":3.14}`, `{"lat":91,"lng":0}`, `not json`} {
		rec := postJSON(srv.HandleBuildingInsights, "/api/solar/building-insights", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestHandleImagerySuccess(t *testing.T) {
	solar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"imageryDate":{"year":2024},"rgbUrl":"https://solar.googleapis.com/tile/rgb"}`)
	}))
	defer solar.Close()

	srv := newTestServer(t, "http://unused.invalid", solar.URL)
	rec := postJSON(srv.HandleImagery, "/api/solar/imagery", `{"lat":3.14,"lng":101.69}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != true || body["quality"] != "HIGH" {
		t.Errorf("unexpected response: %v", body)
	}
}

func TestHandleImageryUnavailableIsNotAnError(t *testing.T) {
	// A terminal upstream failure still yields a 200 with a null payload
	solar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"Permission denied","status":"PERMISSION_DENIED"}}`)
	}))
	defer solar.Close()

	srv := newTestServer(t, "http://unused.invalid", solar.URL)
	rec := postJSON(srv.HandleImagery, "/api/solar/imagery", `{"lat":3.14,"lng":101.69}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("imagery endpoint must not surface upstream failures, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != false {
		t.Error("expected success=false for unavailable imagery")
	}
	if data, present := body["data"]; !present || data != nil {
		t.Errorf("expected data:null, got %v", data)
	}
}

func TestHandleProxyImage(t *testing.T) {
	tileBytes := []byte{0x1f, 0x2e, 0x3d, 0x4c}
	tiles := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/tiff")
		w.Write(tileBytes)
	}))
	defer tiles.Close()

	srv := newTestServer(t, "http://unused.invalid", "http://unused.invalid")
	req := httptest.NewRequest(http.MethodGet, "/api/proxy-image?url="+tiles.URL+"/tile.tif", nil)
	rec := httptest.NewRecorder()
	srv.HandleProxyImage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "image/tiff" {
		t.Errorf("content type not passed through: %q", rec.Header().Get("Content-Type"))
	}
	if !bytes.Equal(rec.Body.Bytes(), tileBytes) {
		t.Error("tile bytes not passed through verbatim")
	}
}

func TestHandleProxyImageMissingURL(t *testing.T) {
	srv := newTestServer(t, "http://unused.invalid", "http://unused.invalid")
	req := httptest.NewRequest(http.MethodGet, "/api/proxy-image", nil)
	rec := httptest.NewRecorder()
	srv.HandleProxyImage(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without url parameter, got %d", rec.Code)
	}
}

func TestHandleProcessGeoTIFFSingleBand(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	copy(img.Pix, []uint8{0, 10, 20, 255, 30, 40})
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, nil); err != nil {
		t.Fatalf("tiff encode failed: %v", err)
	}

	tiles := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer tiles.Close()

	srv := newTestServer(t, "http://unused.invalid", "http://unused.invalid")
	req := httptest.NewRequest(http.MethodGet, "/api/process-geotiff?layer=annualFlux&url="+tiles.URL+"/flux.tif", nil)
	rec := httptest.NewRecorder()
	srv.HandleProcessGeoTIFF(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["type"] != "singleBand" {
		t.Errorf("expected singleBand type, got %v", body["type"])
	}
	if body["width"] != 3.0 || body["height"] != 2.0 {
		t.Errorf("dimensions wrong: %v x %v", body["width"], body["height"])
	}

	// Raw values keep the sentinels and marshal as a numeric array
	data, ok := body["data"].([]interface{})
	if !ok {
		t.Fatalf("data is not an array: %T", body["data"])
	}
	want := []float64{0, 10, 20, 255, 30, 40}
	for i, v := range want {
		if data[i] != v {
			t.Errorf("data[%d] = %v, want %v", i, data[i], v)
		}
	}

	stats, ok := body["stats"].(map[string]interface{})
	if !ok {
		t.Fatalf("stats missing: %v", body)
	}
	if stats["min"] != 10.0 || stats["max"] != 40.0 || stats["mean"] != 25.0 {
		t.Errorf("sentinel-filtered stats wrong: %v", stats)
	}
}

func TestHandleProcessGeoTIFFRGB(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < 4; i++ {
		img.Pix[i*4+0] = uint8(10 * i)
		img.Pix[i*4+1] = uint8(10*i + 1)
		img.Pix[i*4+2] = uint8(10*i + 2)
		img.Pix[i*4+3] = 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}

	tiles := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer tiles.Close()

	srv := newTestServer(t, "http://unused.invalid", "http://unused.invalid")
	req := httptest.NewRequest(http.MethodGet, "/api/process-geotiff?layer=rgb&url="+tiles.URL+"/rgb.png", nil)
	rec := httptest.NewRecorder()
	srv.HandleProcessGeoTIFF(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["type"] != "rgb" {
		t.Errorf("expected rgb type, got %v", body["type"])
	}
	data := body["data"].(map[string]interface{})
	red := data["red"].([]interface{})
	if len(red) != 4 {
		t.Fatalf("expected 4 red samples, got %d", len(red))
	}
	if red[1] != 10.0 || red[2] != 20.0 {
		t.Errorf("red channel not sampled at stride: %v", red)
	}
}

func TestHandleProcessGeoTIFFRGBOnGrayTile(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, nil); err != nil {
		t.Fatalf("tiff encode failed: %v", err)
	}

	tiles := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer tiles.Close()

	srv := newTestServer(t, "http://unused.invalid", "http://unused.invalid")
	req := httptest.NewRequest(http.MethodGet, "/api/process-geotiff?layer=rgb&url="+tiles.URL+"/mask.tif", nil)
	rec := httptest.NewRecorder()
	srv.HandleProcessGeoTIFF(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415 for rgb extraction from a single-band tile, got %d", rec.Code)
	}
}

func TestHandleConvertImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, nil); err != nil {
		t.Fatalf("tiff encode failed: %v", err)
	}

	tiles := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer tiles.Close()

	srv := newTestServer(t, "http://unused.invalid", "http://unused.invalid")
	req := httptest.NewRequest(http.MethodGet, "/api/convert-image?url="+tiles.URL+"/mask.tif", nil)
	rec := httptest.NewRecorder()
	srv.HandleConvertImage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("expected image/png, got %q", rec.Header().Get("Content-Type"))
	}
	out, format, err := image.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil || format != "png" {
		t.Fatalf("output is not a decodable PNG: %v (%s)", err, format)
	}
	if out.Bounds().Dx() != 4 || out.Bounds().Dy() != 3 {
		t.Errorf("dimensions not preserved: %v", out.Bounds())
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, "http://unused.invalid", "http://unused.invalid")
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("unexpected status: %v", body["status"])
	}
	env := body["env"].(map[string]interface{})
	if env["hasApiKey"] != true {
		t.Error("hasApiKey should reflect the configured key")
	}
	if env["hasSigningSecret"] != false {
		t.Error("hasSigningSecret should be false without a secret")
	}
}

func TestRoutesRejectWrongMethod(t *testing.T) {
	srv := newTestServer(t, "http://unused.invalid", "http://unused.invalid")
	handler := srv.SetupRoutes()

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/geocode"},
		{http.MethodGet, "/api/solar/building-insights"},
		{http.MethodPost, "/api/proxy-image"},
		{http.MethodPost, "/api/health"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected 405, got %d", tt.method, tt.path, rec.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, "http://unused.invalid", "http://unused.invalid")
	handler := srv.SetupRoutes()

	req := httptest.NewRequest(http.MethodOptions, "/api/geocode", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
}

func TestPrepareUpstreamURL(t *testing.T) {
	srv := newTestServer(t, "http://unused.invalid", "http://unused.invalid")

	signed, err := srv.prepareUpstreamURL("https://solar.googleapis.com/v1/tile?id=42")
	if err != nil {
		t.Fatalf("prepareUpstreamURL failed: %v", err)
	}
	if !strings.Contains(signed, "key=test-key") {
		t.Errorf("API key not appended for Google host: %s", signed)
	}

	passthrough, err := srv.prepareUpstreamURL("https://tiles.example.com/t.png?z=3")
	if err != nil {
		t.Fatalf("prepareUpstreamURL failed: %v", err)
	}
	if strings.Contains(passthrough, "test-key") {
		t.Errorf("API key must not leak to non-Google hosts: %s", passthrough)
	}

	if _, err := srv.prepareUpstreamURL("not-a-url"); err == nil {
		t.Error("expected validation failure for a relative URL")
	}
}
