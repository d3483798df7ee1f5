package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/Zhihong0321/solar-analysis-app/internal/apperrors"
	"github.com/Zhihong0321/solar-analysis-app/internal/metrics"
	"github.com/Zhihong0321/solar-analysis-app/internal/storage"
)

// decodedCacheSize bounds the in-process cache of decoded rasters
const decodedCacheSize = 32

// LayerKind selects how a decoded raster is extracted
type LayerKind int

const (
	// LayerRGB extracts three color channels
	LayerRGB LayerKind = iota
	// LayerSingleBand extracts one scalar band plus statistics
	LayerSingleBand
)

// ParseLayerKind maps a layer query value to its extraction kind. Only
// "rgb" is a color layer; mask, flux, and every other named layer is a
// single scalar band.
func ParseLayerKind(layer string) LayerKind {
	if layer == "rgb" {
		return LayerRGB
	}
	return LayerSingleBand
}

// Stats summarizes a single band with the no-data sentinels filtered out
type Stats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
}

// RGBLayer is the decoded form of a color tile
type RGBLayer struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Red    []uint8 `json:"red"`
	Green  []uint8 `json:"green"`
	Blue   []uint8 `json:"blue"`
}

// SingleBandLayer is the decoded form of a scalar tile. Values are the raw
// unfiltered samples; only Stats excludes the sentinels, because downstream
// visualization needs every pixel to preserve image shape.
type SingleBandLayer struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Stats  Stats   `json:"stats"`
	Values []uint8 `json:"values"`
}

// Decoder fetches tile bytes and decodes them. Raw bytes are cached in the
// tile store (when configured) and decoded rasters in a small LRU, both
// keyed by the tile URL.
type Decoder struct {
	client  *resty.Client
	store   storage.TileStore
	decoded *lru.Cache
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// NewDecoder creates a raster decoder. store and m may be nil.
func NewDecoder(client *resty.Client, store storage.TileStore, m *metrics.Metrics, log *logrus.Logger) *Decoder {
	cache, _ := lru.New(decodedCacheSize)
	return &Decoder{
		client:  client,
		store:   store,
		decoded: cache,
		metrics: m,
		log:     log.WithField("component", "raster_decoder"),
	}
}

// Fetch retrieves raw tile bytes, consulting the tile store first. Returns
// the bytes and the upstream content type (empty on a cache hit).
func (d *Decoder) Fetch(ctx context.Context, tileURL string) ([]byte, string, error) {
	key := storage.KeyForURL(tileURL)

	if d.store != nil {
		if exists, err := d.store.Exists(ctx, key); err == nil && exists {
			data, err := d.store.Get(ctx, key)
			if err == nil {
				d.countCache("hit")
				return data, "", nil
			}
			d.log.WithError(err).Warn("Tile cache read failed, fetching upstream")
		}
	}
	d.countCache("miss")

	resp, err := d.client.R().SetContext(ctx).Get(tileURL)
	if err != nil {
		return nil, "", &apperrors.FetchError{URL: tileURL, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, "", &apperrors.FetchError{
			URL: tileURL,
			Err: fmt.Errorf("tile store returned status %d", resp.StatusCode()),
		}
	}

	data := resp.Body()
	contentType := resp.Header().Get("Content-Type")

	if d.store != nil {
		if err := d.store.Put(ctx, key, data, contentType); err != nil {
			// Cache write failures never fail the request
			d.log.WithError(err).Warn("Tile cache write failed")
		}
	}

	return data, contentType, nil
}

// Decode parses tile bytes into a Raster
func (d *Decoder) Decode(data []byte) (*Raster, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &apperrors.DecodeError{Err: err}
	}
	return FromImage(img, format), nil
}

// FetchRaster fetches and decodes a tile, serving repeats from the decoded
// LRU
func (d *Decoder) FetchRaster(ctx context.Context, tileURL string) (*Raster, error) {
	if cached, ok := d.decoded.Get(tileURL); ok {
		return cached.(*Raster), nil
	}

	start := time.Now()
	data, _, err := d.Fetch(ctx, tileURL)
	if err != nil {
		return nil, err
	}

	raster, err := d.Decode(data)
	if err != nil {
		return nil, err
	}

	d.log.WithFields(logrus.Fields{
		"format":   raster.Format,
		"width":    raster.Width,
		"height":   raster.Height,
		"channels": raster.Channels,
		"took_ms":  time.Since(start).Milliseconds(),
	}).Debug("Tile decoded")

	d.decoded.Add(tileURL, raster)
	return raster, nil
}

// ExtractRGB pulls three equal-length channel sequences out of a raster,
// sampling at the raster's channel stride in row-major pixel order
func ExtractRGB(r *Raster) (*RGBLayer, error) {
	if r.Channels < 3 {
		return nil, &apperrors.UnsupportedFormat{Needed: 3, Got: r.Channels}
	}

	n := r.PixelCount()
	layer := &RGBLayer{
		Width:  r.Width,
		Height: r.Height,
		Red:    make([]uint8, n),
		Green:  make([]uint8, n),
		Blue:   make([]uint8, n),
	}
	for i := 0; i < n; i++ {
		layer.Red[i] = r.SampleAt(i, 0)
		layer.Green[i] = r.SampleAt(i, 1)
		layer.Blue[i] = r.SampleAt(i, 2)
	}
	return layer, nil
}

// ExtractSingleBand pulls the first channel of every pixel plus statistics.
// Sampling at the channel stride covers both the interleaved scientific
// rasters (stride > 1) and plain single-channel buffers, where the stride
// degenerates to a contiguous read.
func ExtractSingleBand(r *Raster) *SingleBandLayer {
	n := r.PixelCount()
	values := make([]uint8, n)
	for i := 0; i < n; i++ {
		values[i] = r.SampleAt(i, 0)
	}

	return &SingleBandLayer{
		Width:  r.Width,
		Height: r.Height,
		Stats:  computeStats(values),
		Values: values,
	}
}

// computeStats summarizes a band, excluding the reserved no-data sentinels
// 0 and 255. An all-sentinel band yields the deliberate empty fallback of
// min 0, max 255, mean 0 rather than an error.
func computeStats(values []uint8) Stats {
	min, max := 255, 0
	sum, count := 0, 0

	for _, v := range values {
		if v == 0 || v == 255 {
			continue
		}
		n := int(v)
		if n < min {
			min = n
		}
		if n > max {
			max = n
		}
		sum += n
		count++
	}

	if count == 0 {
		return Stats{Min: 0, Max: 255, Mean: 0}
	}
	return Stats{
		Min:  min,
		Max:  max,
		Mean: float64(sum) / float64(count),
	}
}

func (d *Decoder) countCache(result string) {
	if d.metrics != nil {
		d.metrics.CacheHits.WithLabelValues(result).Inc()
	}
}
