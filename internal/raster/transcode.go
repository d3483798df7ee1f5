package raster

import (
	"bytes"
	"context"
	"image/png"

	"github.com/Zhihong0321/solar-analysis-app/internal/apperrors"
)

// Transcode fetches a tile and re-encodes it as PNG for clients that cannot
// consume raw per-pixel arrays. Width and height are preserved.
func (d *Decoder) Transcode(ctx context.Context, tileURL string) ([]byte, error) {
	raster, err := d.FetchRaster(ctx, tileURL)
	if err != nil {
		return nil, err
	}
	return ToPNG(raster)
}

// ToPNG encodes a decoded raster as a PNG buffer
func ToPNG(r *Raster) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, r.Img); err != nil {
		return nil, &apperrors.DecodeError{Err: err}
	}
	return buf.Bytes(), nil
}
