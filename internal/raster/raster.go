// Package raster fetches raw raster tiles from the upstream store and
// decodes them into per-pixel numeric data or display images.
package raster

import (
	"image"
	"image/draw"
)

// Raster is a decoded tile: interleaved 8-bit samples in row-major pixel
// order, with a fixed channel stride. Sample access goes through the typed
// accessor so the RGB and single-band paths share one stride rule.
type Raster struct {
	Width    int
	Height   int
	Channels int
	Format   string
	Pix      []uint8
	Img      image.Image
}

// PixelCount returns the number of pixels in the raster
func (r *Raster) PixelCount() int {
	return r.Width * r.Height
}

// SampleAt returns the sample for one pixel and channel
func (r *Raster) SampleAt(pixel, channel int) uint8 {
	return r.Pix[pixel*r.Channels+channel]
}

// FromImage converts a decoded image into a Raster, compacting away any row
// padding so Pix is exactly width*height*channels bytes
func FromImage(img image.Image, format string) *Raster {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	r := &Raster{
		Width:  w,
		Height: h,
		Format: format,
		Img:    img,
	}

	switch src := img.(type) {
	case *image.Gray:
		r.Channels = 1
		r.Pix = compactRows(src.Pix, src.Stride, w*1, h)
	case *image.Gray16:
		// 16-bit single band, reduced to the high byte
		r.Channels = 1
		r.Pix = make([]uint8, w*h)
		for i := 0; i < w*h; i++ {
			r.Pix[i] = src.Pix[i*2]
		}
	case *image.RGBA:
		r.Channels = 4
		r.Pix = compactRows(src.Pix, src.Stride, w*4, h)
	case *image.NRGBA:
		r.Channels = 4
		r.Pix = compactRows(src.Pix, src.Stride, w*4, h)
	default:
		// Paletted, YCbCr and friends: render into NRGBA
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
		r.Channels = 4
		r.Pix = dst.Pix
	}

	return r
}

// compactRows copies rows of rowLen bytes out of a possibly padded buffer
func compactRows(pix []uint8, stride, rowLen, rows int) []uint8 {
	if stride == rowLen {
		return pix
	}
	out := make([]uint8, rowLen*rows)
	for y := 0; y < rows; y++ {
		copy(out[y*rowLen:(y+1)*rowLen], pix[y*stride:y*stride+rowLen])
	}
	return out
}
