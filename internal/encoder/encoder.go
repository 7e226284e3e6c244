// Package encoder turns captured frames into bytes a client can display.
package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/screenpad/screenpad/internal/capture"
)

// Encoder consumes the pixel provider of a capture backend and produces one
// encoded frame per call.
type Encoder interface {
	// Encode encodes the frame held by p with dimensions width x height.
	Encode(p capture.PixelProvider, width, height int) ([]byte, error)
}

// JPEG encodes frames as single JPEG images, downscaling to fit the
// client's maximum dimensions. Scratch buffers are reused across calls.
type JPEG struct {
	Quality   int
	MaxWidth  int
	MaxHeight int

	rgba   *image.RGBA
	scaled *image.RGBA
	buf    bytes.Buffer
}

// NewJPEG returns a JPEG encoder. maxWidth and maxHeight of 0 disable
// downscaling.
func NewJPEG(quality, maxWidth, maxHeight int) *JPEG {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &JPEG{Quality: quality, MaxWidth: maxWidth, MaxHeight: maxHeight}
}

// Encode converts the BGRx frame to RGBA, scales it down if it exceeds the
// configured limits and encodes the result.
func (e *JPEG) Encode(p capture.PixelProvider, width, height int) ([]byte, error) {
	if p.None() {
		return nil, fmt.Errorf("no frame available")
	}
	if p.Format != capture.FormatBGRx {
		return nil, fmt.Errorf("unsupported pixel format %d", p.Format)
	}
	if len(p.Data) < width*height*4 {
		return nil, fmt.Errorf("frame data too short: %d bytes for %dx%d", len(p.Data), width, height)
	}

	img := e.toRGBA(p.Data, width, height)

	if outW, outH, ok := e.fit(width, height); ok {
		if e.scaled == nil || e.scaled.Rect.Dx() != outW || e.scaled.Rect.Dy() != outH {
			e.scaled = image.NewRGBA(image.Rect(0, 0, outW, outH))
		}
		draw.ApproxBiLinear.Scale(e.scaled, e.scaled.Rect, img, img.Rect, draw.Src, nil)
		img = e.scaled
	}

	e.buf.Reset()
	if err := jpeg.Encode(&e.buf, img, &jpeg.Options{Quality: e.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return e.buf.Bytes(), nil
}

// toRGBA copies a BGRx buffer into the reusable RGBA scratch image.
func (e *JPEG) toRGBA(data []byte, width, height int) *image.RGBA {
	if e.rgba == nil || e.rgba.Rect.Dx() != width || e.rgba.Rect.Dy() != height {
		e.rgba = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	pix := e.rgba.Pix
	for i := 0; i+4 <= width*height*4; i += 4 {
		pix[i] = data[i+2]
		pix[i+1] = data[i+1]
		pix[i+2] = data[i]
		pix[i+3] = 255
	}
	return e.rgba
}

// fit computes output dimensions capped at the configured maxima while
// preserving aspect ratio. ok is false when no scaling is needed.
func (e *JPEG) fit(width, height int) (int, int, bool) {
	if width <= 0 || height <= 0 {
		return width, height, false
	}
	maxW, maxH := e.MaxWidth, e.MaxHeight
	if maxW <= 0 {
		maxW = width
	}
	if maxH <= 0 {
		maxH = height
	}
	if width <= maxW && height <= maxH {
		return width, height, false
	}
	scale := float64(maxW) / float64(width)
	if s := float64(maxH) / float64(height); s < scale {
		scale = s
	}
	outW := int(float64(width) * scale)
	outH := int(float64(height) * scale)
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}
	return outW, outH, true
}
