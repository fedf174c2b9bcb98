// Package avatar holds the image pipeline: decode/resize/encode of
// uploaded avatars, remote fetch by URL, and best-effort disk
// persistence.
package avatar

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

var (
	// ErrUnavailable means no processing capability is wired in.
	ErrUnavailable = errors.New("avatar processing unavailable")
	// ErrDecode means the payload is not a decodable image.
	ErrDecode = errors.New("avatar decode failed")
	// ErrBadStatus means the remote returned a non-2xx response.
	ErrBadStatus = errors.New("bad response status")
)

// Processor turns raw uploaded bytes into the normalized stored form.
type Processor interface {
	Process(data []byte) ([]byte, error)
}

// ImageProcessor downscales avatars to fit maxDim and re-encodes them
// as JPEG. Upscaling is never done.
type ImageProcessor struct {
	maxDim  int
	quality int
}

func NewImageProcessor() *ImageProcessor {
	return &ImageProcessor{maxDim: 256, quality: 85}
}

func (p *ImageProcessor) Process(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > p.maxDim || h > p.maxDim {
		scale := float64(p.maxDim) / float64(w)
		if h > w {
			scale = float64(p.maxDim) / float64(h)
		}
		dw := int(float64(w)*scale + 0.5)
		dh := int(float64(h)*scale + 0.5)
		if dw < 1 {
			dw = 1
		}
		if dh < 1 {
			dh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		src = dst
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, src, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return out.Bytes(), nil
}
