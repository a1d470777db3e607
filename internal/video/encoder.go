// Package video turns camera frames into transport-ready JPEG payloads.
package video

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"livemic/internal/domain"
)

const (
	// MIMETypeJPEG is the mime type of every encoded frame.
	MIMETypeJPEG = "image/jpeg"

	DefaultWidth   = 320
	DefaultHeight  = 240
	DefaultQuality = 50
)

// ErrEmptyFrame is returned for nil or zero-sized frames.
var ErrEmptyFrame = errors.New("empty video frame")

// Encoder downsamples frames to a fixed size and encodes them as JPEG.
type Encoder struct {
	Width   int
	Height  int
	Quality int
}

// NewEncoder returns an encoder with the default 320x240 quality-50 settings.
func NewEncoder() *Encoder {
	return &Encoder{Width: DefaultWidth, Height: DefaultHeight, Quality: DefaultQuality}
}

// Encode scales src into the target size and returns JPEG bytes.
func (e *Encoder) Encode(src image.Image) ([]byte, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}

	width, height := e.Width, e.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	quality := e.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg frame: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBlob encodes src and wraps it as a base64 media blob.
func (e *Encoder) EncodeBlob(src image.Image) (domain.MediaBlob, error) {
	data, err := e.Encode(src)
	if err != nil {
		return domain.MediaBlob{}, err
	}
	return domain.MediaBlob{
		MimeType: MIMETypeJPEG,
		Data:     base64.StdEncoding.EncodeToString(data),
	}, nil
}
