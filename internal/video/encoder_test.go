package video

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestEncodeDownsamplesToTargetSize(t *testing.T) {
	t.Parallel()

	data, err := NewEncoder().Encode(solidFrame(640, 480, color.RGBA{R: 200, G: 40, B: 40, A: 255}))
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 320, 240), decoded.Bounds())

	r, _, _, _ := decoded.At(160, 120).RGBA()
	assert.Greater(t, r>>8, uint32(150))
}

func TestEncodeBlob(t *testing.T) {
	t.Parallel()

	blob, err := NewEncoder().EncodeBlob(solidFrame(64, 48, color.RGBA{A: 255}))
	require.NoError(t, err)
	assert.Equal(t, MIMETypeJPEG, blob.MimeType)

	raw, err := base64.StdEncoding.DecodeString(blob.Data)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, raw[:2])
}

func TestEncodeRejectsEmptyFrame(t *testing.T) {
	t.Parallel()

	_, err := NewEncoder().Encode(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)

	_, err = NewEncoder().Encode(image.NewRGBA(image.Rectangle{}))
	assert.ErrorIs(t, err, ErrEmptyFrame)
}
