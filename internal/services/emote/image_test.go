package emote

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func solidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestDecodeUpload(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}

	var gifBuf bytes.Buffer
	require.NoError(t, gif.Encode(&gifBuf, solidNRGBA(16, 16, red), nil))

	tests := []struct {
		name       string
		data       []byte
		wantFormat string
		wantErr    bool
	}{
		{"valid png", encodePNG(t, solidNRGBA(32, 32, red)), "png", false},
		{"valid jpeg", encodeJPEG(t, solidNRGBA(32, 32, red)), "jpeg", false},
		{"max dimensions", encodePNG(t, solidNRGBA(128, 128, red)), "png", false},
		{"too wide", encodePNG(t, solidNRGBA(129, 16, red)), "", true},
		{"too tall", encodePNG(t, solidNRGBA(16, 129, red)), "", true},
		{"gif rejected despite decoding", gifBuf.Bytes(), "", true},
		{"not an image", []byte("definitely not pixels"), "", true},
		{"empty", nil, "", true},
		{"truncated png", encodePNG(t, solidNRGBA(32, 32, red))[:20], "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upload, err := DecodeUpload(tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidImage)
				assert.Nil(t, upload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, upload.Format)
			assert.LessOrEqual(t, upload.Width, MaxEmoteDimension)
			assert.LessOrEqual(t, upload.Height, MaxEmoteDimension)
		})
	}
}

func TestContentFilename(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}

	t.Run("shape", func(t *testing.T) {
		upload, err := DecodeUpload(encodePNG(t, solidNRGBA(24, 24, red)))
		require.NoError(t, err)

		name := upload.ContentFilename()
		assert.Len(t, name, 60)
		assert.True(t, strings.HasSuffix(name, ".png"))
		assert.Regexp(t, `^[0-9a-f]{56}\.png$`, name)
	})

	t.Run("jpeg extension", func(t *testing.T) {
		upload, err := DecodeUpload(encodeJPEG(t, solidNRGBA(24, 24, red)))
		require.NoError(t, err)

		name := upload.ContentFilename()
		assert.Len(t, name, 60)
		assert.True(t, strings.HasSuffix(name, ".jpg"))
	})

	t.Run("same pixels same name", func(t *testing.T) {
		// Encode the same pixel content twice, the second time from a
		// different in-memory representation, and expect the same name.
		pixels := solidNRGBA(24, 24, red)

		a, err := DecodeUpload(encodePNG(t, pixels))
		require.NoError(t, err)

		rgba := image.NewRGBA(pixels.Bounds())
		for y := 0; y < 24; y++ {
			for x := 0; x < 24; x++ {
				rgba.Set(x, y, pixels.At(x, y))
			}
		}
		b, err := DecodeUpload(encodePNG(t, rgba))
		require.NoError(t, err)

		assert.Equal(t, a.ContentFilename(), b.ContentFilename())
	})

	t.Run("different pixels different name", func(t *testing.T) {
		a, err := DecodeUpload(encodePNG(t, solidNRGBA(24, 24, red)))
		require.NoError(t, err)
		b, err := DecodeUpload(encodePNG(t, solidNRGBA(24, 24, blue)))
		require.NoError(t, err)

		assert.NotEqual(t, a.ContentFilename(), b.ContentFilename())
	})
}

func TestUploadImageContentType(t *testing.T) {
	assert.Equal(t, "image/png", (&UploadImage{Format: "png"}).ContentType())
	assert.Equal(t, "image/jpeg", (&UploadImage{Format: "jpeg"}).ContentType())
}
