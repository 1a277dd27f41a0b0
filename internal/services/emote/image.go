package emote

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
)

const (
	// MaxEmoteDimension bounds intrinsic pixel width and height.
	MaxEmoteDimension = 128
	// MaxUploadSize bounds the raw request body.
	MaxUploadSize = 2 << 20 // 2 MiB
)

// UploadImage is a validated emote upload: the original bytes (which are
// what gets stored) plus the decoded pixels the filename is derived from.
type UploadImage struct {
	Data   []byte
	Pixels image.Image
	Format string // "png" or "jpeg"
	Width  int
	Height int
}

// ContentType returns the MIME type for storage.
func (u *UploadImage) ContentType() string {
	if u.Format == "png" {
		return "image/png"
	}
	return "image/jpeg"
}

// DecodeUpload decodes and validates an uploaded byte stream. The bytes are
// decoded rather than sniffed by extension or declared content type; only
// PNG and JPEG are accepted, and neither dimension may exceed 128. Nothing
// is written anywhere on rejection.
func DecodeUpload(data []byte) (*UploadImage, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImage
	}
	// image.Decode dispatches on whatever decoders are registered; accept
	// only the two formats this service supports.
	if format != "png" && format != "jpeg" {
		return nil, ErrInvalidImage
	}

	bounds := img.Bounds()
	if bounds.Dx() > MaxEmoteDimension || bounds.Dy() > MaxEmoteDimension {
		return nil, ErrInvalidImage
	}

	return &UploadImage{
		Data:   data,
		Pixels: img,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// ContentFilename derives the content-addressed filename: SHA-224 over the
// raw pixel bytes plus the format extension. Identical pixel content and
// format always produce the same name, which is what makes duplicate
// detection a filename comparison. SHA-224 hex is 56 characters, so with
// the dot and a three-letter extension the result is exactly 60.
func (u *UploadImage) ContentFilename() string {
	digest := sha256.Sum224(rawPixels(u.Pixels))

	ext := "png"
	if u.Format == "jpeg" {
		ext = "jpg"
	}
	return fmt.Sprintf("%x.%s", digest, ext)
}

// rawPixels flattens the image into row-major RGBA bytes independent of the
// decoder's in-memory representation, so PNG and JPEG encodings of the same
// pixels hash identically per format.
func rawPixels(img image.Image) []byte {
	bounds := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Stride != bounds.Dx()*4 || bounds.Min != (image.Point{}) {
		converted := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(converted, converted.Bounds(), img, bounds.Min, draw.Src)
		nrgba = converted
	}
	return nrgba.Pix
}
