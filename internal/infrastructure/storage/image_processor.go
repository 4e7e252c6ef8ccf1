package storage

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

// ProfilePictureSize is the edge of the square stored avatar
const ProfilePictureSize = 600

type ImageProcessor struct {
	MaxSize int64 // bytes (default: 5MB)
	Size    int
}

func NewImageProcessor() *ImageProcessor {
	return &ImageProcessor{MaxSize: 5 * 1024 * 1024, Size: ProfilePictureSize} // 5MB
}

// Check JPEG/PNG, reject files above max size
func (p *ImageProcessor) ValidateImage(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty file")
	}
	if int64(len(data)) > p.MaxSize {
		return fmt.Errorf("image exceeds %dMB", p.MaxSize/(1024*1024))
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("not an image: %w", err)
	}
	switch format {
	case "jpeg", "png":
		return nil
	default:
		return fmt.Errorf("image format %s not allowed (only jpeg/png)", format)
	}
}

// ProcessProfilePicture crops to a centered square, resizes and re-encodes as JPEG.
// EXIF orientation is applied so phone photos are upright.
func (p *ImageProcessor) ProcessProfilePicture(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("cannot decode image: %w", err)
	}

	size := p.Size
	if size <= 0 {
		size = ProfilePictureSize
	}
	bounds := img.Bounds()
	if bounds.Dx() < size || bounds.Dy() < size {
		// never upscale
		size = min(bounds.Dx(), bounds.Dy())
	}

	square := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
	b := new(bytes.Buffer)
	if err := jpeg.Encode(b, square, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("cannot encode profile picture: %w", err)
	}
	return b.Bytes(), nil
}
