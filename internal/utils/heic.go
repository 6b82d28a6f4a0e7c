package utils

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/adrium/goheif"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	"github.com/rwcarlsen/goexif/exif"
)

// Checks if the MIME type or file name indicates a HEIC or HEIF image.
func IsHeifLike(mimeOrName string) bool {
	t := strings.ToLower(mimeOrName)
	if ext := filepath.Ext(t); ext == ".heic" || ext == ".heif" {
		return true
	}
	return strings.Contains(t, "image/heic") || strings.Contains(t, "image/heif")
}

// HeicConfig returns the dimensions of a HEIC/HEIF image without decoding pixels.
func HeicConfig(r io.Reader) (image.Config, error) {
	cfg, err := goheif.DecodeConfig(r)
	if err != nil {
		return image.Config{}, fmt.Errorf("failed to read HEIC header: %w", err)
	}
	return cfg, nil
}

// DecodeHeic decodes HEIC/HEIF data with its EXIF orientation applied.
func DecodeHeic(input []byte) (image.Image, error) {
	img, err := goheif.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("failed to decode HEIC: %w", err)
	}
	return applyOrientation(img, input), nil
}

// Reads EXIF orientation and applies correct transformations to the image
func applyOrientation(img image.Image, input []byte) image.Image {
	x, err := exif.Decode(bytes.NewReader(input))
	if err != nil {
		log.Debug().Err(err).Str("component", "heic").Msg("No EXIF data found")
		return img
	}

	orientTag, err := x.Get(exif.Orientation)
	if err != nil {
		return img
	}

	orient, err := orientTag.Int(0)
	if err != nil {
		log.Debug().Err(err).Str("component", "heic").Msg("Failed to read orientation value")
		return img
	}

	// EXIF orientation values: 1=normal, 2=flip-h, 3=180, 4=flip-v, 5=transpose, 6=270, 7=transverse, 8=90
	switch orient {
	case 1:
		return img
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		log.Debug().Int("orientation", orient).Str("component", "heic").Msg("Unknown orientation value")
		return img
	}
}
