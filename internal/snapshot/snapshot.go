// Package snapshot validates and normalizes incoming canvas snapshots before
// they are embedded in vendor requests.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ErrInvalidImage marks snapshot bytes that do not decode as an image.
var ErrInvalidImage = errors.New("snapshot: invalid image data")

// MaxDimension is the default longest-side cap. Vendor APIs reject or degrade
// on oversized inline images, so anything larger gets downscaled.
const MaxDimension = 2048

// Normalize validates data as an image and returns PNG bytes whose longest
// side is at most maxDim. PNG input already within bounds passes through
// unchanged.
func Normalize(data []byte, maxDim int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	if format == "png" && bounds.Dx() <= maxDim && bounds.Dy() <= maxDim {
		return data, nil
	}

	if bounds.Dx() > maxDim || bounds.Dy() > maxDim {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}
