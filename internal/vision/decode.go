package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	MaxImageBytes  = 10 << 20 // 10 MiB
	MinImageWidth  = 50
	MinImageHeight = 50
)

// DecodeFile validates and decodes the image at path. The size limit is checked before any
// byte is read so oversized files are never decoded.
func DecodeFile(path string) (image.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrResourceUnavailable, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrResourceUnavailable, path)
	}
	if info.Size() > MaxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrResourceTooLarge, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}

	img, err := decodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	b := img.Bounds()
	if b.Dx() < MinImageWidth || b.Dy() < MinImageHeight {
		return nil, fmt.Errorf("%w: %dx%d", ErrResolutionTooLow, b.Dx(), b.Dy())
	}
	return img, nil
}

// decodeBytes hands WebP payloads to libwebp, which also reads the extended VP8X variants,
// and everything else to imaging. Each path falls back to the other before giving up.
func decodeBytes(data []byte) (image.Image, error) {
	if isWebP(data) {
		if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
			return img, nil
		}
		return imaging.Decode(bytes.NewReader(data))
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	if wimg, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return wimg, nil
	}
	return nil, err
}

// isWebP checks for the RIFF....WEBP container header.
func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
