package catalogsvc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"

	"github.com/mkrupp/library/internal/domain"
)

// ErrUnknownInterpolator is returned when an unsupported interpolation method is configured.
var ErrUnknownInterpolator = errors.New("unknown interpolator")

//nolint:gochecknoglobals
var interpolMap = map[string]draw.Interpolator{
	"nearestneighbor": draw.NearestNeighbor,
	"catmullrom":      draw.CatmullRom,
	"bilinear":        draw.BiLinear,
	"approxbilinear":  draw.ApproxBiLinear,
}

func getInterpolatorByName(name string) (draw.Interpolator, error) {
	interpol, ok := interpolMap[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterpolator, name)
	}

	return interpol, nil
}

// scaleImage resizes original to width, keeping the aspect ratio.
func scaleImage(original image.Image, width int, interpol draw.Interpolator) image.Image {
	ratio := float64(width) / float64(original.Bounds().Dx())
	height := max(1, int(float64(original.Bounds().Dy())*ratio))

	bitmap := image.NewRGBA(image.Rect(0, 0, width, height))
	interpol.Scale(bitmap, bitmap.Bounds(), original, original.Bounds(), draw.Over, nil)

	return bitmap
}

// decodeImage decodes data of the given type. Undecodable input yields
// domain.ErrImageCorrupt.
func decodeImage(data []byte, mimeType string) (image.Image, error) {
	decoder, err := getDecoderByType(mimeType)
	if err != nil {
		return nil, err
	}

	img, err := decoder(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Join(domain.ErrImageCorrupt, err)
	}

	return img, nil
}

func encodeImage(bitmap image.Image, mimeType string) ([]byte, error) {
	encoder, err := getEncoderByType(mimeType)
	if err != nil {
		return nil, fmt.Errorf("get encoder: %w", err)
	}

	var buf bytes.Buffer
	if err := encoder(&buf, bitmap); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	return buf.Bytes(), nil
}
