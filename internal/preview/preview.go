package preview

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"image-compare/internal/tensor"

	"golang.org/x/xerrors"
)

// EncodePNG encodes img as PNG and returns the base64 (standard alphabet) text.
func EncodePNG(img image.Image) (string, error) {
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		return "", xerrors.Errorf("failed to encode png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buffer.Bytes()), nil
}

// Encode renders the first batch element of b and returns it as base64 PNG.
func Encode(b *tensor.ImageBuffer) (string, error) {
	frame, err := b.Frame(0)
	if err != nil {
		return "", xerrors.Errorf("failed to render preview frame: %w", err)
	}
	return EncodePNG(frame)
}

// EncodeMask renders the first batch element of m as a grayscale base64 PNG.
func EncodeMask(m *tensor.MaskBuffer) (string, error) {
	frame, err := m.Frame(0)
	if err != nil {
		return "", xerrors.Errorf("failed to render mask frame: %w", err)
	}
	return EncodePNG(frame)
}

// Resolution formats the buffer's size as "<width> × <height>".
func Resolution(b *tensor.ImageBuffer) string {
	return fmt.Sprintf("%d × %d", b.Width, b.Height)
}
