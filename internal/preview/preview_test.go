package preview

import (
	"bytes"
	"encoding/base64"
	"image/color"
	"image/png"
	"testing"

	"image-compare/internal/tensor"
)

func TestEncode(t *testing.T) {
	b, err := tensor.NewImageBuffer(2, 2, 3, []float32{
		1, 0, 0, 0, 1, 0, 0, 0, 1,
		1, 1, 1, 0, 0, 0, 0.5, 0.5, 0.5,
		// second batch element is never encoded
		0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0,
	})
	if err != nil {
		t.Fatal(err)
	}

	encoded, err := Encode(b)
	if err != nil {
		t.Fatal(err)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("Expected valid base64, got %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Expected valid png, got %v", err)
	}

	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Fatalf("Expected 3x2 image, got %v", img.Bounds())
	}

	want := map[[2]int]color.NRGBA{
		{0, 0}: {R: 255, A: 255},
		{1, 0}: {G: 255, A: 255},
		{2, 0}: {B: 255, A: 255},
		{0, 1}: {R: 255, G: 255, B: 255, A: 255},
		{1, 1}: {A: 255},
		{2, 1}: {R: 127, G: 127, B: 127, A: 255},
	}
	for p, c := range want {
		got := color.NRGBAModel.Convert(img.At(p[0], p[1])).(color.NRGBA)
		if got != c {
			t.Errorf("pixel %v: want %v, got %v", p, c, got)
		}
	}
}

func TestEncodeMask(t *testing.T) {
	m := tensor.NewMask(1, 4, 5)
	m.Data[0] = 1

	encoded, err := EncodeMask(m)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := base64.StdEncoding.DecodeString(encoded)
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 5 || img.Bounds().Dy() != 4 {
		t.Fatalf("Expected 5x4 image, got %v", img.Bounds())
	}
	if got := color.GrayModel.Convert(img.At(0, 0)).(color.Gray); got.Y != 255 {
		t.Errorf("Expected white first pixel, got %v", got)
	}
}

func TestResolution(t *testing.T) {
	b, _ := tensor.Filled(1, 1080, 1920, 0)
	if got := Resolution(b); got != "1920 × 1080" {
		t.Errorf("Expected %q, got %q", "1920 × 1080", got)
	}
}
