package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"image-compare/internal/compare"
	"image-compare/internal/notify"
	"image-compare/internal/storage"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func writePNG(t *testing.T, dir string, name string, width int, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buffer.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCompare(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := storage.NewFileStorage(ctx, storage.FileConfig{Directory: dir})
	if err != nil {
		t.Fatal(err)
	}

	white := writePNG(t, dir, "white.png", 6, 4, color.White)
	black := writePNG(t, dir, "black.png", 6, 4, color.Black)
	small := writePNG(t, dir, "small.png", 2, 2, color.Black)

	t.Run("WritesMask", func(t *testing.T) {
		var events bytes.Buffer
		output, err := runCompare(ctx, s, notify.NewWriterNotifier(&events), runOptions{uniqueID: "9", blendMode: "screen"}, []string{white, black})
		if err != nil {
			t.Fatal(err)
		}

		if output.DiffAmount < 0.99 {
			t.Errorf("Expected DiffAmount close to 1, got %f", output.DiffAmount)
		}

		data, err := os.ReadFile(output.DiffMaskPath)
		if err != nil {
			t.Fatal(err)
		}
		mask, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatal(err)
		}
		if mask.Bounds().Dx() != 6 || mask.Bounds().Dy() != 4 {
			t.Errorf("Expected 6x4 mask, got %v", mask.Bounds())
		}

		var e struct {
			Event string                 `json:"event"`
			Data  compare.PreviewPayload `json:"data"`
		}
		if err := json.Unmarshal(events.Bytes(), &e); err != nil {
			t.Fatalf("Expected one JSON event line, got %q: %v", events.String(), err)
		}
		if e.Event != compare.PreviewEvent || e.Data.NodeID != "9" {
			t.Errorf("Unexpected event %+v", e)
		}
	})

	t.Run("NoEventWithoutUniqueID", func(t *testing.T) {
		var events bytes.Buffer
		if _, err := runCompare(ctx, s, notify.NewWriterNotifier(&events), runOptions{}, []string{white}); err != nil {
			t.Fatal(err)
		}
		if events.Len() != 0 {
			t.Errorf("Expected no events, got %q", events.String())
		}
	})

	t.Run("MismatchedSizeGivesEmptyMask", func(t *testing.T) {
		output, err := runCompare(ctx, s, notify.Discard, runOptions{}, []string{white, small})
		if err != nil {
			t.Fatal(err)
		}
		if output.DiffAmount != 0 {
			t.Errorf("Expected DiffAmount 0, got %f", output.DiffAmount)
		}
	})

	t.Run("MissingInput", func(t *testing.T) {
		if _, err := runCompare(ctx, s, notify.Discard, runOptions{}, []string{filepath.Join(dir, "absent.png")}); err == nil {
			t.Errorf("Expected error for missing input")
		}
	})

	t.Run("UnknownBlendMode", func(t *testing.T) {
		if _, err := runCompare(ctx, s, notify.Discard, runOptions{blendMode: "overlay"}, []string{white}); err == nil {
			t.Errorf("Expected error for unknown blend mode")
		}
	})
}

func TestDescribeCommand(t *testing.T) {
	t.Run("YAML", func(t *testing.T) {
		var out bytes.Buffer
		root := newRootCommand()
		root.SetOut(&out)
		root.SetArgs([]string{"describe", "--output", "yaml", "--env-file", filepath.Join(t.TempDir(), "none.env")})

		if err := root.Execute(); err != nil {
			t.Fatal(err)
		}

		var got compare.Descriptor
		if err := yaml.Unmarshal(out.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(compare.Describe(), got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		var out bytes.Buffer
		root := newRootCommand()
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs([]string{"describe", "-o", "xml", "--env-file", filepath.Join(t.TempDir(), "none.env")})

		if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "unknown output format") {
			t.Errorf("Expected unknown format error, got %v", err)
		}
	})
}
