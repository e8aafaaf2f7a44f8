package routes

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"image-compare/internal/compare"
	"image-compare/internal/preview"
	"image-compare/internal/storage"
	"image-compare/internal/tensor"

	"golang.org/x/xerrors"
)

const maxUploadMemory = 32 << 20

type CompareResponse struct {
	ImageA      string  `json:"imageA"`
	DiffMask    string  `json:"diffMask"`
	DiffAmount  float64 `json:"diffAmount"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Batch       int     `json:"batch"`
	BlendMode   string  `json:"blendMode"`
	DiffMaskURL string  `json:"diffMaskURL,omitempty"`
}

// Compare runs the comparison on multipart uploads. image_a is required, image_b optional;
// repeating a field stacks the files into a batch. storageClient may be nil.
func Compare(unit *compare.Unit, storageClient storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		blendMode, err := compare.ParseBlendMode(r.FormValue("blend_mode"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		imageA, err := readBuffer(r.MultipartForm.File["image_a"])
		if err != nil {
			slog.Debug(fmt.Sprintf("failed to read image_a: %s", err))
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if imageA == nil {
			http.Error(w, "image_a is required", http.StatusBadRequest)
			return
		}

		imageB, err := readBuffer(r.MultipartForm.File["image_b"])
		if err != nil {
			slog.Debug(fmt.Sprintf("failed to read image_b: %s", err))
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		output, err := unit.Execute(r.Context(), compare.Input{
			ImageA:    imageA,
			ImageB:    imageB,
			UniqueID:  r.FormValue("unique_id"),
			BlendMode: blendMode,
		})
		if err != nil {
			slog.Error(fmt.Sprintf("failed to compare images: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		response, err := buildResponse(r.Context(), output, blendMode, storageClient)
		if err != nil {
			slog.Error(fmt.Sprintf("failed to build response: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		b, err := json.Marshal(response)
		if err != nil {
			slog.Error(fmt.Sprintf("failed to marshal json: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}

func buildResponse(ctx context.Context, output *compare.Output, blendMode compare.BlendMode, storageClient storage.Storage) (*CompareResponse, error) {
	imageA, err := preview.Encode(output.ImageA)
	if err != nil {
		return nil, err
	}

	maskFrame, err := output.DiffMask.Frame(0)
	if err != nil {
		return nil, xerrors.Errorf("failed to render mask: %w", err)
	}
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, maskFrame); err != nil {
		return nil, xerrors.Errorf("failed to encode mask: %w", err)
	}
	response := &CompareResponse{
		ImageA:     imageA,
		DiffMask:   base64.StdEncoding.EncodeToString(buffer.Bytes()),
		DiffAmount: output.DiffAmount,
		Width:      output.ImageA.Width,
		Height:     output.ImageA.Height,
		Batch:      output.ImageA.Batch,
		BlendMode:  string(blendMode),
	}

	if storageClient != nil {
		url, err := storageClient.Put(ctx, storage.MaskKey(time.Now()), buffer.Bytes())
		if err != nil {
			return nil, xerrors.Errorf("failed to store mask: %w", err)
		}
		response.DiffMaskURL = url
	}

	return response, nil
}

// readBuffer decodes every uploaded file and stacks them. No files yields nil.
func readBuffer(headers []*multipart.FileHeader) (*tensor.ImageBuffer, error) {
	if len(headers) == 0 {
		return nil, nil
	}

	buffers := make([]*tensor.ImageBuffer, 0, len(headers))
	for _, h := range headers {
		b, err := readFile(h)
		if err != nil {
			return nil, xerrors.Errorf("failed to read %s: %w", h.Filename, err)
		}
		buffers = append(buffers, b)
	}

	b, err := tensor.Stack(buffers...)
	if errors.Is(err, tensor.ErrInvalidShape) {
		return nil, xerrors.Errorf("uploaded frames differ in size: %w", err)
	}
	return b, err
}

func readFile(h *multipart.FileHeader) (*tensor.ImageBuffer, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return tensor.FromImage(img)
}
