package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"time"

	"image-compare/internal/compare"
	"image-compare/internal/config"
	"image-compare/internal/notify"
	"image-compare/internal/storage"
	"image-compare/internal/tensor"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

type runOptions struct {
	uniqueID        string
	blendMode       string
	storageBackend  string
	directory       string
	s3Bucket        string
	callbackURL     string
	callbackTimeout time.Duration
}

type RunOutput struct {
	ImageA       string  `json:"imageA"`
	ImageB       string  `json:"imageB,omitempty"`
	DiffMaskPath string  `json:"diffMaskPath"`
	DiffAmount   float64 `json:"diffAmount"`
}

func newRunCommand() *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run <image_a> [image_b]",
		Short: "Compute the difference mask of image_a against image_b and store it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := newStorage(ctx, opts)
			if err != nil {
				return err
			}

			var notifier notify.Notifier = notify.NewWriterNotifier(cmd.ErrOrStderr())
			if opts.callbackURL != "" {
				notifier = notify.NewHTTPNotifier(opts.callbackURL, opts.callbackTimeout)
			}

			output, err := runCompare(ctx, s, notifier, opts, args)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), output)
		},
	}

	cmd.Flags().StringVar(&opts.uniqueID, "unique-id", "", "Node id; when set a preview event is emitted")
	cmd.Flags().StringVar(&opts.blendMode, "blend-mode", string(compare.BlendNormal), "Blend mode forwarded to the UI")
	cmd.Flags().StringVar(&opts.storageBackend, "storage-backend", config.EnvOrDefaultValue("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	cmd.Flags().StringVar(&opts.directory, "directory", config.EnvOrDefaultValue("DIRECTORY", "/tmp"), "Output directory for the file backend")
	cmd.Flags().StringVar(&opts.s3Bucket, "s3-bucket", config.EnvOrDefaultValue("S3_BUCKET", ""), "Bucket for the s3 backend")
	cmd.Flags().StringVar(&opts.callbackURL, "callback-url", config.EnvOrDefaultValue("CALLBACK_URL", ""), "Post preview events to this URL instead of stderr")
	cmd.Flags().DurationVar(&opts.callbackTimeout, "callback-timeout", config.EnvOrDefaultValue("CALLBACK_TIMEOUT", 1*time.Second), "Timeout for the preview callback")
	return cmd
}

func newStorage(ctx context.Context, opts runOptions) (storage.Storage, error) {
	switch opts.storageBackend {
	case "file":
		return storage.NewFileStorage(ctx, storage.FileConfig{
			Directory: opts.directory,
		})
	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket: opts.s3Bucket,
		})
	default:
		return nil, xerrors.Errorf("unknown storage backend: %s", opts.storageBackend)
	}
}

func runCompare(ctx context.Context, s storage.Storage, notifier notify.Notifier, opts runOptions, args []string) (*RunOutput, error) {
	blendMode, err := compare.ParseBlendMode(opts.blendMode)
	if err != nil {
		return nil, err
	}

	imageA, err := loadImage(ctx, s, args[0])
	if err != nil {
		return nil, xerrors.Errorf("failed to load image_a: %w", err)
	}

	var imageB *tensor.ImageBuffer
	if len(args) > 1 {
		imageB, err = loadImage(ctx, s, args[1])
		if err != nil {
			return nil, xerrors.Errorf("failed to load image_b: %w", err)
		}
	}
	if imageB != nil && imageA.Shape() != imageB.Shape() {
		slog.Warn("image sizes differ, mask will be empty", "image_a", args[0], "image_b", args[1])
	}

	output, err := compare.NewUnit(notifier).Execute(ctx, compare.Input{
		ImageA:    imageA,
		ImageB:    imageB,
		UniqueID:  opts.uniqueID,
		BlendMode: blendMode,
	})
	if err != nil {
		return nil, err
	}

	frame, err := output.DiffMask.Frame(0)
	if err != nil {
		return nil, xerrors.Errorf("failed to render mask: %w", err)
	}
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, frame); err != nil {
		return nil, xerrors.Errorf("failed to encode mask: %w", err)
	}

	maskPath, err := s.Put(ctx, storage.MaskKey(time.Now()), buffer.Bytes())
	if err != nil {
		return nil, xerrors.Errorf("failed to save mask: %w", err)
	}

	result := &RunOutput{
		ImageA:       args[0],
		DiffMaskPath: maskPath,
		DiffAmount:   output.DiffAmount,
	}
	if len(args) > 1 {
		result.ImageB = args[1]
	}
	return result, nil
}

func loadImage(ctx context.Context, s storage.Storage, url string) (*tensor.ImageBuffer, error) {
	data, err := s.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Errorf("failed to decode %s: %w", url, err)
	}
	return tensor.FromImage(img)
}

func writeJSON(w io.Writer, v any) error {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return xerrors.Errorf("failed to encode result: %w", err)
	}
	return nil
}
