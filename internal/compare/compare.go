package compare

import (
	"context"
	"errors"

	diffimage "image-compare/internal/diff/image"
	"image-compare/internal/notify"
	"image-compare/internal/preview"
	"image-compare/internal/tensor"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// PreviewEvent is the event name the UI listens on for comparison previews.
const PreviewEvent = "eses.image_compare_preview"

var ErrImageARequired = errors.New("image_a is required")

type Input struct {
	ImageA *tensor.ImageBuffer
	ImageB *tensor.ImageBuffer
	// UniqueID identifies the calling node. Previews are only sent when it is set.
	UniqueID  string
	BlendMode BlendMode

	// Host metadata, accepted and ignored.
	Prompt       any
	ExtraPNGInfo any
}

type Output struct {
	ImageA     *tensor.ImageBuffer
	DiffMask   *tensor.MaskBuffer
	DiffAmount float64
}

// PreviewPayload is the body of a PreviewEvent. Absent images serialize as null.
type PreviewPayload struct {
	NodeID     string  `json:"node_id"`
	ImageAData *string `json:"image_a_data"`
	ImageBData *string `json:"image_b_data"`
	ImageARes  *string `json:"image_a_res"`
	ImageBRes  *string `json:"image_b_res"`
}

type Unit struct {
	notifier notify.Notifier
	differ   diffimage.Differ
}

func NewUnit(notifier notify.Notifier) *Unit {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Unit{
		notifier: notifier,
		differ:   diffimage.NewLumaDiff(),
	}
}

// Execute passes ImageA through untouched and returns the luma difference mask against ImageB.
// A missing or differently shaped ImageB yields a zero mask. The blend mode is validated but
// does not change the outputs.
func (u *Unit) Execute(ctx context.Context, in Input) (*Output, error) {
	if in.ImageA == nil {
		return nil, ErrImageARequired
	}
	if err := in.ImageA.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid image_a: %w", err)
	}
	if in.ImageB != nil {
		if err := in.ImageB.Validate(); err != nil {
			return nil, xerrors.Errorf("invalid image_b: %w", err)
		}
	}
	if _, err := ParseBlendMode(string(in.BlendMode)); err != nil {
		return nil, err
	}

	if in.UniqueID != "" {
		payload, err := buildPreview(in)
		if err != nil {
			return nil, err
		}
		if err := u.notifier.Send(ctx, PreviewEvent, payload); err != nil {
			return nil, xerrors.Errorf("failed to send preview: %w", err)
		}
	}

	result := u.differ.Calculate(in.ImageA, in.ImageB)

	return &Output{
		ImageA:     in.ImageA,
		DiffMask:   result.Mask,
		DiffAmount: result.DiffAmount,
	}, nil
}

func buildPreview(in Input) (*PreviewPayload, error) {
	payload := &PreviewPayload{
		NodeID: in.UniqueID,
	}

	var eg errgroup.Group

	eg.Go(func() error {
		data, err := preview.Encode(in.ImageA)
		if err != nil {
			return xerrors.Errorf("failed to encode image_a preview: %w", err)
		}
		res := preview.Resolution(in.ImageA)
		payload.ImageAData = &data
		payload.ImageARes = &res
		return nil
	})

	if in.ImageB != nil {
		eg.Go(func() error {
			data, err := preview.Encode(in.ImageB)
			if err != nil {
				return xerrors.Errorf("failed to encode image_b preview: %w", err)
			}
			res := preview.Resolution(in.ImageB)
			payload.ImageBData = &data
			payload.ImageBRes = &res
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return payload, nil
}
