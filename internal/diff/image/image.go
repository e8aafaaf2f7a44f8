package image

import "image-compare/internal/tensor"

type DiffResult struct {
	Mask       *tensor.MaskBuffer
	DiffAmount float64
}

type Differ interface {
	Calculate(baseline *tensor.ImageBuffer, target *tensor.ImageBuffer) *DiffResult
}
