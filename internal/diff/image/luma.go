package image

import (
	"math"
	"runtime"
	"sync"

	"image-compare/internal/tensor"
)

// ITU-R BT.709 luma coefficients.
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

// LumaDiff computes |luma(baseline) - luma(target)| per pixel.
// A missing target or a target whose shape differs from the baseline yields an all-zero mask.
type LumaDiff struct{}

func NewLumaDiff() *LumaDiff {
	return &LumaDiff{}
}

func Luma(r float32, g float32, b float32) float64 {
	return lumaR*float64(r) + lumaG*float64(g) + lumaB*float64(b)
}

func (l *LumaDiff) Calculate(baseline *tensor.ImageBuffer, target *tensor.ImageBuffer) *DiffResult {
	mask := tensor.NewMask(baseline.Batch, baseline.Height, baseline.Width)

	if target == nil || baseline == target || baseline.Shape() != target.Shape() || len(mask.Data) == 0 {
		return &DiffResult{
			Mask:       mask,
			DiffAmount: 0.0,
		}
	}

	// Rows of every batch element are contiguous, so the work is split over batch*height rows.
	rows := baseline.Batch * baseline.Height

	// Use GOMAXPROCS instead of runtime.NumCPU() to consider cgroup.
	numWorkers := min(runtime.GOMAXPROCS(0), rows)
	rowsPerWorker := rows / numWorkers

	sums := make([]float64, numWorkers)

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for i := 0; i < numWorkers; i++ {
		startRow := i * rowsPerWorker
		endRow := startRow + rowsPerWorker
		if i == numWorkers-1 {
			endRow = rows
		}

		go func(i int, startRow int, endRow int) {
			defer wg.Done()
			sums[i] = l.process(baseline, target, mask, startRow, endRow)
		}(i, startRow, endRow)
	}

	wg.Wait()

	// Summed in worker order so the amount does not depend on scheduling.
	total := 0.0
	for _, s := range sums {
		total += s
	}

	return &DiffResult{
		Mask:       mask,
		DiffAmount: total / float64(len(mask.Data)),
	}
}

func (l *LumaDiff) process(baseline *tensor.ImageBuffer, target *tensor.ImageBuffer, mask *tensor.MaskBuffer, startRow int, endRow int) float64 {
	var local float64

	stride := baseline.Width * baseline.Channels

	for row := startRow; row < endRow; row++ {
		src := row * stride
		dst := row * mask.Width

		for x := 0; x < baseline.Width; x++ {
			bp := baseline.Data[src : src+3 : src+3]
			tp := target.Data[src : src+3 : src+3]

			d := math.Abs(Luma(bp[0], bp[1], bp[2]) - Luma(tp[0], tp[1], tp[2]))
			mask.Data[dst+x] = float32(d)
			local += d

			src += baseline.Channels
		}
	}

	return local
}
