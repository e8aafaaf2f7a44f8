package tensor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/exp/constraints"
)

// Channels is the number of samples per pixel in an ImageBuffer (R, G, B).
const Channels = 3

var (
	ErrInvalidShape  = errors.New("invalid shape")
	ErrInvalidData   = errors.New("data length does not match shape")
	ErrBatchOutRange = errors.New("batch index out of range")
)

// ImageBuffer is a batch of RGB images laid out row-major as [batch, row, column, channel].
// Values are conventionally in [0, 1].
type ImageBuffer struct {
	Batch    int
	Height   int
	Width    int
	Channels int
	Data     []float32
}

// NewImageBuffer wraps data as an ImageBuffer after validating it.
func NewImageBuffer(batch int, height int, width int, data []float32) (*ImageBuffer, error) {
	b := &ImageBuffer{
		Batch:    batch,
		Height:   height,
		Width:    width,
		Channels: Channels,
		Data:     data,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Filled returns a buffer where every sample equals v.
func Filled(batch int, height int, width int, v float32) (*ImageBuffer, error) {
	if batch < 1 || height < 1 || width < 1 {
		return nil, fmt.Errorf("%w: [%d %d %d %d]", ErrInvalidShape, batch, height, width, Channels)
	}
	data := make([]float32, batch*height*width*Channels)
	for i := range data {
		data[i] = v
	}
	return NewImageBuffer(batch, height, width, data)
}

func (b *ImageBuffer) Validate() error {
	if b.Batch < 1 || b.Height < 1 || b.Width < 1 || b.Channels != Channels {
		return fmt.Errorf("%w: [%d %d %d %d]", ErrInvalidShape, b.Batch, b.Height, b.Width, b.Channels)
	}
	if len(b.Data) != b.Batch*b.Height*b.Width*b.Channels {
		return fmt.Errorf("%w: got %d samples for [%d %d %d %d]", ErrInvalidData, len(b.Data), b.Batch, b.Height, b.Width, b.Channels)
	}
	return nil
}

func (b *ImageBuffer) Shape() [4]int {
	return [4]int{b.Batch, b.Height, b.Width, b.Channels}
}

// Offset returns the index of channel 0 of the pixel at (batch, y, x).
func (b *ImageBuffer) Offset(batch int, y int, x int) int {
	return ((batch*b.Height+y)*b.Width + x) * b.Channels
}

// Frame renders one batch element as an 8-bit image. Samples are scaled by 255,
// clipped to [0, 255] and truncated.
func (b *ImageBuffer) Frame(batch int) (*image.NRGBA, error) {
	if batch < 0 || batch >= b.Batch {
		return nil, fmt.Errorf("%w: %d of %d", ErrBatchOutRange, batch, b.Batch)
	}

	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		src := b.Offset(batch, y, 0)
		dst := img.PixOffset(0, y)
		for x := 0; x < b.Width; x++ {
			img.Pix[dst] = toUint8(b.Data[src])
			img.Pix[dst+1] = toUint8(b.Data[src+1])
			img.Pix[dst+2] = toUint8(b.Data[src+2])
			img.Pix[dst+3] = 255
			src += b.Channels
			dst += 4
		}
	}
	return img, nil
}

// FromImage converts a decoded image into a single-element buffer. Alpha is dropped.
func FromImage(img image.Image) (*ImageBuffer, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: empty image %v", ErrInvalidShape, bounds)
	}

	data := make([]float32, height*width*Channels)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			data[i] = float32(c.R) / 255
			data[i+1] = float32(c.G) / 255
			data[i+2] = float32(c.B) / 255
			i += Channels
		}
	}
	return NewImageBuffer(1, height, width, data)
}

// Stack concatenates buffers along the batch axis. All inputs must share height and width.
func Stack(buffers ...*ImageBuffer) (*ImageBuffer, error) {
	if len(buffers) == 0 {
		return nil, fmt.Errorf("%w: nothing to stack", ErrInvalidShape)
	}

	height := buffers[0].Height
	width := buffers[0].Width
	batch := 0
	for _, b := range buffers {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if b.Height != height || b.Width != width {
			return nil, fmt.Errorf("%w: cannot stack %dx%d with %dx%d", ErrInvalidShape, width, height, b.Width, b.Height)
		}
		batch += b.Batch
	}

	data := make([]float32, 0, batch*height*width*Channels)
	for _, b := range buffers {
		data = append(data, b.Data...)
	}
	return NewImageBuffer(batch, height, width, data)
}

// MaskBuffer is a batch of single-channel images laid out as [batch, row, column].
type MaskBuffer struct {
	Batch  int
	Height int
	Width  int
	Data   []float32
}

// NewMask allocates a zero mask.
func NewMask(batch int, height int, width int) *MaskBuffer {
	return &MaskBuffer{
		Batch:  batch,
		Height: height,
		Width:  width,
		Data:   make([]float32, batch*height*width),
	}
}

func (m *MaskBuffer) Shape() [3]int {
	return [3]int{m.Batch, m.Height, m.Width}
}

func (m *MaskBuffer) Offset(batch int, y int, x int) int {
	return (batch*m.Height+y)*m.Width + x
}

func (m *MaskBuffer) At(batch int, y int, x int) float32 {
	return m.Data[m.Offset(batch, y, x)]
}

// Frame renders one batch element as an 8-bit grayscale image.
func (m *MaskBuffer) Frame(batch int) (*image.Gray, error) {
	if batch < 0 || batch >= m.Batch {
		return nil, fmt.Errorf("%w: %d of %d", ErrBatchOutRange, batch, m.Batch)
	}

	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		src := m.Offset(batch, y, 0)
		dst := img.PixOffset(0, y)
		for x := 0; x < m.Width; x++ {
			img.Pix[dst+x] = toUint8(m.Data[src+x])
		}
	}
	return img, nil
}

func toUint8(v float32) uint8 {
	f := float64(v) * 255
	if math.IsNaN(f) {
		return 0
	}
	return uint8(clamp(f, 0, 255))
}

func clamp[T constraints.Ordered](v T, lo T, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
