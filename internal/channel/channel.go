package channel

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/yyyoichi/svdimage/internal/yuv"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrFormat    = errors.New("unsupported channel format")
	ErrDimension = errors.New("invalid image dimensions")
)

// Mode selects how an image is split into channel matrices.
type Mode int

const (
	// ModeGray decomposes a single luminance channel. Alpha is discarded.
	ModeGray Mode = iota
	// ModeRGB decomposes red, green and blue independently.
	ModeRGB
	// ModeYUV decomposes Y, U and V independently and converts back to RGB.
	ModeYUV
)

var modeNames = map[Mode][]string{
	ModeGray: {"Y"},
	ModeRGB:  {"R", "G", "B"},
	ModeYUV:  {"Y", "U", "V"},
}

// ParseMode accepts "gray", "rgb" or "yuv" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gray", "grey", "grayscale":
		return ModeGray, nil
	case "rgb", "color", "colour":
		return ModeRGB, nil
	case "yuv":
		return ModeYUV, nil
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrFormat, s)
}

func (m Mode) String() string {
	switch m {
	case ModeGray:
		return "gray"
	case ModeRGB:
		return "rgb"
	case ModeYUV:
		return "yuv"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Channels returns the number of matrices the mode produces, or 0 for an unknown mode.
func (m Mode) Channels() int {
	return len(modeNames[m])
}

// Names returns the channel labels in plane order.
func (m Mode) Names() []string {
	return append([]string(nil), modeNames[m]...)
}

// PixLen is the byte length of one pixel buffer holding a w x h image of the mode.
func PixLen(m Mode, w, h int) int {
	if m == ModeGray {
		return w * h
	}
	return 4 * w * h
}

// NewImage wraps pix as an image of the mode. pix must hold PixLen bytes.
func NewImage(m Mode, r image.Rectangle, pix []uint8) image.Image {
	if m == ModeGray {
		return &image.Gray{Pix: pix, Stride: r.Dx(), Rect: r}
	}
	return &image.NRGBA{Pix: pix, Stride: 4 * r.Dx(), Rect: r}
}

// Planes holds the channel matrices of one image. Each matrix is
// Height rows by Width columns.
type Planes struct {
	Mode          Mode
	Bounds        image.Rectangle
	Width, Height int
	Data          []*mat.Dense

	// 8-bit straight alpha, nil when the source is fully opaque or Mode is ModeGray.
	Alpha []uint8
}

// Split converts src into one matrix per channel of mode.
func Split(src image.Image, mode Mode) (*Planes, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil image", ErrFormat)
	}
	n := mode.Channels()
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrFormat, mode)
	}
	p := &Planes{Mode: mode, Bounds: src.Bounds()}
	p.Width, p.Height = p.Bounds.Dx(), p.Bounds.Dy()
	area := p.Width * p.Height
	if area == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDimension, p.Width, p.Height)
	}

	// row-major backing slices, handed to mat.NewDense without copying
	data := make([][]float64, n)
	for i := range data {
		data[i] = make([]float64, area)
	}

	if mode == ModeGray {
		splitGray(src, p.Bounds, data[0])
	} else {
		p.Alpha = splitColor(src, p.Bounds, data[0], data[1], data[2])
		if mode == ModeYUV {
			yuv.FromRGBBatch(data[0], data[1], data[2], data[0], data[1], data[2])
		}
	}

	p.Data = make([]*mat.Dense, n)
	for i := range data {
		p.Data[i] = mat.NewDense(p.Height, p.Width, data[i])
	}
	return p, nil
}

func splitGray(src image.Image, b image.Rectangle, y []float64) {
	if g, ok := src.(*image.Gray); ok {
		idx := 0
		for row := b.Min.Y; row < b.Max.Y; row++ {
			off := g.PixOffset(b.Min.X, row)
			for _, v := range g.Pix[off : off+b.Dx() : off+b.Dx()] {
				y[idx] = float64(v)
				idx++
			}
		}
		return
	}
	idx := 0
	for row := b.Min.Y; row < b.Max.Y; row++ {
		for col := b.Min.X; col < b.Max.X; col++ {
			y[idx] = float64(color.GrayModel.Convert(src.At(col, row)).(color.Gray).Y)
			idx++
		}
	}
}

func splitColor(src image.Image, b image.Rectangle, r, g, bl []float64) []uint8 {
	alpha := make([]uint8, len(r))
	opaque := true
	idx := 0
	for row := b.Min.Y; row < b.Max.Y; row++ {
		for col := b.Min.X; col < b.Max.X; col++ {
			c := color.NRGBAModel.Convert(src.At(col, row)).(color.NRGBA)
			r[idx], g[idx], bl[idx] = float64(c.R), float64(c.G), float64(c.B)
			alpha[idx] = c.A
			if c.A != 0xff {
				opaque = false
			}
			idx++
		}
	}
	if opaque {
		return nil
	}
	return alpha
}

// Merge quantizes planes into pix, laid out as NewImage expects for p.Mode.
// Values are rounded and saturated into [0, 255].
func (p *Planes) Merge(planes []*mat.Dense, pix []uint8) error {
	if len(planes) != p.Mode.Channels() || len(planes) == 0 {
		return fmt.Errorf("%w: %d planes for mode %s", ErrFormat, len(planes), p.Mode)
	}
	for _, m := range planes {
		if r, c := m.Dims(); r != p.Height || c != p.Width {
			return fmt.Errorf("%w: plane %dx%d, image %dx%d", ErrDimension, c, r, p.Width, p.Height)
		}
	}
	if need := PixLen(p.Mode, p.Width, p.Height); len(pix) < need {
		return fmt.Errorf("%w: pixel buffer %d < %d", ErrDimension, len(pix), need)
	}

	if p.Mode == ModeGray {
		raw := planes[0].RawMatrix()
		for y := range p.Height {
			row := raw.Data[y*raw.Stride : y*raw.Stride+p.Width : y*raw.Stride+p.Width]
			out := pix[y*p.Width : (y+1)*p.Width : (y+1)*p.Width]
			for x, v := range row {
				out[x] = yuv.Clip8(v)
			}
		}
		return nil
	}

	r0, r1, r2 := planes[0].RawMatrix(), planes[1].RawMatrix(), planes[2].RawMatrix()
	idx := 0
	for y := range p.Height {
		for x := range p.Width {
			c0, c1, c2 := r0.Data[y*r0.Stride+x], r1.Data[y*r1.Stride+x], r2.Data[y*r2.Stride+x]
			if p.Mode == ModeYUV {
				c0, c1, c2 = yuv.ToRGB(c0, c1, c2)
			}
			o := idx * 4
			pix[o+0] = yuv.Clip8(c0)
			pix[o+1] = yuv.Clip8(c1)
			pix[o+2] = yuv.Clip8(c2)
			if p.Alpha == nil {
				pix[o+3] = 0xff
			} else {
				pix[o+3] = p.Alpha[idx]
			}
			idx++
		}
	}
	return nil
}

// Image merges planes into a newly allocated image with the source bounds.
func (p *Planes) Image(planes []*mat.Dense) (image.Image, error) {
	pix := make([]uint8, PixLen(p.Mode, p.Width, p.Height))
	if err := p.Merge(planes, pix); err != nil {
		return nil, err
	}
	return NewImage(p.Mode, p.Bounds, pix), nil
}
