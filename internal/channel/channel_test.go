package channel

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: uint8((x + y) * 255 / (w + h)),
				A: 255,
			})
		}
	}
	return img
}

func TestSplit_Gray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	copy(img.Pix, []uint8{1, 2, 3, 4, 5, 6})

	p, err := Split(img, ModeGray)
	require.NoError(t, err)
	require.Len(t, p.Data, 1)
	assert.Equal(t, 3, p.Width)
	assert.Equal(t, 2, p.Height)
	assert.Nil(t, p.Alpha)

	r, c := p.Data[0].Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 6.0, p.Data[0].At(1, 2))
	assert.Equal(t, 2.0, p.Data[0].At(0, 1))
}

func TestSplit_GrayFromColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 90, G: 90, B: 90, A: 255})
	img.Set(1, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	p, err := Split(img, ModeGray)
	require.NoError(t, err)
	assert.Equal(t, 90.0, p.Data[0].At(0, 0))
	assert.Equal(t, 255.0, p.Data[0].At(0, 1))
}

func TestSplit_OffsetBounds(t *testing.T) {
	img := image.NewGray(image.Rect(5, 7, 7, 9))
	img.SetGray(5, 7, color.Gray{Y: 11})
	img.SetGray(6, 8, color.Gray{Y: 22})

	p, err := Split(img, ModeGray)
	require.NoError(t, err)
	assert.Equal(t, 11.0, p.Data[0].At(0, 0))
	assert.Equal(t, 22.0, p.Data[0].At(1, 1))

	out, err := p.Image(p.Data)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), out.Bounds())
	assert.Equal(t, color.Gray{Y: 22}, out.At(6, 8))
}

func TestSplitMerge_RoundTrip(t *testing.T) {
	src := gradient(9, 5)
	for _, mode := range []Mode{ModeRGB, ModeYUV} {
		t.Run(mode.String(), func(t *testing.T) {
			p, err := Split(src, mode)
			require.NoError(t, err)
			require.Len(t, p.Data, 3)
			assert.Nil(t, p.Alpha, "opaque source keeps no alpha")

			out, err := p.Image(p.Data)
			require.NoError(t, err)
			nrgba, ok := out.(*image.NRGBA)
			require.True(t, ok)
			assert.Equal(t, src.Pix, nrgba.Pix)
		})
	}
}

func TestSplitMerge_Alpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 128})
	src.SetNRGBA(1, 0, color.NRGBA{R: 40, G: 50, B: 60, A: 255})

	p, err := Split(src, ModeRGB)
	require.NoError(t, err)
	assert.Equal(t, []uint8{128, 255}, p.Alpha)

	out, err := p.Image(p.Data)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, out.(*image.NRGBA).Pix)
}

func TestMerge_Saturates(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 1))
	p, err := Split(src, ModeGray)
	require.NoError(t, err)

	m := mat.NewDense(1, 3, []float64{-40.2, 127.5, 300.9})
	out, err := p.Image([]*mat.Dense{m})
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 128, 255}, out.(*image.Gray).Pix)
}

func TestSplit_Errors(t *testing.T) {
	t.Run("nil image", func(t *testing.T) {
		_, err := Split(nil, ModeGray)
		assert.ErrorIs(t, err, ErrFormat)
	})
	t.Run("unknown mode", func(t *testing.T) {
		_, err := Split(image.NewGray(image.Rect(0, 0, 1, 1)), Mode(42))
		assert.ErrorIs(t, err, ErrFormat)
	})
	t.Run("zero area", func(t *testing.T) {
		_, err := Split(image.NewGray(image.Rect(0, 0, 0, 4)), ModeGray)
		assert.ErrorIs(t, err, ErrDimension)
	})
}

func TestMerge_Errors(t *testing.T) {
	p, err := Split(gradient(2, 2), ModeRGB)
	require.NoError(t, err)
	pix := make([]uint8, PixLen(ModeRGB, 2, 2))

	err = p.Merge(p.Data[:2], pix)
	assert.ErrorIs(t, err, ErrFormat)

	err = p.Merge([]*mat.Dense{mat.NewDense(1, 2, nil), p.Data[1], p.Data[2]}, pix)
	assert.ErrorIs(t, err, ErrDimension)

	err = p.Merge(p.Data, pix[:3])
	assert.ErrorIs(t, err, ErrDimension)
}

func TestParseMode(t *testing.T) {
	test := []struct {
		in  string
		exp Mode
	}{
		{in: "gray", exp: ModeGray},
		{in: "Grayscale", exp: ModeGray},
		{in: "rgb", exp: ModeRGB},
		{in: " YUV ", exp: ModeYUV},
	}
	for _, tt := range test {
		m, err := ParseMode(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.exp, m)
	}
	_, err := ParseMode("cmyk")
	assert.ErrorIs(t, err, ErrFormat)

	assert.Equal(t, 1, ModeGray.Channels())
	assert.Equal(t, 3, ModeYUV.Channels())
	assert.Equal(t, []string{"R", "G", "B"}, ModeRGB.Names())
}
