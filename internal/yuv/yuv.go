package yuv

import "math"

// https://github.com/opencv/opencv/blob/0e88b49a53842f0f7cdc4c61b98c283be7e5057c/modules/imgproc/src/opencl/color_yuv.cl#L148-L234

const delta = .5
const (
	yr = 0.299
	yg = 0.587
	yb = 0.114
	uf = 0.492
	vf = 0.877
)

// FromRGBBatch converts 8-bit scaled r, g, b planes into y, u, v planes.
// The output slices may alias the input slices.
func FromRGBBatch(r, g, b, y, u, v []float64) {
	for i := range r {
		rv, gv, bv := r[i], g[i], b[i]
		yVal := yr*rv + yg*gv + yb*bv
		y[i] = yVal
		u[i] = uf*(bv-yVal) + delta
		v[i] = vf*(rv-yVal) + delta
	}
}

// ToRGB converts a single y, u, v sample back to 8-bit scaled r, g, b.
// It is the exact inverse of FromRGBBatch; the result is not clamped.
func ToRGB(y, u, v float64) (r, g, b float64) {
	r = y + (v-delta)/vf
	b = y + (u-delta)/uf
	g = (y - yr*r - yb*b) / yg
	return
}

// Clip8 rounds to the nearest integer and saturates into [0, 255].
func Clip8(x float64) uint8 {
	if math.IsNaN(x) || x <= 0 {
		return 0
	}
	if x >= 255 {
		return 255
	}
	return uint8(math.Round(x))
}
