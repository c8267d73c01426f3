package svdimage

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/yyyoichi/svdimage/internal/channel"
	"github.com/yyyoichi/svdimage/internal/svd"
)

type (
	// Mode selects how colour is decomposed.
	Mode = channel.Mode
	// Method selects the decomposition algorithm.
	Method = svd.Method
)

const (
	// ModeGray decomposes one luminance channel; approximations are *image.Gray.
	ModeGray = channel.ModeGray
	// ModeRGB decomposes red, green and blue independently; approximations are *image.NRGBA.
	ModeRGB = channel.ModeRGB
	// ModeYUV decomposes Y, U and V independently; approximations are *image.NRGBA.
	ModeYUV = channel.ModeYUV

	// MethodLAPACK uses gonum's Golub-Kahan SVD. It is the default.
	MethodLAPACK = svd.MethodLAPACK
	// MethodJacobi uses one-sided Jacobi rotations bounded by WithMaxSweeps.
	MethodJacobi = svd.MethodJacobi
	// MethodGram diagonalizes the Gram matrix. Faster on elongated images, less precise.
	MethodGram = svd.MethodGram
)

// ParseMode accepts "gray", "rgb" or "yuv".
func ParseMode(s string) (Mode, error) {
	m, err := channel.ParseMode(s)
	return m, wrap(err)
}

// ParseMethod accepts "lapack", "jacobi" or "gram".
func ParseMethod(s string) (Method, error) {
	m, err := svd.ParseMethod(s)
	return m, wrap(err)
}

type Option func(*SVDImage) error

// WithMode chooses grayscale or per-channel colour decomposition.
// The default is ModeRGB.
func WithMode(m Mode) Option {
	return func(s *SVDImage) error {
		if m.Channels() == 0 {
			return fmt.Errorf("%w: %s", ErrFormat, m)
		}
		s.mode = m
		return nil
	}
}

// WithMethod chooses the decomposition algorithm. The default is MethodLAPACK.
func WithMethod(m Method) Option {
	return func(s *SVDImage) error {
		switch m {
		case MethodLAPACK, MethodJacobi, MethodGram:
			s.method = m
			return nil
		}
		return fmt.Errorf("%w: %s", ErrMethod, m)
	}
}

// WithMaxSweeps bounds the Jacobi iteration. Exceeding it fails Load with ErrConvergence.
func WithMaxSweeps(n int) Option {
	return func(s *SVDImage) error {
		if n < 1 {
			return fmt.Errorf("max sweeps must be positive, got %d", n)
		}
		s.maxSweeps = n
		return nil
	}
}

// WithTolerance sets the relative orthogonality threshold of the Jacobi method.
func WithTolerance(tol float64) Option {
	return func(s *SVDImage) error {
		if tol <= 0 || tol >= 1 {
			return fmt.Errorf("tolerance must be in (0, 1), got %g", tol)
		}
		s.tol = tol
		return nil
	}
}

// WithMaxRank caps the length of the approximation sequence. Zero keeps every
// rank up to min(width, height).
//
// Every approximation is a full image, so an uncapped sequence of a w×h colour
// image holds min(w, h)·4·w·h bytes.
func WithMaxRank(n int) Option {
	return func(s *SVDImage) error {
		if n < 0 {
			return fmt.Errorf("max rank must not be negative, got %d", n)
		}
		s.maxRank = n
		return nil
	}
}

// WithLogger attaches a logger. Load stages are logged at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(s *SVDImage) error {
		s.logger = l
		return nil
	}
}
