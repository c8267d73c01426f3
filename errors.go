package svdimage

import (
	"errors"
	"fmt"

	"github.com/yyyoichi/svdimage/internal/approx"
	"github.com/yyyoichi/svdimage/internal/channel"
	"github.com/yyyoichi/svdimage/internal/score"
	"github.com/yyyoichi/svdimage/internal/svd"
)

var (
	// ErrFormat reports an unsupported channel layout or a nil image.
	ErrFormat = errors.New("unsupported image format")
	// ErrDimension reports degenerate or inconsistent matrix dimensions.
	ErrDimension = errors.New("invalid dimensions")
	// ErrConvergence reports a decomposition that did not converge within its budget.
	ErrConvergence = errors.New("decomposition did not converge")
	// ErrDimensionMismatch reports a comparison between differently sized images.
	ErrDimensionMismatch = errors.New("image dimensions do not match")
	// ErrRank reports a rank outside the approximation sequence.
	ErrRank = errors.New("rank out of range")
	// ErrNotLoaded reports a query on an SVDImage with no successful Load.
	ErrNotLoaded = errors.New("no image loaded")
	// ErrMethod reports an unknown decomposition method.
	ErrMethod = errors.New("unknown decomposition method")
)

var errorMap = []struct{ inner, outer error }{
	{inner: channel.ErrFormat, outer: ErrFormat},
	{inner: channel.ErrDimension, outer: ErrDimension},
	{inner: svd.ErrDimension, outer: ErrDimension},
	{inner: svd.ErrConvergence, outer: ErrConvergence},
	{inner: svd.ErrMethod, outer: ErrMethod},
	{inner: score.ErrDimensionMismatch, outer: ErrDimensionMismatch},
	{inner: approx.ErrRank, outer: ErrRank},
}

// wrap tags errors from the internal packages with the exported sentinel.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	for _, m := range errorMap {
		if errors.Is(err, m.inner) {
			return fmt.Errorf("%w:%w", m.outer, err)
		}
	}
	return err
}
