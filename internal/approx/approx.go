package approx

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/yyyoichi/svdimage/internal/channel"
	"github.com/yyyoichi/svdimage/internal/svd"
	"gonum.org/v1/gonum/mat"
)

var ErrRank = errors.New("rank out of range")

// Reconstruct returns the rank-k approximation Σ σ_i·u_i·v_iᵗ over the first k
// singular triplets, 1 <= k <= f.Rank().
func Reconstruct(f *svd.Factors, k int) (*mat.Dense, error) {
	if r := f.Rank(); k < 1 || k > r {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrRank, k, r)
	}
	rows, cols := f.Dims()
	uk := f.U.Slice(0, rows, 0, k)
	vk := f.V.Slice(0, cols, 0, k)

	var us mat.Dense
	us.Mul(uk, mat.NewDiagDense(k, f.S[:k:k]))
	out := mat.NewDense(rows, cols, nil)
	out.Mul(&us, vk.T())
	return out, nil
}

// Residual is the Frobenius norm of A minus its rank-k approximation,
// sqrt(Σ_{i>=k} σ_i²). k = 0 gives ‖A‖.
func Residual(f *svd.Factors, k int) (float64, error) {
	if r := f.Rank(); k < 0 || k > r {
		return 0, fmt.Errorf("%w: %d not in [0, %d]", ErrRank, k, r)
	}
	var sum float64
	// smallest first to limit rounding
	for i := f.Rank() - 1; i >= k; i-- {
		sum += f.S[i] * f.S[i]
	}
	return math.Sqrt(sum), nil
}

// Builder grows the approximations of several same-size channels one rank at
// a time. Each step adds one rank-one term per channel to a scratch accumulator.
type Builder struct {
	factors []*svd.Factors
	acc     []*mat.Dense
	rank    int
	maxRank int
	pool    *Pool
}

// NewBuilder prepares accumulators for factors. A nil pool allocates directly.
func NewBuilder(factors []*svd.Factors, pool *Pool) (*Builder, error) {
	b := &Builder{factors: factors, pool: pool}
	if len(factors) == 0 {
		return b, nil
	}
	rows, cols := factors[0].Dims()
	b.maxRank = factors[0].Rank()
	for i, f := range factors[1:] {
		if r, c := f.Dims(); r != rows || c != cols {
			return nil, fmt.Errorf("%w: channel %d is %dx%d, channel 0 is %dx%d",
				channel.ErrDimension, i+1, c, r, cols, rows)
		}
		b.maxRank = min(b.maxRank, f.Rank())
	}
	b.acc = make([]*mat.Dense, len(factors))
	for i := range b.acc {
		b.acc[i] = pool.Get(rows, cols)
	}
	return b, nil
}

// Rank is the rank of the current accumulators.
func (b *Builder) Rank() int { return b.rank }

// MaxRank is the highest rank Next can reach.
func (b *Builder) MaxRank() int { return b.maxRank }

// Next advances every channel by one rank and returns the accumulators.
// They are overwritten by the following call and invalid after Release.
func (b *Builder) Next() ([]*mat.Dense, error) {
	if b.rank >= b.maxRank || b.acc == nil {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrRank, b.rank+1, b.maxRank)
	}
	k := b.rank
	for i, f := range b.factors {
		b.acc[i].RankOne(b.acc[i], f.S[k], f.U.ColView(k), f.V.ColView(k))
	}
	b.rank++
	return b.acc, nil
}

// Release returns the accumulators to the pool.
func (b *Builder) Release() {
	for _, m := range b.acc {
		b.pool.Put(m)
	}
	b.acc = nil
}

// Build renders the rank 1..n approximations of all channels jointly, where n
// is the common rank capped by maxRank when maxRank > 0. Images are ordered
// by rank and share one pixel slab. A cancelled ctx yields no images.
func Build(ctx context.Context, planes *channel.Planes, factors []*svd.Factors, maxRank int, pool *Pool) ([]image.Image, error) {
	if len(factors) != planes.Mode.Channels() {
		return nil, fmt.Errorf("%w: %d factor sets for mode %s", channel.ErrFormat, len(factors), planes.Mode)
	}
	b, err := NewBuilder(factors, pool)
	if err != nil {
		return nil, err
	}
	defer b.Release()

	n := b.MaxRank()
	if maxRank > 0 && maxRank < n {
		n = maxRank
	}
	if n == 0 {
		return []image.Image{}, nil
	}

	var (
		l      = channel.PixLen(planes.Mode, planes.Width, planes.Height)
		slab   = make([]uint8, n*l)
		images = make([]image.Image, n)
	)
	for k := range n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		acc, err := b.Next()
		if err != nil {
			return nil, err
		}
		pix := slab[k*l : (k+1)*l : (k+1)*l]
		if err := planes.Merge(acc, pix); err != nil {
			return nil, err
		}
		images[k] = channel.NewImage(planes.Mode, planes.Bounds, pix)
	}
	return images, nil
}
