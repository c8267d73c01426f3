package svdimage

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/yyyoichi/svdimage/internal/approx"
	"github.com/yyyoichi/svdimage/internal/channel"
	"github.com/yyyoichi/svdimage/internal/kmeans"
	"github.com/yyyoichi/svdimage/internal/score"
	"github.com/yyyoichi/svdimage/internal/svd"
)

// Report is the difference between an approximation and the loaded original.
type Report = score.Report

// Sequence holds approximations ordered by rank; element 0 is rank 1.
type Sequence []image.Image

// Len returns the number of approximations.
func (s Sequence) Len() int { return len(s) }

// At returns the rank-k approximation, 1 <= rank <= Len.
func (s Sequence) At(rank int) (image.Image, bool) {
	if rank < 1 || rank > len(s) {
		return nil, false
	}
	return s[rank-1], true
}

// SVDImage owns the decomposition of one source image and its approximations.
// It starts unloaded; every successful Load replaces the whole session.
type SVDImage struct {
	mode      Mode
	method    Method
	maxSweeps int
	tol       float64
	maxRank   int
	logger    zerolog.Logger
	pool      *approx.Pool

	load  sync.Mutex
	mu    sync.RWMutex
	state *session
}

type session struct {
	original      image.Image
	width, height int
	factors       []*svd.Factors
	images        Sequence
}

// New creates an unloaded SVDImage.
// For default values, refer to the init function.
func New(opts ...Option) (*SVDImage, error) {
	s := new(SVDImage)
	if err := s.init(opts...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SVDImage) init(opts ...Option) error {
	s.mode = ModeRGB
	s.method = MethodLAPACK
	s.maxSweeps = 60
	s.tol = 1e-12
	s.logger = zerolog.Nop()
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return err
		}
	}
	s.pool = approx.NewPool()
	return nil
}

// Load decomposes src and builds its approximation sequence.
//
// Process:
//  1. Splits the image into one matrix per channel of the configured mode.
//  2. Decomposes every channel concurrently.
//  3. Accumulates the rank-one terms rank by rank and quantizes each rank to an image.
//
// On failure, including cancellation of ctx, the previous session stays in
// place and nothing of the failed load is visible.
func (s *SVDImage) Load(ctx context.Context, src image.Image) error {
	s.load.Lock()
	defer s.load.Unlock()

	start := time.Now()
	next, err := s.build(ctx, src)
	if err != nil {
		s.logger.Warn().Err(err).Msg("load failed, previous image kept")
		return err
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	s.logger.Debug().
		Int("width", next.width).
		Int("height", next.height).
		Int("ranks", len(next.images)).
		Dur("elapsed", time.Since(start)).
		Msg("image loaded")
	return nil
}

func (s *SVDImage) build(ctx context.Context, src image.Image) (*session, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil image", ErrFormat)
	}
	next := &session{
		original: snapshot(src),
		width:    src.Bounds().Dx(),
		height:   src.Bounds().Dy(),
	}
	if next.width*next.height == 0 {
		next.images = Sequence{}
		return next, nil
	}

	planes, err := channel.Split(next.original, s.mode)
	if err != nil {
		return nil, wrap(err)
	}
	s.logger.Debug().
		Str("mode", s.mode.String()).
		Str("method", s.method.String()).
		Int("width", next.width).
		Int("height", next.height).
		Msg("decomposing")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	engine := svd.New(s.method, svd.WithMaxSweeps(s.maxSweeps), svd.WithTolerance(s.tol))
	names := s.mode.Names()
	next.factors = make([]*svd.Factors, len(planes.Data))
	errs := make([]error, len(planes.Data))
	var wg sync.WaitGroup
	wg.Add(len(planes.Data))
	for i := range planes.Data {
		go func(i int) {
			defer wg.Done()
			next.factors[i], errs[i] = engine.DecomposeContext(ctx, planes.Data[i])
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return nil, wrap(fmt.Errorf("channel %s: %w", names[i], err))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	images, err := approx.Build(ctx, planes, next.factors, s.maxRank, s.pool)
	if err != nil {
		return nil, wrap(err)
	}
	next.images = images
	return next, nil
}

// snapshot copies src so later changes by the caller do not leak into the session.
func snapshot(src image.Image) image.Image {
	b := src.Bounds()
	if g, ok := src.(*image.Gray); ok {
		dst := image.NewGray(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			copy(dst.Pix[dst.PixOffset(b.Min.X, y):], g.Pix[g.PixOffset(b.Min.X, y):g.PixOffset(b.Max.X, y)])
		}
		return dst
	}
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

func (s *SVDImage) current() *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Loaded reports whether an image has been loaded successfully.
func (s *SVDImage) Loaded() bool { return s.current() != nil }

// Mode returns the configured channel mode.
func (s *SVDImage) Mode() Mode { return s.mode }

// Width of the loaded original, 0 when unloaded.
func (s *SVDImage) Width() int {
	if st := s.current(); st != nil {
		return st.width
	}
	return 0
}

// Height of the loaded original, 0 when unloaded.
func (s *SVDImage) Height() int {
	if st := s.current(); st != nil {
		return st.height
	}
	return 0
}

// Original returns the loaded source image, nil when unloaded.
func (s *SVDImage) Original() image.Image {
	if st := s.current(); st != nil {
		return st.original
	}
	return nil
}

// ImageList returns the approximations ordered by rank. The slice is a copy;
// the images are shared and must not be modified.
func (s *SVDImage) ImageList() Sequence {
	st := s.current()
	if st == nil {
		return nil
	}
	return append(Sequence{}, st.images...)
}

// Rank returns the length of the approximation sequence.
func (s *SVDImage) Rank() int {
	if st := s.current(); st != nil {
		return len(st.images)
	}
	return 0
}

// Image returns the rank-k approximation.
func (s *SVDImage) Image(rank int) (image.Image, error) {
	st := s.current()
	if st == nil {
		return nil, ErrNotLoaded
	}
	img, ok := st.images.At(rank)
	if !ok {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrRank, rank, len(st.images))
	}
	return img, nil
}

// CompareApproximation measures img against the loaded original. Report.Rank
// is set when img is one of the images of the current sequence.
func (s *SVDImage) CompareApproximation(img image.Image) (Report, error) {
	st := s.current()
	if st == nil {
		return Report{}, ErrNotLoaded
	}
	rep, err := score.Compare(img, st.original, scoreMode(s.mode))
	if err != nil {
		return Report{}, wrap(err)
	}
	rep.Rank = st.rankOf(img)
	return rep, nil
}

// CompareRank measures the rank-k approximation against the loaded original.
func (s *SVDImage) CompareRank(rank int) (Report, error) {
	img, err := s.Image(rank)
	if err != nil {
		return Report{}, err
	}
	return s.CompareApproximation(img)
}

// colour approximations are compared as RGB pixels whatever space they were decomposed in
func scoreMode(m Mode) Mode {
	if m == ModeGray {
		return ModeGray
	}
	return ModeRGB
}

func (st *session) rankOf(img image.Image) int {
	for i, a := range st.images {
		switch a := a.(type) {
		case *image.Gray:
			if b, ok := img.(*image.Gray); ok && a == b {
				return i + 1
			}
		case *image.NRGBA:
			if b, ok := img.(*image.NRGBA); ok && a == b {
				return i + 1
			}
		}
	}
	return 0
}

// SingularValues returns a copy of the singular values of each channel,
// in descending order.
func (s *SVDImage) SingularValues() [][]float64 {
	st := s.current()
	if st == nil {
		return nil
	}
	out := make([][]float64, len(st.factors))
	for i, f := range st.factors {
		out[i] = append([]float64(nil), f.S...)
	}
	return out
}

// Residual returns, per channel, the Frobenius norm of the difference between
// the channel matrix and its rank-k approximation before quantization.
func (s *SVDImage) Residual(rank int) ([]float64, error) {
	st := s.current()
	if st == nil {
		return nil, ErrNotLoaded
	}
	out := make([]float64, len(st.factors))
	for i, f := range st.factors {
		r, err := approx.Residual(f, rank)
		if err != nil {
			return nil, wrap(err)
		}
		out[i] = r
	}
	return out, nil
}

// SuggestedRank separates the dominant singular values from the tail by
// two-cluster k-means on their magnitudes (log scale) and returns the number
// of dominant ones, taking the largest count over all channels. It is 0 for
// an empty sequence and never exceeds Rank.
func (s *SVDImage) SuggestedRank() int {
	st := s.current()
	if st == nil || len(st.images) == 0 {
		return 0
	}
	best := 1
	for _, f := range st.factors {
		if f.Rank() == 0 || f.S[0] == 0 {
			continue
		}
		floor := f.S[0] * 1e-12
		logs := make([]float64, f.Rank())
		for i, v := range f.S {
			logs[i] = math.Log10(math.Max(v, floor))
		}
		n := 0
		for _, high := range kmeans.OneDim(logs) {
			if !high {
				break
			}
			n++
		}
		best = max(best, n)
	}
	return min(best, len(st.images))
}
