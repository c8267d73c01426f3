package svd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrDimension   = errors.New("invalid matrix dimensions")
	ErrConvergence = errors.New("decomposition did not converge")
	ErrMethod      = errors.New("unknown decomposition method")
)

// Method selects the decomposition algorithm.
type Method int

const (
	// MethodLAPACK uses Householder bidiagonalization followed by implicit QR
	// iteration (gonum mat.SVD). It is the default.
	MethodLAPACK Method = iota
	// MethodJacobi uses one-sided Jacobi rotations with a bounded sweep budget.
	MethodJacobi
	// MethodGram diagonalizes the smaller of AᵗA and AAᵗ. Faster for very
	// elongated matrices but squares the condition number.
	MethodGram
)

func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lapack", "golub-kahan":
		return MethodLAPACK, nil
	case "jacobi":
		return MethodJacobi, nil
	case "gram", "eigen":
		return MethodGram, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrMethod, s)
}

func (m Method) String() string {
	switch m {
	case MethodLAPACK:
		return "lapack"
	case MethodJacobi:
		return "jacobi"
	case MethodGram:
		return "gram"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// Factors is the economy-size decomposition A = U·diag(S)·Vᵗ.
// U is rows×r, V is cols×r and r = min(rows, cols).
type Factors struct {
	U *mat.Dense
	S []float64
	V *mat.Dense
}

// Rank returns r, the number of singular triplets held.
func (f *Factors) Rank() int { return len(f.S) }

// Dims returns the shape of the decomposed matrix.
func (f *Factors) Dims() (rows, cols int) {
	rows, _ = f.U.Dims()
	cols, _ = f.V.Dims()
	return
}

const (
	defaultMaxSweeps = 60
	defaultTolerance = 1e-12
)

type Engine struct {
	method    Method
	maxSweeps int
	tol       float64
}

type Option func(*Engine)

// WithMaxSweeps bounds the number of Jacobi sweeps before ErrConvergence.
func WithMaxSweeps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSweeps = n
		}
	}
}

// WithTolerance sets the relative orthogonality threshold of the Jacobi method.
func WithTolerance(tol float64) Option {
	return func(e *Engine) {
		if tol > 0 {
			e.tol = tol
		}
	}
}

func New(method Method, opts ...Option) *Engine {
	e := &Engine{
		method:    method,
		maxSweeps: defaultMaxSweeps,
		tol:       defaultTolerance,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Method() Method { return e.method }

// Decompose computes the economy-size SVD of a. Singular values are sorted
// descending and every pair (u_i, v_i) is signed so that the largest
// magnitude entry of u_i is positive.
func (e *Engine) Decompose(a mat.Matrix) (*Factors, error) {
	return e.DecomposeContext(context.Background(), a)
}

// DecomposeContext is Decompose with cancellation. ctx is checked before
// starting and between Jacobi sweeps; a running LAPACK or eigen call is not
// interrupted.
func (e *Engine) DecomposeContext(ctx context.Context, a mat.Matrix) (*Factors, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, cols := a.Dims()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDimension, rows, cols)
	}
	if !finite(a) {
		return nil, fmt.Errorf("%w: non-finite value", ErrDimension)
	}

	var (
		f   *Factors
		err error
	)
	switch e.method {
	case MethodLAPACK:
		f, err = golubKahan(a)
	case MethodJacobi, MethodGram:
		// both work on the tall orientation and swap factors back
		tall, transposed := a, rows < cols
		if transposed {
			tall = a.T()
		}
		if e.method == MethodJacobi {
			f, err = e.jacobi(ctx, tall)
		} else {
			f, err = gram(tall)
		}
		if err == nil && transposed {
			f.U, f.V = f.V, f.U
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrMethod, e.method)
	}
	if err != nil {
		return nil, err
	}
	canonicalSigns(f)
	return f, nil
}

func golubKahan(a mat.Matrix) (*Factors, error) {
	var result mat.SVD
	if ok := result.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: golub-kahan iteration failed", ErrConvergence)
	}
	f := &Factors{
		S: result.Values(nil),
		U: new(mat.Dense),
		V: new(mat.Dense),
	}
	result.UTo(f.U)
	result.VTo(f.V)
	return f, nil
}

// jacobi runs one-sided (Hestenes) Jacobi on a tall m×n matrix, m >= n.
func (e *Engine) jacobi(ctx context.Context, a mat.Matrix) (*Factors, error) {
	m, n := a.Dims()

	// column-major working copies
	w := make([][]float64, n)
	v := make([][]float64, n)
	for j := range n {
		w[j] = make([]float64, m)
		mat.Col(w[j], j, a)
		v[j] = make([]float64, n)
		v[j][j] = 1
	}

	sweep := 0
	for ; sweep < e.maxSweeps; sweep++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("jacobi sweep %d: %w", sweep, err)
		}
		rotated := false
		for p := 0; p < n-1; p++ {
			for q := p + 1; q < n; q++ {
				alpha, beta, gamma, ok := e.orthogonalPair(w[p], w[q])
				if ok {
					continue
				}
				rotated = true
				zeta := (beta - alpha) / (2 * gamma)
				t := 1 / (math.Abs(zeta) + math.Sqrt(1+zeta*zeta))
				if zeta < 0 {
					t = -t
				}
				c := 1 / math.Sqrt(1+t*t)
				s := c * t
				rotate(w[p], w[q], c, s)
				rotate(v[p], v[q], c, s)
			}
		}
		if !rotated {
			break
		}
	}
	// the last sweep allowed may itself have finished the job
	if sweep == e.maxSweeps && !e.orthogonal(w) {
		return nil, fmt.Errorf("%w: jacobi not orthogonal after %d sweeps", ErrConvergence, sweep)
	}

	s := make([]float64, n)
	for j := range n {
		s[j] = floats.Norm(w[j], 2)
	}
	order := descending(s)

	f := &Factors{
		S: make([]float64, n),
		U: mat.NewDense(m, n, nil),
		V: mat.NewDense(n, n, nil),
	}
	for dst, src := range order {
		f.S[dst] = s[src]
		f.V.SetCol(dst, v[src])
		if s[src] > 0 {
			floats.Scale(1/s[src], w[src])
		}
		f.U.SetCol(dst, w[src])
	}
	complete(f, noiseFloor(f.S, m, n, eps))
	return f, nil
}

// orthogonalPair reports whether x and y are orthogonal within the tolerance,
// along with their squared norms and inner product.
func (e *Engine) orthogonalPair(x, y []float64) (alpha, beta, gamma float64, ok bool) {
	alpha = floats.Dot(x, x)
	beta = floats.Dot(y, y)
	gamma = floats.Dot(x, y)
	ok = gamma == 0 || math.Abs(gamma) <= e.tol*math.Sqrt(alpha*beta)
	return
}

func (e *Engine) orthogonal(w [][]float64) bool {
	for p := 0; p < len(w)-1; p++ {
		for q := p + 1; q < len(w); q++ {
			if _, _, _, ok := e.orthogonalPair(w[p], w[q]); !ok {
				return false
			}
		}
	}
	return true
}

func rotate(x, y []float64, c, s float64) {
	for i := range x {
		xi, yi := x[i], y[i]
		x[i] = c*xi - s*yi
		y[i] = s*xi + c*yi
	}
}

// gram diagonalizes AᵗA of a tall m×n matrix, m >= n.
func gram(a mat.Matrix) (*Factors, error) {
	m, n := a.Dims()

	var g mat.SymDense
	g.SymOuterK(1, a.T())
	var eig mat.EigenSym
	if ok := eig.Factorize(&g, true); !ok {
		return nil, fmt.Errorf("%w: symmetric eigen decomposition failed", ErrConvergence)
	}
	lambda := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	s := make([]float64, n)
	for j, l := range lambda {
		s[j] = math.Sqrt(math.Max(l, 0))
	}
	order := descending(s)

	f := &Factors{
		S: make([]float64, n),
		V: mat.NewDense(n, n, nil),
	}
	col := make([]float64, n)
	for dst, src := range order {
		f.S[dst] = s[src]
		f.V.SetCol(dst, mat.Col(col, src, &vecs))
	}

	// squaring loses half the digits, so the floor uses sqrt(eps)
	floor := noiseFloor(f.S, m, n, math.Sqrt(eps))
	f.U = mat.NewDense(m, n, nil)
	f.U.Mul(a, f.V)
	for j := range n {
		if f.S[j] <= floor {
			f.S[j] = 0
			continue
		}
		u := f.U.ColView(j).(*mat.VecDense)
		u.ScaleVec(1/f.S[j], u)
	}
	complete(f, floor)
	return f, nil
}

var eps = math.Nextafter(1, 2) - 1

func noiseFloor(s []float64, m, n int, unit float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return s[0] * float64(max(m, n)) * unit
}

// descending returns the indices of s ordered by decreasing value. Ties keep
// their original order.
func descending(s []float64) []int {
	order := make([]int, len(s))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return s[order[i]] > s[order[j]]
	})
	return order
}

// complete replaces the left singular vectors of negligible singular values
// with unit vectors orthogonal to every other column of U.
func complete(f *Factors, floor float64) {
	m, n := f.U.Dims()
	basis := make([][]float64, 0, n)
	var fill []int
	for j := range n {
		if f.S[j] <= floor {
			f.S[j] = 0
			fill = append(fill, j)
			continue
		}
		basis = append(basis, mat.Col(nil, j, f.U))
	}
	if len(fill) == 0 {
		return
	}

	cand := make([]float64, m)
	next := 0
	for _, j := range fill {
		for ; next < m; next++ {
			for i := range cand {
				cand[i] = 0
			}
			cand[next] = 1
			// two passes of modified Gram-Schmidt
			for range 2 {
				for _, b := range basis {
					floats.AddScaled(cand, -floats.Dot(cand, b), b)
				}
			}
			if norm := floats.Norm(cand, 2); norm > 1e-6 {
				floats.Scale(1/norm, cand)
				break
			}
		}
		next++
		u := append([]float64(nil), cand...)
		basis = append(basis, u)
		f.U.SetCol(j, u)
	}
}

func canonicalSigns(f *Factors) {
	m, _ := f.U.Dims()
	for j := range f.S {
		col := f.U.ColView(j)
		at, peak := 0, -1.0
		for i := range m {
			if a := math.Abs(col.AtVec(i)); a > peak {
				at, peak = i, a
			}
		}
		if col.AtVec(at) >= 0 {
			continue
		}
		u := f.U.ColView(j).(*mat.VecDense)
		u.ScaleVec(-1, u)
		v := f.V.ColView(j).(*mat.VecDense)
		v.ScaleVec(-1, v)
	}
}

func finite(a mat.Matrix) bool {
	if rm, ok := a.(mat.RawMatrixer); ok {
		raw := rm.RawMatrix()
		for i := range raw.Rows {
			for _, v := range raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols] {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return false
				}
			}
		}
		return true
	}
	r, c := a.Dims()
	for i := range r {
		for j := range c {
			if v := a.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
