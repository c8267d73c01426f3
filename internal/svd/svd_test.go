package svd

import (
	"context"
	_ "embed"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

//go:embed testdata/svd_cases.json
var svdCasesJSON []byte

type testcase struct {
	Name  string `json:"name"`
	Input struct {
		Rows int       `json:"rows"`
		Cols int       `json:"cols"`
		Data []float64 `json:"data"`
	} `json:"input"`
	Expected struct {
		SingularValues []float64 `json:"singular_values"`
	} `json:"expected"`
}

func loadCases(t *testing.T) []testcase {
	t.Helper()
	var cases []testcase
	require.NoError(t, json.Unmarshal(svdCasesJSON, &cases))
	return cases
}

var methods = []struct {
	method Method
	// gram squares the condition number and is compared loosely
	delta float64
}{
	{method: MethodLAPACK, delta: 1e-10},
	{method: MethodJacobi, delta: 1e-10},
	{method: MethodGram, delta: 1e-6},
}

// assertOrthonormalColumns checks QᵗQ = I.
func assertOrthonormalColumns(t *testing.T, q *mat.Dense, delta float64, name string) {
	t.Helper()
	_, c := q.Dims()
	var qtq mat.Dense
	qtq.Mul(q.T(), q)
	for i := range c {
		for j := range c {
			exp := 0.0
			if i == j {
				exp = 1
			}
			assert.InDelta(t, exp, qtq.At(i, j), delta, "%sᵗ%s[%d,%d]", name, name, i, j)
		}
	}
}

func reconstruct(f *Factors) *mat.Dense {
	var us mat.Dense
	us.Mul(f.U, mat.NewDiagDense(len(f.S), f.S))
	var a mat.Dense
	a.Mul(&us, f.V.T())
	return &a
}

func TestEngine_Decompose(t *testing.T) {
	for _, tt := range loadCases(t) {
		for _, m := range methods {
			t.Run(tt.Name+"/"+m.method.String(), func(t *testing.T) {
				a := mat.NewDense(tt.Input.Rows, tt.Input.Cols, append([]float64(nil), tt.Input.Data...))
				f, err := New(m.method).Decompose(a)
				require.NoError(t, err)

				r := min(tt.Input.Rows, tt.Input.Cols)
				require.Equal(t, r, f.Rank())
				rows, cols := f.Dims()
				assert.Equal(t, tt.Input.Rows, rows)
				assert.Equal(t, tt.Input.Cols, cols)

				for i, exp := range tt.Expected.SingularValues {
					assert.InDelta(t, exp, f.S[i], m.delta, "S[%d]", i)
				}
				assertOrthonormalColumns(t, f.U, m.delta, "U")
				assertOrthonormalColumns(t, f.V, m.delta, "V")

				got := reconstruct(f)
				for i := range tt.Input.Rows {
					for j := range tt.Input.Cols {
						assert.InDelta(t, a.At(i, j), got.At(i, j), m.delta, "A[%d,%d]", i, j)
					}
				}
			})
		}
	}
}

func TestEngine_Properties(t *testing.T) {
	data := []float64{
		4, 2, 1, 3, 5,
		6, 7, 8, 9, 1,
		2, 7, 1, 8, 2,
		8, 1, 8, 2, 8,
		4, 5, 9, 0, 4,
		5, 2, 3, 5, 3,
	}

	for _, m := range methods {
		t.Run(m.method.String(), func(t *testing.T) {
			a := mat.NewDense(6, 5, append([]float64(nil), data...))
			f, err := New(m.method).Decompose(a)
			require.NoError(t, err)

			t.Run("non_negative_descending", func(t *testing.T) {
				for i, s := range f.S {
					assert.GreaterOrEqual(t, s, 0.0, "S[%d]", i)
					if i > 0 {
						assert.GreaterOrEqual(t, f.S[i-1], s, "S[%d] >= S[%d]", i-1, i)
					}
				}
			})

			t.Run("sign_convention", func(t *testing.T) {
				for j := range f.S {
					col := mat.Col(nil, j, f.U)
					peak := 0.0
					for _, v := range col {
						if math.Abs(v) > math.Abs(peak) {
							peak = v
						}
					}
					assert.Greater(t, peak, 0.0, "largest entry of u_%d", j)
				}
			})

			t.Run("deterministic", func(t *testing.T) {
				again, err := New(m.method).Decompose(a)
				require.NoError(t, err)
				assert.Equal(t, f.S, again.S)
				assert.True(t, mat.Equal(f.U, again.U))
				assert.True(t, mat.Equal(f.V, again.V))
			})

			t.Run("input_untouched", func(t *testing.T) {
				assert.Equal(t, data, a.RawMatrix().Data)
			})
		})
	}
}

func TestEngine_MethodsAgree(t *testing.T) {
	a := mat.NewDense(4, 7, nil)
	for i := range 4 {
		for j := range 7 {
			a.Set(i, j, math.Sin(float64(i*7+j))*100+float64(i))
		}
	}
	ref, err := New(MethodLAPACK).Decompose(a)
	require.NoError(t, err)
	for _, m := range methods[1:] {
		f, err := New(m.method).Decompose(a)
		require.NoError(t, err)
		for i := range ref.S {
			assert.InDelta(t, ref.S[i], f.S[i], m.delta*100, "%s S[%d]", m.method, i)
		}
		// u_i, v_i pairs agree up to a shared sign; the sign convention fixes it
		for j := range ref.S {
			for i := range 4 {
				assert.InDelta(t, ref.U.At(i, j), f.U.At(i, j), 1e-5, "%s U[%d,%d]", m.method, i, j)
			}
		}
	}
}

func TestEngine_RankDeficientCompletesBasis(t *testing.T) {
	// two identical rows, two zero columns
	a := mat.NewDense(4, 4, []float64{
		1, 2, 0, 0,
		1, 2, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0,
	})
	for _, m := range methods {
		t.Run(m.method.String(), func(t *testing.T) {
			f, err := New(m.method).Decompose(a)
			require.NoError(t, err)
			assert.InDelta(t, math.Sqrt(10), f.S[0], m.delta)
			for _, s := range f.S[1:] {
				assert.InDelta(t, 0, s, m.delta)
			}
			assertOrthonormalColumns(t, f.U, m.delta, "U")
			assertOrthonormalColumns(t, f.V, m.delta, "V")
		})
	}
}

func TestEngine_ZeroMatrix(t *testing.T) {
	for _, m := range methods {
		f, err := New(m.method).Decompose(mat.NewDense(3, 2, nil))
		require.NoError(t, err, m.method.String())
		require.Len(t, f.S, 2)
		for _, s := range f.S {
			assert.InDelta(t, 0, s, 1e-12)
		}
		assertOrthonormalColumns(t, f.U, 1e-12, "U")
	}
}

func TestEngine_Errors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := New(MethodLAPACK).Decompose(&mat.Dense{})
		assert.ErrorIs(t, err, ErrDimension)
	})
	t.Run("non_finite", func(t *testing.T) {
		_, err := New(MethodJacobi).Decompose(mat.NewDense(2, 2, []float64{1, math.NaN(), 0, 1}))
		assert.ErrorIs(t, err, ErrDimension)
		_, err = New(MethodGram).Decompose(mat.NewDense(1, 2, []float64{1, math.Inf(1)}).T())
		assert.ErrorIs(t, err, ErrDimension)
	})
	t.Run("sweep_budget", func(t *testing.T) {
		a := mat.NewDense(6, 5, []float64{
			4, 2, 1, 3, 5,
			6, 7, 8, 9, 1,
			2, 7, 1, 8, 2,
			8, 1, 8, 2, 8,
			4, 5, 9, 0, 4,
			5, 2, 3, 5, 3,
		})
		_, err := New(MethodJacobi, WithMaxSweeps(1)).Decompose(a)
		assert.ErrorIs(t, err, ErrConvergence)

		_, err = New(MethodJacobi, WithMaxSweeps(200)).Decompose(a)
		assert.NoError(t, err)
	})
	t.Run("last_sweep_converges", func(t *testing.T) {
		// a single rotation orthogonalizes two columns
		a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
		f, err := New(MethodJacobi, WithMaxSweeps(1)).Decompose(a)
		require.NoError(t, err)
		assert.InDelta(t, 5.464985704219043, f.S[0], 1e-10)
		assert.InDelta(t, 0.3659661906262571, f.S[1], 1e-10)
	})
	t.Run("unknown_method", func(t *testing.T) {
		_, err := New(Method(9)).Decompose(mat.NewDense(1, 1, []float64{1}))
		assert.ErrorIs(t, err, ErrMethod)
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		for _, m := range methods {
			_, err := New(m.method).DecomposeContext(ctx, mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
			assert.ErrorIs(t, err, context.Canceled, m.method.String())
		}
	})
}

func TestParseMethod(t *testing.T) {
	for in, exp := range map[string]Method{
		"":       MethodLAPACK,
		"lapack": MethodLAPACK,
		"Jacobi": MethodJacobi,
		"gram":   MethodGram,
	} {
		m, err := ParseMethod(in)
		require.NoError(t, err)
		assert.Equal(t, exp, m)
	}
	_, err := ParseMethod("power")
	assert.ErrorIs(t, err, ErrMethod)
}
