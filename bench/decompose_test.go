package bench

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/yyyoichi/svdimage/internal/approx"
	"github.com/yyyoichi/svdimage/internal/svd"
	"gonum.org/v1/gonum/mat"
)

func genMatrix(rows, cols int) *mat.Dense {
	rnd := rand.New(rand.NewSource(1))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rnd.Float64() * 255.0
	}
	return mat.NewDense(rows, cols, data)
}

func BenchmarkDecompose(b *testing.B) {
	for _, size := range [][2]int{{64, 64}, {240, 320}, {32, 1024}} {
		a := genMatrix(size[0], size[1])
		for _, method := range []svd.Method{svd.MethodLAPACK, svd.MethodJacobi, svd.MethodGram} {
			engine := svd.New(method)
			b.Run(fmt.Sprintf("%s_%dx%d", method, size[0], size[1]), func(b *testing.B) {
				for b.Loop() {
					if _, err := engine.Decompose(a); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

// BenchmarkSequence compares growing every rank incrementally against
// rebuilding each rank from scratch.
func BenchmarkSequence(b *testing.B) {
	a := genMatrix(120, 160)
	f, err := svd.New(svd.MethodLAPACK).Decompose(a)
	if err != nil {
		b.Fatal(err)
	}

	b.Run("builder", func(b *testing.B) {
		pool := approx.NewPool()
		for b.Loop() {
			builder, err := approx.NewBuilder([]*svd.Factors{f}, pool)
			if err != nil {
				b.Fatal(err)
			}
			for range builder.MaxRank() {
				if _, err := builder.Next(); err != nil {
					b.Fatal(err)
				}
			}
			builder.Release()
		}
	})
	b.Run("reconstruct", func(b *testing.B) {
		for b.Loop() {
			for k := 1; k <= f.Rank(); k++ {
				if _, err := approx.Reconstruct(f, k); err != nil {
					b.Fatal(err)
				}
			}
		}
	})
}
