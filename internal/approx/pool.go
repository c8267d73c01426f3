package approx

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Pool recycles scratch matrices between builds of same-size images.
type Pool struct {
	data sync.Map
}

func NewPool() *Pool {
	var p Pool
	return &p
}

func (p *Pool) shape(r, c int) *sync.Pool {
	key := [2]int{r, c}
	if v, ok := p.data.Load(key); ok {
		return v.(*sync.Pool)
	}
	sp := &sync.Pool{New: func() any { return mat.NewDense(r, c, nil) }}
	actual, _ := p.data.LoadOrStore(key, sp)
	return actual.(*sync.Pool)
}

// Get returns a zeroed r×c matrix.
func (p *Pool) Get(r, c int) *mat.Dense {
	if p == nil {
		return mat.NewDense(r, c, nil)
	}
	m := p.shape(r, c).Get().(*mat.Dense)
	m.Zero()
	return m
}

// Put hands m back for reuse. m must not be used afterwards.
func (p *Pool) Put(m *mat.Dense) {
	if p == nil || m == nil || m.IsEmpty() {
		return
	}
	r, c := m.Dims()
	p.shape(r, c).Put(m)
}
