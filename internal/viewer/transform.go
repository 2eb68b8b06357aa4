package viewer

import (
	"gonum.org/v1/gonum/mat"
)

// Transform is an immutable 4x4 rigid-body transform. The zero value is
// the identity.
type Transform struct {
	m *mat.Dense
}

// IdentityTransform returns the 4x4 identity.
func IdentityTransform() Transform {
	return Transform{}
}

// NewTransform composes a transform whose upper-left 3x3 block is r and
// whose translation column is t. r must be 3x3.
func NewTransform(r mat.Matrix, t Point) Transform {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, r.At(i, j))
		}
	}
	m.Set(0, 3, t.X)
	m.Set(1, 3, t.Y)
	m.Set(2, 3, t.Z)
	m.Set(3, 3, 1)
	return Transform{m: m}
}

// Matrix returns a copy of the transform as a 4x4 dense matrix.
func (t Transform) Matrix() *mat.Dense {
	if t.m == nil {
		return mat.NewDense(4, 4, []float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		})
	}
	return mat.DenseCopyOf(t.m)
}

// At returns element (i, j).
func (t Transform) At(i, j int) float64 {
	if t.m == nil {
		if i == j {
			return 1
		}
		return 0
	}
	return t.m.At(i, j)
}

// Translation returns the translation column.
func (t Transform) Translation() Point {
	return Point{X: t.At(0, 3), Y: t.At(1, 3), Z: t.At(2, 3)}
}

// Apply maps p from body to world coordinates.
func (t Transform) Apply(p Point) Point {
	if t.m == nil {
		return p
	}
	var out mat.VecDense
	out.MulVec(t.m, mat.NewVecDense(4, []float64{p.X, p.Y, p.Z, 1}))
	return Point{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// ColumnMajor returns the transform in OpenGL column-major order, the
// layout a camera "follow" call on the host expects.
func (t Transform) ColumnMajor() [16]float64 {
	var out [16]float64
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			out[col*4+row] = t.At(row, col)
		}
	}
	return out
}

// Equal reports whether two transforms are element-wise identical.
func (t Transform) Equal(o Transform) bool {
	return mat.Equal(t.Matrix(), o.Matrix())
}

// IsIdentity reports whether t is the identity.
func (t Transform) IsIdentity() bool {
	return t.Equal(IdentityTransform())
}
