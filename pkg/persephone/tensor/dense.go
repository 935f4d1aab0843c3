package tensor

import (
	"errors"
	"fmt"
)

// ErrShape is returned when data does not fit the requested shape.
var ErrShape = errors.New("tensor: shape mismatch")

// Dense is a row-major float64 array of arbitrary rank. The flat buffer is
// shared between a tensor and the views created by Reshape.
type Dense struct {
	shape []int
	data  []float64
}

// New wraps data in a tensor of the given shape. data is not copied.
func New(shape []int, data []float64) (*Dense, error) {
	n, err := volume(shape)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrShape, shape, n, len(data))
	}
	return &Dense{shape: append([]int(nil), shape...), data: data}, nil
}

// Zeros allocates a zero-filled tensor.
func Zeros(shape ...int) *Dense {
	n, err := volume(shape)
	if err != nil {
		panic(err)
	}
	return &Dense{shape: append([]int(nil), shape...), data: make([]float64, n)}
}

// Full allocates a tensor with every element set to v.
func Full(v float64, shape ...int) *Dense {
	d := Zeros(shape...)
	for i := range d.data {
		d.data[i] = v
	}
	return d
}

// Ones allocates a tensor filled with 1.
func Ones(shape ...int) *Dense {
	return Full(1, shape...)
}

// FromRows builds a [len(rows), len(rows[0])] tensor.
func FromRows(rows [][]float64) (*Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrShape)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, i, len(r), cols)
		}
		data = append(data, r...)
	}
	return New([]int{len(rows), cols}, data)
}

// FromCube builds a [B, H, K] tensor from nested slices.
func FromCube(cube [][][]float64) (*Dense, error) {
	if len(cube) == 0 || len(cube[0]) == 0 {
		return nil, fmt.Errorf("%w: empty cube", ErrShape)
	}
	h, k := len(cube[0]), len(cube[0][0])
	data := make([]float64, 0, len(cube)*h*k)
	for b, plane := range cube {
		if len(plane) != h {
			return nil, fmt.Errorf("%w: plane %d has %d rows, want %d", ErrShape, b, len(plane), h)
		}
		for i, r := range plane {
			if len(r) != k {
				return nil, fmt.Errorf("%w: plane %d row %d has %d values, want %d", ErrShape, b, i, len(r), k)
			}
			data = append(data, r...)
		}
	}
	return New([]int{len(cube), h, k}, data)
}

// Shape returns a copy of the tensor's shape.
func (d *Dense) Shape() []int {
	return append([]int(nil), d.shape...)
}

// Dims returns the rank.
func (d *Dense) Dims() int {
	return len(d.shape)
}

// Dim returns the size of axis i. Negative i counts from the last axis.
func (d *Dense) Dim(i int) int {
	if i < 0 {
		i += len(d.shape)
	}
	return d.shape[i]
}

// Len returns the number of elements.
func (d *Dense) Len() int {
	return len(d.data)
}

// Data exposes the flat row-major buffer.
func (d *Dense) Data() []float64 {
	return d.data
}

// At returns the element at the given index.
func (d *Dense) At(idx ...int) float64 {
	return d.data[d.offset(idx)]
}

// Set writes v at the given index.
func (d *Dense) Set(v float64, idx ...int) {
	d.data[d.offset(idx)] = v
}

// Reshape returns a view over the same buffer with a new shape.
func (d *Dense) Reshape(shape ...int) (*Dense, error) {
	n, err := volume(shape)
	if err != nil {
		return nil, err
	}
	if n != len(d.data) {
		return nil, fmt.Errorf("%w: cannot reshape %v into %v", ErrShape, d.shape, shape)
	}
	return &Dense{shape: append([]int(nil), shape...), data: d.data}, nil
}

// Clone deep-copies the tensor.
func (d *Dense) Clone() *Dense {
	return &Dense{
		shape: append([]int(nil), d.shape...),
		data:  append([]float64(nil), d.data...),
	}
}

// Rows returns a 2-D tensor as nested slices.
func (d *Dense) Rows() [][]float64 {
	if len(d.shape) != 2 {
		panic(fmt.Sprintf("tensor: Rows on rank %d tensor", len(d.shape)))
	}
	out := make([][]float64, d.shape[0])
	for i := range out {
		out[i] = append([]float64(nil), d.data[i*d.shape[1]:(i+1)*d.shape[1]]...)
	}
	return out
}

// Cube returns a 3-D tensor as nested slices.
func (d *Dense) Cube() [][][]float64 {
	if len(d.shape) != 3 {
		panic(fmt.Sprintf("tensor: Cube on rank %d tensor", len(d.shape)))
	}
	h, k := d.shape[1], d.shape[2]
	out := make([][][]float64, d.shape[0])
	for b := range out {
		out[b] = make([][]float64, h)
		for i := range out[b] {
			start := (b*h + i) * k
			out[b][i] = append([]float64(nil), d.data[start:start+k]...)
		}
	}
	return out
}

// SameShape reports whether a and b have identical shapes.
func SameShape(a, b *Dense) bool {
	return EqualShape(a.shape, b.shape)
}

// EqualShape compares two shapes.
func EqualShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (d *Dense) offset(idx []int) int {
	if len(idx) != len(d.shape) {
		panic(fmt.Sprintf("tensor: index rank %d on rank %d tensor", len(idx), len(d.shape)))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= d.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for axis %d of size %d", x, i, d.shape[i]))
		}
		off = off*d.shape[i] + x
	}
	return off
}

func volume(shape []int) (int, error) {
	n := 1
	for _, s := range shape {
		if s < 0 {
			return 0, fmt.Errorf("%w: negative dimension in %v", ErrShape, shape)
		}
		n *= s
	}
	return n, nil
}
