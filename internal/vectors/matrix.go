// Package vectors holds the catalog feature matrix and its on-disk codec.
package vectors

import (
	"fmt"
	"math"
	"sort"
)

// Sparse is one feature vector. Indices are strictly increasing.
type Sparse struct {
	Indices []int32
	Values  []float32
}

// Len returns the number of stored (non-zero) entries.
func (s Sparse) Len() int { return len(s.Indices) }

// Norm returns the Euclidean length of s.
func (s Sparse) Norm() float64 {
	var sum float64
	for _, v := range s.Values {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalized returns a unit-length copy of s, or s itself when it is zero.
func (s Sparse) Normalized() Sparse {
	n := s.Norm()
	if n == 0 {
		return s
	}
	out := Sparse{
		Indices: append([]int32(nil), s.Indices...),
		Values:  make([]float32, len(s.Values)),
	}
	for i, v := range s.Values {
		out.Values[i] = float32(float64(v) / n)
	}
	return out
}

// Matrix is an immutable row-normalised sparse matrix stored twice: by row
// (CSR) for reading a seed vector and by column (CSC) so a seed can be scored
// against every row by walking only the postings of its non-zero dimensions.
type Matrix struct {
	rows int
	dim  int

	rowPtr []int
	colIdx []int32
	vals   []float32

	colPtr  []int
	rowIdx  []int32
	colVals []float32
}

// NewMatrix builds a matrix from sparse rows. Every non-zero row is
// L2-normalised so that a dot product equals cosine similarity.
func NewMatrix(dim int, rows []Sparse) (*Matrix, error) {
	m := &Matrix{
		rows:   len(rows),
		dim:    dim,
		rowPtr: make([]int, len(rows)+1),
	}

	nnz := 0
	for _, r := range rows {
		nnz += r.Len()
	}
	m.colIdx = make([]int32, 0, nnz)
	m.vals = make([]float32, 0, nnz)

	for i, r := range rows {
		if len(r.Indices) != len(r.Values) {
			return nil, fmt.Errorf("row %d: %d indices but %d values", i, len(r.Indices), len(r.Values))
		}
		r = r.Normalized()
		prev := int32(-1)
		for j, c := range r.Indices {
			if c <= prev || int(c) >= dim {
				return nil, fmt.Errorf("row %d: column %d out of order or outside dimension %d", i, c, dim)
			}
			prev = c
			if r.Values[j] == 0 {
				continue
			}
			m.colIdx = append(m.colIdx, c)
			m.vals = append(m.vals, r.Values[j])
		}
		m.rowPtr[i+1] = len(m.colIdx)
	}

	m.buildPostings()
	return m, nil
}

// NewMatrixFromDense builds a matrix from a row-major dense buffer.
func NewMatrixFromDense(data []float32, rows, dim int) (*Matrix, error) {
	if len(data) != rows*dim {
		return nil, fmt.Errorf("dense buffer has %d values, want %d x %d", len(data), rows, dim)
	}
	sparse := make([]Sparse, rows)
	for i := 0; i < rows; i++ {
		sparse[i] = compactRow(data[i*dim : (i+1)*dim])
	}
	return NewMatrix(dim, sparse)
}

func compactRow(row []float32) Sparse {
	var s Sparse
	for j, v := range row {
		if v != 0 && !math.IsNaN(float64(v)) {
			s.Indices = append(s.Indices, int32(j))
			s.Values = append(s.Values, v)
		}
	}
	return s
}

func (m *Matrix) buildPostings() {
	counts := make([]int, m.dim+1)
	for _, c := range m.colIdx {
		counts[c+1]++
	}
	for c := 1; c <= m.dim; c++ {
		counts[c] += counts[c-1]
	}
	m.colPtr = counts

	m.rowIdx = make([]int32, len(m.colIdx))
	m.colVals = make([]float32, len(m.colIdx))
	next := append([]int(nil), counts[:m.dim]...)
	for r := 0; r < m.rows; r++ {
		for p := m.rowPtr[r]; p < m.rowPtr[r+1]; p++ {
			c := m.colIdx[p]
			dst := next[c]
			m.rowIdx[dst] = int32(r)
			m.colVals[dst] = m.vals[p]
			next[c]++
		}
	}
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Dim returns the vector dimensionality.
func (m *Matrix) Dim() int { return m.dim }

// Row returns a read-only view of row i.
func (m *Matrix) Row(i int) Sparse {
	lo, hi := m.rowPtr[i], m.rowPtr[i+1]
	return Sparse{Indices: m.colIdx[lo:hi], Values: m.vals[lo:hi]}
}

// IsZero reports whether row i has no stored entries.
func (m *Matrix) IsZero(i int) bool {
	return m.rowPtr[i] == m.rowPtr[i+1]
}

// DotAll writes the dot product of row seed with every row into scores,
// which must have length Rows(). Cost is proportional to the postings of
// the seed's non-zero columns rather than to Rows()*Dim().
func (m *Matrix) DotAll(seed int, scores []float32) {
	for i := range scores {
		scores[i] = 0
	}
	for p := m.rowPtr[seed]; p < m.rowPtr[seed+1]; p++ {
		c := m.colIdx[p]
		w := m.vals[p]
		for q := m.colPtr[c]; q < m.colPtr[c+1]; q++ {
			scores[m.rowIdx[q]] += w * m.colVals[q]
		}
	}
}

// Dense writes row i into dst (length Dim()) as a dense vector.
func (m *Matrix) Dense(i int, dst []float32) {
	for j := range dst {
		dst[j] = 0
	}
	for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
		dst[m.colIdx[p]] = m.vals[p]
	}
}

// Select returns a new matrix made of the given rows in the given order.
// It realigns vectors with a catalog that dropped rows at load time.
func (m *Matrix) Select(rows []int) (*Matrix, error) {
	picked := make([]Sparse, len(rows))
	for i, r := range rows {
		if r < 0 || r >= m.rows {
			return nil, fmt.Errorf("row %d outside matrix of %d rows", r, m.rows)
		}
		picked[i] = m.Row(r)
	}
	return NewMatrix(m.dim, picked)
}

// SortSparse orders a vector's entries by index, summing duplicates.
func SortSparse(s Sparse) Sparse {
	type entry struct {
		idx int32
		val float32
	}
	entries := make([]entry, len(s.Indices))
	for i := range s.Indices {
		entries[i] = entry{s.Indices[i], s.Values[i]}
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].idx < entries[b].idx })

	var out Sparse
	for _, e := range entries {
		if n := len(out.Indices); n > 0 && out.Indices[n-1] == e.idx {
			out.Values[n-1] += e.val
			continue
		}
		out.Indices = append(out.Indices, e.idx)
		out.Values = append(out.Values, e.val)
	}
	return out
}
