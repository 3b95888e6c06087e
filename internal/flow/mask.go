package flow

import "fmt"

// MaskKind selects how coupling layers partition the feature vector.
type MaskKind int

const (
	// HalfSplit passes through the first half of the dimensions and
	// transforms the second half (complemented on odd layers).
	HalfSplit MaskKind = iota

	// Checkerboard passes through even-indexed dimensions and
	// transforms odd-indexed ones (complemented on odd layers).
	Checkerboard
)

// String returns the mask kind name.
func (k MaskKind) String() string {
	switch k {
	case HalfSplit:
		return "half-split"
	case Checkerboard:
		return "checkerboard"
	default:
		return fmt.Sprintf("MaskKind(%d)", int(k))
	}
}

// Mask is a binary partition of the feature vector. Entry 1 marks a
// pass-through dimension, entry 0 a transformed dimension.
type Mask []float32

// Complement returns the mask with pass-through and transformed
// dimensions swapped.
func (m Mask) Complement() Mask {
	c := make(Mask, len(m))
	for i, v := range m {
		c[i] = 1 - v
	}
	return c
}

// NumPassThrough returns the number of pass-through dimensions.
func (m Mask) NumPassThrough() int {
	n := 0
	for _, v := range m {
		if v == 1 {
			n++
		}
	}
	return n
}

// baseMask builds the layer-0 mask for a kind.
func baseMask(kind MaskKind, dim int) Mask {
	m := make(Mask, dim)
	switch kind {
	case HalfSplit:
		for i := 0; i < dim/2; i++ {
			m[i] = 1
		}
	case Checkerboard:
		for i := 0; i < dim; i += 2 {
			m[i] = 1
		}
	default:
		panic("flow: unknown mask kind " + kind.String())
	}
	return m
}

// Schedule returns the mask for each of n coupling layers.
//
// The schedule is a pure function of the layer index: even layers use
// the base mask, odd layers its complement. With n >= 2 every dimension
// is transformed by at least one layer; a single coupling layer leaves
// its pass-through half literally unchanged.
func Schedule(kind MaskKind, dim, n int) []Mask {
	if dim < 2 {
		panic(fmt.Sprintf("flow: dimension must be at least 2, got %d", dim))
	}
	if n < 1 {
		panic(fmt.Sprintf("flow: need at least 1 coupling layer, got %d", n))
	}

	base := baseMask(kind, dim)
	masks := make([]Mask, n)
	for i := range masks {
		if i%2 == 0 {
			masks[i] = base
		} else {
			masks[i] = base.Complement()
		}
	}
	return masks
}
