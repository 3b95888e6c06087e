package flow

import (
	"fmt"

	"github.com/born-ml/realnvp/internal/nn"
	"github.com/born-ml/realnvp/internal/tensor"
)

// Coupling is an affine coupling layer.
//
// The mask splits dimensions into a pass-through set A and a
// transformed set B. Forward computes
//
//	y_A = x_A
//	y_B = x_B * exp(s) + t
//
// with (s, t) produced by the ST-Net from x_A alone. Because A is left
// untouched, the Jacobian is triangular with diagonal exp(s) and its
// log-determinant is just the sum of s over B. The inverse recomputes
// (s, t) from y_A == x_A and solves for x_B in closed form.
type Coupling[B tensor.Backend] struct {
	dim  int
	mask Mask
	m    *tensor.Tensor[float32, B] // [1, dim], 1 on pass-through dims
	mc   *tensor.Tensor[float32, B] // [1, dim], 1 on transformed dims
	st   *STNet[B]
}

// NewCoupling creates a coupling layer for the given mask.
//
// hidden and depth size the ST-Net. The layer starts as the identity
// map (zero scale and translation heads).
func NewCoupling[B tensor.Backend](mask Mask, hidden, depth int, backend B) *Coupling[B] {
	dim := len(mask)
	np := mask.NumPassThrough()
	if np == 0 || np == dim {
		panic(fmt.Sprintf("flow: mask must split dimensions into two non-empty sets, got %d pass-through of %d", np, dim))
	}

	m, err := tensor.FromSlice([]float32(mask), tensor.Shape{1, dim}, backend)
	if err != nil {
		panic(err)
	}
	mc, err := tensor.FromSlice([]float32(mask.Complement()), tensor.Shape{1, dim}, backend)
	if err != nil {
		panic(err)
	}

	return &Coupling[B]{
		dim:  dim,
		mask: mask,
		m:    m,
		mc:   mc,
		st:   NewSTNet(dim, hidden, depth, backend),
	}
}

// Forward transforms x and returns the per-sample log-determinant.
//
// Input shape: [batch, dim]. Output y has the same shape; logdet has
// shape [batch]. The input is not modified.
func (c *Coupling[B]) Forward(x *tensor.Tensor[float32, B]) (y, logdet *tensor.Tensor[float32, B]) {
	c.checkInput(x)

	masked := x.Mul(c.m)
	s, t := c.st.Forward(masked)

	// Zero s and t on pass-through dims so exp(s) is 1 and t adds
	// nothing there. y = x * exp(s) + t then fixes A and transforms B.
	s = s.Mul(c.mc)
	t = t.Mul(c.mc)

	y = x.Mul(s.Exp()).Add(t)
	logdet = s.SumDim(1, false)
	return y, logdet
}

// Inverse recovers x from y.
//
// The ST-Net is re-evaluated on the unchanged half, so the same
// parameters drive both directions.
func (c *Coupling[B]) Inverse(y *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	c.checkInput(y)

	masked := y.Mul(c.m)
	s, t := c.st.Forward(masked)
	s = s.Mul(c.mc)
	t = t.Mul(c.mc)

	// x = (y - t) * exp(-s); on pass-through dims t is 0 and exp(-s)
	// is 1, so x_A = y_A.
	return y.Sub(t).Mul(s.MulScalar(-1).Exp())
}

func (c *Coupling[B]) checkInput(x *tensor.Tensor[float32, B]) {
	shape := x.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("flow: expected 2D input [batch, %d], got shape %v", c.dim, shape))
	}
	if shape[1] != c.dim {
		panic(fmt.Sprintf("flow: expected input with %d features, got %d", c.dim, shape[1]))
	}
}

// Dim returns the feature dimension.
func (c *Coupling[B]) Dim() int {
	return c.dim
}

// Mask returns the layer's partition mask.
func (c *Coupling[B]) Mask() Mask {
	return c.mask
}

// STNet returns the layer's scale/translate network.
func (c *Coupling[B]) STNet() *STNet[B] {
	return c.st
}

// Parameters returns the ST-Net parameters.
func (c *Coupling[B]) Parameters() []*nn.Parameter[B] {
	return c.st.Parameters()
}

// StateDict returns the ST-Net state.
func (c *Coupling[B]) StateDict() map[string]*tensor.RawTensor {
	return c.st.StateDict()
}

// LoadStateDict restores the ST-Net state.
func (c *Coupling[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return c.st.LoadStateDict(stateDict)
}
