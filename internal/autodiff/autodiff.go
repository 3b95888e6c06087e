// Package autodiff provides reverse-mode automatic differentiation by
// wrapping any tensor.Backend in a recording decorator.
//
// The AutodiffBackend delegates every operation to the inner backend
// and, while its GradientTape is recording, appends the matching
// ops.Operation so that gradients can later be computed with a single
// reverse walk over the tape.
package autodiff

import (
	"fmt"
	"math"

	"github.com/born-ml/realnvp/internal/autodiff/ops"
	"github.com/born-ml/realnvp/internal/tensor"
)

// AutodiffBackend wraps a backend with gradient tracking.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates an autodiff backend wrapping the given inner backend.
func New[B tensor.Backend](inner B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: inner,
		tape:  NewGradientTape(),
	}
}

// Inner returns the wrapped backend.
func (ab *AutodiffBackend[B]) Inner() B {
	return ab.inner
}

// InnerBackend returns the wrapped backend as a tensor.Backend.
// Needed by callers that only know the backend implements BackwardCapable.
func (ab *AutodiffBackend[B]) InnerBackend() tensor.Backend {
	return ab.inner
}

// Tape returns the gradient tape.
func (ab *AutodiffBackend[B]) Tape() *GradientTape {
	return ab.tape
}

// Name returns the backend name.
func (ab *AutodiffBackend[B]) Name() string {
	return "autodiff(" + ab.inner.Name() + ")"
}

// Device returns the inner backend's device.
func (ab *AutodiffBackend[B]) Device() tensor.Device {
	return ab.inner.Device()
}

func (ab *AutodiffBackend[B]) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	out := ab.inner.Add(a, b)
	ab.tape.Record(ops.NewAddOp(a, b, out))
	return out
}

func (ab *AutodiffBackend[B]) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	out := ab.inner.Sub(a, b)
	ab.tape.Record(ops.NewSubOp(a, b, out))
	return out
}

func (ab *AutodiffBackend[B]) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	out := ab.inner.Mul(a, b)
	ab.tape.Record(ops.NewMulOp(a, b, out))
	return out
}

func (ab *AutodiffBackend[B]) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	out := ab.inner.Div(a, b)
	ab.tape.Record(ops.NewDivOp(a, b, out))
	return out
}

func (ab *AutodiffBackend[B]) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	out := ab.inner.MatMul(a, b)
	ab.tape.Record(ops.NewMatMulOp(a, b, out))
	return out
}

func (ab *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	out := ab.inner.MulScalar(x, scalar)
	ab.tape.Record(ops.NewMulScalarOp(x, out, scalar))
	return out
}

func (ab *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	out := ab.inner.AddScalar(x, scalar)
	ab.tape.Record(ops.NewAddScalarOp(x, out))
	return out
}

func (ab *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	out := ab.inner.Exp(x)
	ab.tape.Record(ops.NewExpOp(x, out))
	return out
}

func (ab *AutodiffBackend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	out := ab.inner.Log(x)
	ab.tape.Record(ops.NewLogOp(x, out))
	return out
}

func (ab *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	out := ab.inner.Sum(x)
	ab.tape.Record(ops.NewSumOp(x, out))
	return out
}

func (ab *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	out := ab.inner.SumDim(x, dim, keepDim)
	ab.tape.Record(ops.NewSumDimOp(x, out, dim, keepDim))
	return out
}

func (ab *AutodiffBackend[B]) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	out := ab.inner.MeanDim(x, dim, keepDim)
	ab.tape.Record(ops.NewMeanDimOp(x, out, dim, keepDim))
	return out
}

func (ab *AutodiffBackend[B]) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	out := ab.inner.Reshape(x, shape)
	ab.tape.Record(ops.NewReshapeOp(x, out))
	return out
}

func (ab *AutodiffBackend[B]) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	out := ab.inner.Transpose(x, axes...)
	if len(axes) == 0 {
		axes = make([]int, len(x.Shape()))
		for i := range axes {
			axes[i] = len(axes) - 1 - i
		}
	}
	ab.tape.Record(ops.NewTransposeOp(x, out, axes))
	return out
}

// Tanh applies the hyperbolic tangent elementwise. It is not part of
// the tensor.Backend contract; activation modules discover it through
// the TanhBackend capability interface.
func (ab *AutodiffBackend[B]) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	out := elementwise(x, math.Tanh)
	ab.tape.Record(ops.NewTanhOp(x, out))
	return out
}

// ReLU applies max(0, x) elementwise.
func (ab *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	out := elementwise(x, func(v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	})
	ab.tape.Record(ops.NewReLUOp(x, out))
	return out
}

func elementwise(x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	out, err := tensor.NewRaw(x.Shape().Clone(), x.DType(), x.Device())
	if err != nil {
		panic(fmt.Sprintf("autodiff: failed to create result tensor: %v", err))
	}
	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), out.AsFloat32()
		for i, v := range src {
			dst[i] = float32(f(float64(v)))
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), out.AsFloat64()
		for i, v := range src {
			dst[i] = f(v)
		}
	default:
		panic("autodiff: elementwise op requires a float tensor, got " + x.DType().String())
	}
	return out
}
