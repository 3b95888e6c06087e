package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/realnvp/internal/parallel"
	"github.com/born-ml/realnvp/internal/tensor"
)

// Exp computes the element-wise exponential.
func (c *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unaryOp("exp", x, math.Exp)
}

// Log computes the element-wise natural logarithm.
// Non-positive inputs produce -Inf/NaN, which the flow layer above
// treats as a numeric-instability fault rather than masking here.
func (c *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unaryOp("log", x, math.Log)
}

// MulScalar multiplies every element by a scalar constant.
func (c *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return c.unaryOp("mulscalar", x, func(v float64) float64 { return v * scalar })
}

// AddScalar adds a scalar constant to every element.
func (c *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return c.unaryOp("addscalar", x, func(v float64) float64 { return v + scalar })
}

// unaryOp applies an element-wise function, computing in float64 and
// narrowing back to the tensor's dtype.
func (c *CPUBackend) unaryOp(name string, x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	n := x.NumElements()
	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		parallel.For(n, func(i int) { dst[i] = float32(f(float64(src[i]))) }, c.par)
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		parallel.For(n, func(i int) { dst[i] = f(src[i]) }, c.par)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32/float64 supported)", name, x.DType()))
	}

	return result
}
