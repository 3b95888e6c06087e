// Package cpu implements the pure-Go CPU compute backend.
package cpu

import (
	"fmt"

	"github.com/born-ml/realnvp/internal/parallel"
	"github.com/born-ml/realnvp/internal/tensor"
)

// CPUBackend implements tensor operations on CPU. Element-wise loops and
// matmul rows are chunked across goroutines for large tensors.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend with default parallelism.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
}

// Name returns the backend name.
func (c *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (c *CPUBackend) Device() tensor.Device {
	return c.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (c *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (c *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (c *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (c *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("div", a, b,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y })
}

// binaryOp applies an element-wise binary function with broadcasting.
func (c *CPUBackend) binaryOp(
	name string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", name, a.DType(), b.DType()))
	}

	result, err := tensor.NewRaw(outShape, a.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	n := outShape.NumElements()
	switch a.DType() {
	case tensor.Float32:
		av, bv, dst := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
		if !needsBroadcast {
			parallel.For(n, func(i int) { dst[i] = f32(av[i], bv[i]) }, c.par)
		} else {
			aIdx := broadcastIndexer(a.Shape(), outShape)
			bIdx := broadcastIndexer(b.Shape(), outShape)
			parallel.For(n, func(i int) { dst[i] = f32(av[aIdx(i)], bv[bIdx(i)]) }, c.par)
		}
	case tensor.Float64:
		av, bv, dst := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
		if !needsBroadcast {
			parallel.For(n, func(i int) { dst[i] = f64(av[i], bv[i]) }, c.par)
		} else {
			aIdx := broadcastIndexer(a.Shape(), outShape)
			bIdx := broadcastIndexer(b.Shape(), outShape)
			parallel.For(n, func(i int) { dst[i] = f64(av[aIdx(i)], bv[bIdx(i)]) }, c.par)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}

	return result
}

// broadcastIndexer returns a function mapping a flat index in the output
// shape to the corresponding flat index in the (possibly smaller) source
// shape, following right-aligned broadcast rules.
func broadcastIndexer(srcShape, outShape tensor.Shape) func(int) int {
	if srcShape.Equal(outShape) {
		return func(i int) int { return i }
	}

	srcStrides := srcShape.ComputeStrides()
	outStrides := outShape.ComputeStrides()
	offset := len(outShape) - len(srcShape)

	return func(i int) int {
		srcIdx := 0
		rem := i
		for d := 0; d < len(outShape); d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]

			sd := d - offset
			if sd < 0 {
				continue
			}
			if srcShape[sd] == 1 {
				coord = 0
			}
			srcIdx += coord * srcStrides[sd]
		}
		return srcIdx
	}
}
