package cpu

import (
	"fmt"

	"github.com/born-ml/realnvp/internal/parallel"
	"github.com/born-ml/realnvp/internal/tensor"
)

// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) -> (M, N).
// Output rows are computed independently and chunked across goroutines.
func (c *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %v @ %v", aShape, bShape))
	}
	m, k := aShape[0], aShape[1]
	k2, n := bShape[0], bShape[1]
	if k != k2 {
		panic(fmt.Sprintf("matmul: inner dimensions do not match: %v @ %v", aShape, bShape))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("matmul: dtype mismatch %s vs %s", a.DType(), b.DType()))
	}

	result, err := tensor.NewRaw(tensor.Shape{m, n}, a.DType(), c.device)
	if err != nil {
		panic(fmt.Sprintf("matmul: failed to create result tensor: %v", err))
	}

	switch a.DType() {
	case tensor.Float32:
		av, bv, dst := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
		parallel.ForRows(m, n, func(i int) {
			arow := av[i*k : (i+1)*k]
			drow := dst[i*n : (i+1)*n]
			// k-outer loop keeps the inner loop contiguous over b's rows.
			for p, x := range arow {
				brow := bv[p*n : (p+1)*n]
				for j, y := range brow {
					drow[j] += x * y
				}
			}
		}, c.par)
	case tensor.Float64:
		av, bv, dst := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
		parallel.ForRows(m, n, func(i int) {
			arow := av[i*k : (i+1)*k]
			drow := dst[i*n : (i+1)*n]
			for p, x := range arow {
				brow := bv[p*n : (p+1)*n]
				for j, y := range brow {
					drow[j] += x * y
				}
			}
		}, c.par)
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s", a.DType()))
	}

	return result
}
