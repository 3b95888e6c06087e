package ops

import "github.com/born-ml/realnvp/internal/tensor"

// reduceBroadcast reduces a gradient tensor to match the target shape.
// Needed when broadcasting was used in the forward pass: the gradient of
// a broadcast input is the sum of the output gradient over the broadcast
// dimensions.
//
// Example:
//
//	Forward:  a[1,4] + b[3,4] -> c[3,4]
//	Backward: grad_c[3,4] -> grad_a[1,4] (sum along dim 0)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}

	result := grad

	// Sum away leading dimensions the target does not have.
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	// Sum dimensions where the target is 1 but the gradient is larger.
	for d := 0; d < len(targetShape); d++ {
		if targetShape[d] == 1 && result.Shape()[d] > 1 {
			result = backend.SumDim(result, d, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// broadcastTo expands a tensor to the target shape by adding it to a
// zero tensor of that shape, reusing the backend's broadcasting.
func broadcastTo(t *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if t.Shape().Equal(targetShape) {
		return t
	}
	zeros, err := tensor.NewRaw(targetShape, t.DType(), backend.Device())
	if err != nil {
		panic(err)
	}
	return backend.Add(zeros, t)
}

// onesLike returns a tensor of ones with the same shape and dtype as t.
func onesLike(t *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	zeros, err := tensor.NewRaw(t.Shape(), t.DType(), backend.Device())
	if err != nil {
		panic(err)
	}
	return backend.AddScalar(zeros, 1)
}
