package autodiff

import (
	"github.com/born-ml/realnvp/internal/tensor"
)

// BackwardCapable is implemented by backends that can run a backward
// pass. *AutodiffBackend satisfies it; a bare CPU backend does not.
type BackwardCapable interface {
	Tape() *GradientTape
	InnerBackend() tensor.Backend
}

// Backward computes gradients of a scalar output with respect to every
// tensor recorded on the tape.
//
// The seed gradient is a tensor of ones with the output's shape, so the
// output is expected to be a scalar loss (any shape works, but only a
// scalar gives the usual dL/dx semantics).
func Backward[T tensor.DType, B tensor.Backend](output *tensor.Tensor[T, B]) map[*tensor.RawTensor]*tensor.RawTensor {
	backend := any(output.Backend()).(BackwardCapable)

	seed, err := tensor.NewRaw(output.Shape().Clone(), output.DType(), output.Raw().Device())
	if err != nil {
		panic("autodiff: failed to create seed gradient: " + err.Error())
	}
	switch output.DType() {
	case tensor.Float32:
		data := seed.AsFloat32()
		for i := range data {
			data[i] = 1
		}
	case tensor.Float64:
		data := seed.AsFloat64()
		for i := range data {
			data[i] = 1
		}
	default:
		panic("autodiff: cannot backpropagate through " + output.DType().String() + " tensor")
	}

	return backend.Tape().Backward(seed, backend.InnerBackend())
}
