// Package nn implements the neural network building blocks used by the
// coupling layers: Linear, activations, Sequential, and the Parameter
// type that ties tensors to their gradients.
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/born-ml/realnvp/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules compose into larger architectures:
//
//	net := nn.NewSequential[B](
//	    nn.NewLinear(2, 256, backend),
//	    nn.NewReLU[B](),
//	    nn.NewLinear(256, 2, backend),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including those of nested modules. Modules without parameters
	// (activations) return nil.
	Parameters() []*Parameter[B]

	// StateDict returns a map of parameter names to raw tensors for
	// serialization. Modules without parameters return an empty map.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies parameter values from a state dictionary.
	// Shapes and dtypes must match the module's current parameters.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}
