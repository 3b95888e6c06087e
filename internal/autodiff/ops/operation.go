// Package ops defines the differentiable operations recorded on the
// gradient tape.
//
// Each operation stores the tensors of its forward pass and knows how to
// push the output gradient back to its inputs via the chain rule.
package ops

import "github.com/born-ml/realnvp/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns one gradient per input tensor, in input order.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
