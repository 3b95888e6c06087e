package ops

import "github.com/born-ml/realnvp/internal/tensor"

// TanhOp represents the hyperbolic tangent: output = tanh(x).
//
// This is the saturating activation bounding the flow's scale head, so
// its gradient sits on the training path of every coupling layer.
type TanhOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewTanhOp creates a new TanhOp.
func NewTanhOp(input, output *tensor.RawTensor) *TanhOp {
	return &TanhOp{input: input, output: output}
}

// Backward computes the input gradient.
//
// d(tanh(x))/dx = 1 - tanh²(x), with tanh(x) already computed as output:
// grad_input = grad * (1 - output²).
func (op *TanhOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	outSquared := backend.Mul(op.output, op.output)
	derivative := backend.Sub(onesLike(op.output, backend), outSquared)
	return []*tensor.RawTensor{backend.Mul(outputGrad, derivative)}
}

// Inputs returns the input tensor [x].
func (op *TanhOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the output tensor tanh(x).
func (op *TanhOp) Output() *tensor.RawTensor { return op.output }
