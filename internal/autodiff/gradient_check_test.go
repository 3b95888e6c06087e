package autodiff_test

import (
	"testing"

	"github.com/born-ml/realnvp/internal/autodiff"
	"github.com/born-ml/realnvp/internal/tensor"
)

// evalScalar computes f(x) = sum(exp(x) * x + x * x) without recording.
func evalScalar(t *testing.T, backend Backend, values []float32) float32 {
	t.Helper()
	x := fromSlice(t, backend, values, tensor.Shape{len(values)})
	return x.Exp().Mul(x).Add(x.Mul(x)).Sum().Item()
}

// TestGradientsMatchFiniteDifferences verifies tape gradients of a
// composite expression against central finite differences.
func TestGradientsMatchFiniteDifferences(t *testing.T) {
	backend := newBackend()
	values := []float32{0.3, -0.7, 1.1, 0.0}

	x := fromSlice(t, backend, values, tensor.Shape{len(values)})
	backend.Tape().StartRecording()
	z := x.Exp().Mul(x).Add(x.Mul(x)).Sum()
	grads := autodiff.Backward(z)
	backend.Tape().StopRecording()
	backend.Tape().Clear()

	analytic := gradOf(t, grads, x)

	const eps = 1e-3
	for i := range values {
		plus := append([]float32(nil), values...)
		minus := append([]float32(nil), values...)
		plus[i] += eps
		minus[i] -= eps

		numeric := (evalScalar(t, backend, plus) - evalScalar(t, backend, minus)) / (2 * eps)

		diff := analytic[i] - numeric
		if diff < 0 {
			diff = -diff
		}
		if diff > 1e-2 {
			t.Errorf("gradient %d: analytic %v, numeric %v", i, analytic[i], numeric)
		}
	}
}
