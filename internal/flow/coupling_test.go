package flow_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/realnvp/internal/autodiff"
	"github.com/born-ml/realnvp/internal/backend/cpu"
	"github.com/born-ml/realnvp/internal/flow"
	"github.com/born-ml/realnvp/internal/nn"
	"github.com/born-ml/realnvp/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

func input(t *testing.T, backend Backend, data []float32, shape tensor.Shape) *tensor.Tensor[float32, Backend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, backend)
	require.NoError(t, err)
	return x
}

// randomize replaces every parameter with small random values so the
// layer is no longer the identity. Tanh keeps log-scales bounded, so
// the perturbed layer stays well-conditioned.
func randomize[B tensor.Backend](params []*nn.Parameter[B], seed int64) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // test data
	for _, p := range params {
		data := p.Tensor().Data()
		for i := range data {
			data[i] = rng.Float32()*0.2 - 0.1
		}
	}
}

func TestCouplingIdentityAtInit(t *testing.T) {
	backend := newBackend()
	c := flow.NewCoupling(flow.Mask{1, 1, 0, 0}, 16, 2, backend)

	x := input(t, backend, []float32{0.5, -1.2, 0.3, 2.0}, tensor.Shape{1, 4})
	y, logdet := c.Forward(x)

	assert.Equal(t, x.Data(), y.Data())
	assert.Equal(t, []float32{0}, logdet.Data())

	xr := c.Inverse(y)
	assert.Equal(t, x.Data(), xr.Data())
}

func TestCouplingPassThroughUnchanged(t *testing.T) {
	backend := newBackend()
	c := flow.NewCoupling(flow.Mask{1, 0, 1, 0}, 16, 2, backend)
	randomize(c.Parameters(), 7)

	x := input(t, backend, []float32{1, 2, 3, 4, -1, -2, -3, -4}, tensor.Shape{2, 4})
	y, _ := c.Forward(x)

	// Masked dims go through y = x*exp(0) + 0.
	assert.Equal(t, x.Data()[0], y.Data()[0])
	assert.Equal(t, x.Data()[2], y.Data()[2])
	assert.Equal(t, x.Data()[4], y.Data()[4])
	assert.Equal(t, x.Data()[6], y.Data()[6])
	assert.NotEqual(t, x.Data()[1], y.Data()[1])
}

func TestCouplingInvertibility(t *testing.T) {
	backend := newBackend()
	c := flow.NewCoupling(flow.Mask{1, 1, 0, 0}, 32, 2, backend)
	randomize(c.Parameters(), 42)

	x := input(t, backend, []float32{
		0.5, -1.2, 0.3, 2.0,
		-0.7, 0.1, 1.5, -2.3,
		3.0, 0.0, -0.5, 0.9,
	}, tensor.Shape{3, 4})

	y, _ := c.Forward(x)
	xr := c.Inverse(y)

	for i, want := range x.Data() {
		assert.InDelta(t, want, xr.Data()[i], 1e-4)
	}
}

// The analytic log-determinant must agree with the Jacobian computed by
// finite differences. In 2D with mask {1, 0} the Jacobian is lower
// triangular with unit ∂y0/∂x0, so det J = ∂y1/∂x1.
func TestCouplingLogDetMatchesJacobian(t *testing.T) {
	backend := newBackend()
	c := flow.NewCoupling(flow.Mask{1, 0}, 16, 2, backend)
	randomize(c.Parameters(), 13)

	x := []float32{0.8, -0.4}
	_, logdet := c.Forward(input(t, backend, x, tensor.Shape{1, 2}))

	const eps = 1e-3
	yPlus, _ := c.Forward(input(t, backend, []float32{x[0], x[1] + eps}, tensor.Shape{1, 2}))
	yMinus, _ := c.Forward(input(t, backend, []float32{x[0], x[1] - eps}, tensor.Shape{1, 2}))
	dy1 := (yPlus.Data()[1] - yMinus.Data()[1]) / (2 * eps)

	assert.InDelta(t, math.Log(float64(dy1)), float64(logdet.Data()[0]), 1e-2)
}

// Forcing known log-scales through the s-head bias pins the
// log-determinant exactly. With zero head weights the scale output is
// tanh(bias), so biases of atanh(0.1) and atanh(0.2) on the transformed
// dims give logdet = 0.3 for every input.
func TestCouplingForcedScale(t *testing.T) {
	backend := newBackend()
	c := flow.NewCoupling(flow.Mask{1, 1, 0, 0}, 16, 1, backend)

	// depth 1: Linear, ReLU, head Linear, Tanh. The head bias is "s.2.bias".
	sBias, ok := c.StateDict()["s.2.bias"]
	require.True(t, ok, "state dict keys: %v", keysOf(c.StateDict()))
	bias := sBias.AsFloat32()
	bias[2] = float32(math.Atanh(0.1))
	bias[3] = float32(math.Atanh(0.2))

	x := input(t, backend, []float32{
		0.5, -1.2, 0.3, 2.0,
		1.0, 1.0, 1.0, 1.0,
	}, tensor.Shape{2, 4})
	y, logdet := c.Forward(x)

	assert.InDelta(t, 0.3, float64(logdet.Data()[0]), 1e-5)
	assert.InDelta(t, 0.3, float64(logdet.Data()[1]), 1e-5)

	// Translation head is still zero, so y = x * exp(s).
	e1 := float32(math.Exp(0.1))
	e2 := float32(math.Exp(0.2))
	assert.InDelta(t, float64(0.3*e1), float64(y.Data()[2]), 1e-5)
	assert.InDelta(t, float64(2.0*e2), float64(y.Data()[3]), 1e-5)
	assert.Equal(t, float32(0.5), y.Data()[0])
	assert.Equal(t, float32(-1.2), y.Data()[1])
}

func TestCouplingInputValidation(t *testing.T) {
	backend := newBackend()
	c := flow.NewCoupling(flow.Mask{1, 0}, 8, 1, backend)

	assert.Panics(t, func() {
		c.Forward(input(t, backend, []float32{1, 2, 3}, tensor.Shape{1, 3}))
	})
	assert.Panics(t, func() {
		c.Inverse(input(t, backend, []float32{1, 2}, tensor.Shape{2}))
	})
}

func TestCouplingRejectsDegenerateMask(t *testing.T) {
	backend := newBackend()

	assert.Panics(t, func() { flow.NewCoupling(flow.Mask{1, 1}, 8, 1, backend) })
	assert.Panics(t, func() { flow.NewCoupling(flow.Mask{0, 0}, 8, 1, backend) })
}

func keysOf(m map[string]*tensor.RawTensor) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
