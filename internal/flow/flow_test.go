package flow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/realnvp/internal/flow"
	"github.com/born-ml/realnvp/internal/tensor"
)

func buildFlow(backend Backend, dim, layers, hidden, depth int) *flow.Flow[Backend] {
	masks := flow.Schedule(flow.HalfSplit, dim, layers)
	couplings := make([]*flow.Coupling[Backend], len(masks))
	for i, mask := range masks {
		couplings[i] = flow.NewCoupling(mask, hidden, depth, backend)
	}
	return flow.NewFlow(couplings...)
}

func TestFlowIdentityAtInit(t *testing.T) {
	backend := newBackend()
	f := buildFlow(backend, 4, 4, 16, 2)

	x := input(t, backend, []float32{0.5, -1.2, 0.3, 2.0}, tensor.Shape{1, 4})
	z, logdet := f.Forward(x)

	assert.Equal(t, x.Data(), z.Data())
	assert.Equal(t, []float32{0}, logdet.Data())

	xr := f.Inverse(z)
	assert.Equal(t, x.Data(), xr.Data())
}

func TestFlowRoundTrip(t *testing.T) {
	backend := newBackend()
	f := buildFlow(backend, 4, 4, 32, 2)
	randomize(f.Parameters(), 42)

	x := input(t, backend, []float32{
		0.5, -1.2, 0.3, 2.0,
		-0.7, 0.1, 1.5, -2.3,
		3.0, 0.0, -0.5, 0.9,
		0.2, 0.2, 0.2, 0.2,
	}, tensor.Shape{4, 4})

	z, _ := f.Forward(x)
	xr := f.Inverse(z)

	for i, want := range x.Data() {
		assert.InDelta(t, want, xr.Data()[i], 1e-3)
	}
}

// The flow's accumulated log-determinant must equal the sum of the
// per-layer log-determinants along the same trajectory.
func TestFlowLogDetAdditivity(t *testing.T) {
	backend := newBackend()
	f := buildFlow(backend, 4, 3, 16, 2)
	randomize(f.Parameters(), 99)

	x := input(t, backend, []float32{
		0.5, -1.2, 0.3, 2.0,
		-0.7, 0.1, 1.5, -2.3,
	}, tensor.Shape{2, 4})

	_, total := f.Forward(x)

	h := x
	manual := make([]float32, 2)
	for i := 0; i < f.NumLayers(); i++ {
		var ld *tensor.Tensor[float32, Backend]
		h, ld = f.Layer(i).Forward(h)
		for j, v := range ld.Data() {
			manual[j] += v
		}
	}

	for j := range manual {
		assert.InDelta(t, manual[j], total.Data()[j], 1e-5)
	}
}

func TestFlowValidation(t *testing.T) {
	backend := newBackend()

	assert.Panics(t, func() { flow.NewFlow[Backend]() })
	assert.Panics(t, func() {
		flow.NewFlow(
			flow.NewCoupling(flow.Mask{1, 0}, 8, 1, backend),
			flow.NewCoupling(flow.Mask{1, 1, 0, 0}, 8, 1, backend),
		)
	})
}

func TestFlowStateDictRoundTrip(t *testing.T) {
	backend := newBackend()
	src := buildFlow(backend, 4, 2, 16, 1)
	randomize(src.Parameters(), 5)

	dst := buildFlow(backend, 4, 2, 16, 1)
	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	x := input(t, backend, []float32{1, -2, 0.5, 0.25}, tensor.Shape{1, 4})
	zSrc, ldSrc := src.Forward(x)
	zDst, ldDst := dst.Forward(x)

	assert.Equal(t, zSrc.Data(), zDst.Data())
	assert.Equal(t, ldSrc.Data(), ldDst.Data())
}
