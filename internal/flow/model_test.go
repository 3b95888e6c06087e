package flow_test

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/realnvp/internal/autodiff"
	"github.com/born-ml/realnvp/internal/flow"
	"github.com/born-ml/realnvp/internal/optim"
	"github.com/born-ml/realnvp/internal/tensor"
)

func smallConfig() flow.Config {
	return flow.Config{Dim: 2, Couplings: 2, Hidden: 16, Depth: 1}
}

func TestNewRejectsSmallDimension(t *testing.T) {
	_, err := flow.New(flow.Config{Dim: 1}, newBackend())
	assert.ErrorIs(t, err, flow.ErrDimensionMismatch)

	_, err = flow.New(flow.Config{}, newBackend())
	assert.ErrorIs(t, err, flow.ErrDimensionMismatch)
}

func TestConfigDefaults(t *testing.T) {
	model, err := flow.New(flow.Config{Dim: 2, Hidden: 8, Depth: 1, Couplings: 2}, newBackend())
	require.NoError(t, err)

	config := model.Config()
	assert.Equal(t, 2, config.Couplings)
	assert.Equal(t, uint64(1), config.Seed)
	assert.Equal(t, flow.HalfSplit, config.Mask)
	assert.Equal(t, 2, model.Flow().NumLayers())
}

// A freshly built model is the identity map, so its likelihood must
// match the base density exactly.
func TestLogLikelihoodAtInitMatchesBase(t *testing.T) {
	backend := newBackend()
	model, err := flow.New(smallConfig(), backend)
	require.NoError(t, err)

	x := input(t, backend, []float32{
		0.0, 0.0,
		1.0, -1.0,
		2.5, 0.3,
	}, tensor.Shape{3, 2})

	ll, err := model.LogLikelihood(x)
	require.NoError(t, err)

	want := model.Base().LogDensity(x.Raw())
	for i := range want {
		assert.InDelta(t, want[i], float64(ll.Data()[i]), 1e-4)
	}
	// Standard normal at the origin: -log(2π) for two dimensions.
	assert.InDelta(t, -math.Log(2*math.Pi), float64(ll.Data()[0]), 1e-5)
}

func TestForwardDimensionMismatch(t *testing.T) {
	backend := newBackend()
	model, err := flow.New(smallConfig(), backend)
	require.NoError(t, err)

	bad := input(t, backend, []float32{1, 2, 3}, tensor.Shape{1, 3})

	_, _, err = model.Forward(bad)
	assert.ErrorIs(t, err, flow.ErrDimensionMismatch)

	_, err = model.Inverse(bad)
	assert.ErrorIs(t, err, flow.ErrDimensionMismatch)

	_, err = model.LogLikelihood(bad)
	assert.ErrorIs(t, err, flow.ErrDimensionMismatch)
}

func TestLossRejectsNonFinite(t *testing.T) {
	backend := newBackend()
	model, err := flow.New(smallConfig(), backend)
	require.NoError(t, err)

	x := input(t, backend, []float32{float32(math.NaN()), 0}, tensor.Shape{1, 2})

	_, err = model.Loss(x)
	assert.ErrorIs(t, err, flow.ErrNumericInstability)
}

func TestSample(t *testing.T) {
	backend := newBackend()
	model, err := flow.New(smallConfig(), backend)
	require.NoError(t, err)

	samples, err := model.Sample(5)
	require.NoError(t, err)
	assert.True(t, samples.Shape().Equal(tensor.Shape{5, 2}))
	for _, v := range samples.Data() {
		assert.False(t, math.IsNaN(float64(v)))
	}

	_, err = model.Sample(0)
	assert.Error(t, err)
}

func TestSampleReproducibleAcrossSeeds(t *testing.T) {
	backend := newBackend()

	config := smallConfig()
	config.Seed = 7
	m1, err := flow.New(config, backend)
	require.NoError(t, err)
	m2, err := flow.New(config, backend)
	require.NoError(t, err)

	s1, err := m1.Sample(4)
	require.NoError(t, err)
	s2, err := m2.Sample(4)
	require.NoError(t, err)

	assert.Equal(t, s1.Data(), s2.Data())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	backend := newBackend()
	model, err := flow.New(smallConfig(), backend)
	require.NoError(t, err)
	randomize(model.Parameters(), 21)

	path := filepath.Join(t.TempDir(), "model.rnvp")
	require.NoError(t, model.Save(path))

	loaded, err := flow.Load(path, backend)
	require.NoError(t, err)
	assert.Equal(t, model.Config(), loaded.Config())

	x := input(t, backend, []float32{0.4, -0.9, 1.1, 0.2}, tensor.Shape{2, 2})
	llWant, err := model.LogLikelihood(x)
	require.NoError(t, err)
	llGot, err := loaded.LogLikelihood(x)
	require.NoError(t, err)

	assert.Equal(t, llWant.Data(), llGot.Data())
}

// A few full-batch optimizer steps on off-center data must lower the
// negative log-likelihood from its identity-init value.
func TestTrainingReducesLoss(t *testing.T) {
	backend := newBackend()
	model, err := flow.New(smallConfig(), backend)
	require.NoError(t, err)

	data := make([]float32, 0, 2*16)
	for i := 0; i < 16; i++ {
		data = append(data, 2.0+0.1*float32(i%4), -1.5+0.1*float32(i/4))
	}
	x := input(t, backend, data, tensor.Shape{16, 2})

	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.01}, backend)
	tape := backend.Tape()

	var first, last float32
	for step := 0; step < 30; step++ {
		tape.Clear()
		tape.StartRecording()

		loss, err := model.Loss(x)
		require.NoError(t, err)

		grads := autodiff.Backward(loss)
		tape.StopRecording()

		optimizer.Step(grads)
		optimizer.ZeroGrad()

		if step == 0 {
			first = loss.Item()
		}
		last = loss.Item()
	}

	assert.Less(t, last, first)
}

// Gradients must reach every trainable parameter, including the layers
// behind the zero-initialized heads.
func TestLossGradientsCoverAllParameters(t *testing.T) {
	backend := newBackend()
	model, err := flow.New(smallConfig(), backend)
	require.NoError(t, err)

	x := input(t, backend, []float32{0.5, -0.5, 1.0, 2.0}, tensor.Shape{2, 2})

	tape := backend.Tape()
	tape.Clear()
	tape.StartRecording()

	loss, err := model.Loss(x)
	require.NoError(t, err)

	grads := autodiff.Backward(loss)
	tape.StopRecording()

	for i, p := range model.Parameters() {
		g, ok := grads[p.Tensor().Raw()]
		require.True(t, ok, "parameter %d (%s) has no gradient", i, p.Name())
		assert.True(t, p.Tensor().Shape().Equal(g.Shape()), "gradient shape mismatch for %s", p.Name())
	}
}
