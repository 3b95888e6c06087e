package flow

import (
	"fmt"
	"math"
	"strconv"

	"github.com/born-ml/realnvp/internal/nn"
	"github.com/born-ml/realnvp/internal/serialization"
	"github.com/born-ml/realnvp/internal/tensor"
)

// Config configures a RealNVP model. Zero-valued fields fall back to
// defaults; only Dim is required.
type Config struct {
	Dim       int      // Feature dimension (required, >= 2)
	Couplings int      // Number of coupling layers (default: 6)
	Hidden    int      // ST-Net hidden width (default: 256)
	Depth     int      // ST-Net hidden layers (default: 4)
	Mask      MaskKind // Partition scheme (default: HalfSplit)
	Seed      uint64   // Base distribution sampling seed (default: 1)
}

func (c Config) withDefaults() Config {
	if c.Couplings == 0 {
		c.Couplings = 6
	}
	if c.Hidden == 0 {
		c.Hidden = 256
	}
	if c.Depth == 0 {
		c.Depth = 4
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
	return c
}

// RealNVP is a normalizing-flow density model.
//
// It maps data through a stack of affine coupling layers to a standard
// Gaussian latent space. The exact log-likelihood of a data point
// follows from the change of variables formula:
//
//	log p(x) = log N(f(x); 0, I) + log |det ∂f/∂x|
//
// Training maximizes this quantity; sampling runs the flow inverse on
// Gaussian draws.
type RealNVP[B tensor.Backend] struct {
	config  Config
	flow    *Flow[B]
	base    *Gaussian
	backend B
}

// New creates a RealNVP model. Every coupling layer starts as the
// identity map, so an untrained model reproduces the base density
// exactly.
func New[B tensor.Backend](config Config, backend B) (*RealNVP[B], error) {
	if config.Dim < 2 {
		return nil, fmt.Errorf("%w: dimension must be at least 2, got %d", ErrDimensionMismatch, config.Dim)
	}
	config = config.withDefaults()

	masks := Schedule(config.Mask, config.Dim, config.Couplings)
	layers := make([]*Coupling[B], len(masks))
	for i, mask := range masks {
		layers[i] = NewCoupling(mask, config.Hidden, config.Depth, backend)
	}

	return &RealNVP[B]{
		config:  config,
		flow:    NewFlow(layers...),
		base:    NewGaussian(config.Dim, config.Seed),
		backend: backend,
	}, nil
}

// Config returns the model configuration with defaults applied.
func (m *RealNVP[B]) Config() Config {
	return m.config
}

// Flow returns the underlying bijection.
func (m *RealNVP[B]) Flow() *Flow[B] {
	return m.flow
}

// Base returns the base distribution.
func (m *RealNVP[B]) Base() *Gaussian {
	return m.base
}

func (m *RealNVP[B]) checkDim(x *tensor.Tensor[float32, B]) error {
	shape := x.Shape()
	if len(shape) != 2 || shape[1] != m.config.Dim {
		return fmt.Errorf("%w: expected shape [batch, %d], got %v", ErrDimensionMismatch, m.config.Dim, shape)
	}
	return nil
}

// Forward maps data to latent space, returning the latent code and the
// per-sample log-determinant.
func (m *RealNVP[B]) Forward(x *tensor.Tensor[float32, B]) (z, logdet *tensor.Tensor[float32, B], err error) {
	if err := m.checkDim(x); err != nil {
		return nil, nil, err
	}
	z, logdet = m.flow.Forward(x)
	return z, logdet, nil
}

// Inverse maps latent codes back to data space.
func (m *RealNVP[B]) Inverse(z *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	if err := m.checkDim(z); err != nil {
		return nil, err
	}
	return m.flow.Inverse(z), nil
}

// LogLikelihood computes the exact log-likelihood of each row of x.
//
// The result has shape [batch] and stays on the gradient tape, so a
// loss derived from it is differentiable with respect to all ST-Net
// parameters.
func (m *RealNVP[B]) LogLikelihood(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	if err := m.checkDim(x); err != nil {
		return nil, err
	}
	z, logdet := m.flow.Forward(x)
	return GaussianLogProb(z).Add(logdet), nil
}

// Loss computes the mean negative log-likelihood of a batch as a
// scalar tensor.
//
// A NaN or Inf loss returns ErrNumericInstability; the caller must
// discard the step rather than feed the gradients to the optimizer.
func (m *RealNVP[B]) Loss(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	ll, err := m.LogLikelihood(x)
	if err != nil {
		return nil, err
	}
	batch := x.Shape()[0]
	loss := ll.Sum().MulScalar(-1.0 / float64(batch))

	if v := float64(loss.Item()); math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: loss=%v", ErrNumericInstability, v)
	}
	return loss, nil
}

// Sample draws n synthetic data points by pushing base-distribution
// draws through the flow inverse.
func (m *RealNVP[B]) Sample(n int) (*tensor.Tensor[float32, B], error) {
	if n < 1 {
		return nil, fmt.Errorf("flow: sample count must be positive, got %d", n)
	}
	z := tensor.New[float32, B](m.base.Sample(n, m.backend.Device()), m.backend)
	return m.flow.Inverse(z), nil
}

// Parameters returns all trainable parameters.
func (m *RealNVP[B]) Parameters() []*nn.Parameter[B] {
	return m.flow.Parameters()
}

// StateDict returns all parameters for serialization.
func (m *RealNVP[B]) StateDict() map[string]*tensor.RawTensor {
	return m.flow.StateDict()
}

// LoadStateDict restores parameters saved by StateDict.
func (m *RealNVP[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return m.flow.LoadStateDict(stateDict)
}

// Save writes the model to an .rnvp checkpoint. The configuration is
// stored in the header metadata so Load can rebuild the architecture.
func (m *RealNVP[B]) Save(path string) error {
	return m.SaveCheckpoint(path, nil)
}

// SaveCheckpoint writes the model with optional training state.
func (m *RealNVP[B]) SaveCheckpoint(path string, training *serialization.TrainingMeta) error {
	metadata := map[string]string{
		"dim":       strconv.Itoa(m.config.Dim),
		"couplings": strconv.Itoa(m.config.Couplings),
		"hidden":    strconv.Itoa(m.config.Hidden),
		"depth":     strconv.Itoa(m.config.Depth),
		"mask":      strconv.Itoa(int(m.config.Mask)),
	}
	return serialization.NewWriter(path).WriteStateDict(m.StateDict(), "RealNVP", metadata, training)
}

// Load reads an .rnvp checkpoint and reconstructs the model.
func Load[B tensor.Backend](path string, backend B) (*RealNVP[B], error) {
	reader, err := serialization.NewReader(path)
	if err != nil {
		return nil, err
	}

	header := reader.Header()
	config, err := configFromMetadata(header.Metadata)
	if err != nil {
		return nil, fmt.Errorf("invalid checkpoint %s: %w", path, err)
	}

	model, err := New(config, backend)
	if err != nil {
		return nil, err
	}

	stateDict, err := reader.ReadStateDict(backend.Device())
	if err != nil {
		return nil, err
	}
	if err := model.LoadStateDict(stateDict); err != nil {
		return nil, err
	}
	return model, nil
}

func configFromMetadata(metadata map[string]string) (Config, error) {
	var config Config
	fields := []struct {
		key string
		dst *int
	}{
		{"dim", &config.Dim},
		{"couplings", &config.Couplings},
		{"hidden", &config.Hidden},
		{"depth", &config.Depth},
	}
	for _, f := range fields {
		value, ok := metadata[f.key]
		if !ok {
			return Config{}, fmt.Errorf("missing metadata key %q", f.key)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("metadata key %q: %w", f.key, err)
		}
		*f.dst = n
	}
	if kind, ok := metadata["mask"]; ok {
		n, err := strconv.Atoi(kind)
		if err != nil {
			return Config{}, fmt.Errorf("metadata key \"mask\": %w", err)
		}
		config.Mask = MaskKind(n)
	}
	return config, nil
}
