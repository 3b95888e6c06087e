package flow

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/realnvp/internal/tensor"
)

// Gaussian is the standard multivariate normal base distribution with
// independent unit-variance dimensions.
//
// Density evaluation and sampling run off-tape in float64 via gonum;
// the training objective expresses the same log-density with tensor
// operations (see GaussianLogProb) so gradients can flow through it.
type Gaussian struct {
	dim  int
	dist distuv.Normal
}

// NewGaussian creates a standard Gaussian over dim dimensions, seeded
// for reproducible sampling.
func NewGaussian(dim int, seed uint64) *Gaussian {
	return &Gaussian{
		dim: dim,
		dist: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewSource(seed),
		},
	}
}

// Dim returns the dimension.
func (g *Gaussian) Dim() int {
	return g.dim
}

// LogDensity evaluates the log-density of each row of z.
//
// Input shape: [batch, dim]; returns one value per row. Dimensions are
// independent, so the joint log-density is the sum of the univariate
// ones.
func (g *Gaussian) LogDensity(z *tensor.RawTensor) []float64 {
	shape := z.Shape()
	if len(shape) != 2 || shape[1] != g.dim {
		panic("flow: Gaussian.LogDensity expects input of shape [batch, dim]")
	}

	data := z.AsFloat32()
	out := make([]float64, shape[0])
	for i := range out {
		row := data[i*g.dim : (i+1)*g.dim]
		sum := 0.0
		for _, v := range row {
			sum += g.dist.LogProb(float64(v))
		}
		out[i] = sum
	}
	return out
}

// Sample draws n latent vectors, returned as a float32 tensor of shape
// [n, dim].
func (g *Gaussian) Sample(n int, device tensor.Device) *tensor.RawTensor {
	raw, err := tensor.NewRaw(tensor.Shape{n, g.dim}, tensor.Float32, device)
	if err != nil {
		panic(err)
	}
	data := raw.AsFloat32()
	for i := range data {
		data[i] = float32(g.dist.Rand())
	}
	return raw
}

// log(2π)
const log2Pi = 1.8378770664093453

// GaussianLogProb computes the standard-normal log-density of each row
// of z using tensor operations, so the result stays on the gradient
// tape:
//
//	log p(z) = -0.5 * sum(z²) - 0.5 * D * log(2π)
//
// Input shape: [batch, dim]; output shape: [batch].
func GaussianLogProb[B tensor.Backend](z *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	dim := z.Shape()[1]
	sumSq := z.Mul(z).SumDim(1, false)
	return sumSq.MulScalar(-0.5).AddScalar(-0.5 * float64(dim) * log2Pi)
}
