package flow

import (
	"fmt"

	"github.com/born-ml/realnvp/internal/nn"
	"github.com/born-ml/realnvp/internal/tensor"
)

// STNet computes the per-dimension scale and translation of a coupling
// layer from the masked input.
//
// Scale and translation use two independent networks of the same shape:
// depth hidden layers with ReLU, then a linear head. The scale head is
// followed by Tanh so log-scales stay in (-1, 1) and exp(s) cannot
// overflow. Head layers are zero-initialized, which makes a freshly
// constructed coupling layer the identity map.
//
// Both networks map the full D-dimensional (masked) input to D outputs;
// the coupling layer zeroes the entries belonging to the pass-through
// half before use.
type STNet[B tensor.Backend] struct {
	s *nn.Sequential[B]
	t *nn.Sequential[B]
}

// NewSTNet creates an ST-Net for dim features with depth hidden layers
// of the given width.
func NewSTNet[B tensor.Backend](dim, hidden, depth int, backend B) *STNet[B] {
	return &STNet[B]{
		s: buildNet(dim, hidden, depth, true, backend),
		t: buildNet(dim, hidden, depth, false, backend),
	}
}

func buildNet[B tensor.Backend](dim, hidden, depth int, bounded bool, backend B) *nn.Sequential[B] {
	if depth < 1 {
		panic(fmt.Sprintf("flow: ST-Net depth must be at least 1, got %d", depth))
	}

	net := nn.NewSequential[B]()
	net.Add(nn.NewLinear(dim, hidden, backend))
	net.Add(nn.NewReLU[B]())
	for i := 1; i < depth; i++ {
		net.Add(nn.NewLinear(hidden, hidden, backend))
		net.Add(nn.NewReLU[B]())
	}

	head := nn.NewLinear(hidden, dim, backend)
	zeroParam(head.Weight())
	zeroParam(head.Bias())
	net.Add(head)

	if bounded {
		net.Add(nn.NewTanh[B]())
	}
	return net
}

func zeroParam[B tensor.Backend](p *nn.Parameter[B]) {
	data := p.Tensor().Data()
	for i := range data {
		data[i] = 0
	}
}

// Forward computes scale and translation for the masked input.
//
// Input shape: [batch, dim]. Both outputs have the same shape.
func (n *STNet[B]) Forward(masked *tensor.Tensor[float32, B]) (s, t *tensor.Tensor[float32, B]) {
	return n.s.Forward(masked), n.t.Forward(masked)
}

// Parameters returns the parameters of both networks.
func (n *STNet[B]) Parameters() []*nn.Parameter[B] {
	return append(n.s.Parameters(), n.t.Parameters()...)
}

// StateDict returns parameters keyed "s.{layer}.{name}" and
// "t.{layer}.{name}".
func (n *STNet[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for name, raw := range n.s.StateDict() {
		stateDict["s."+name] = raw
	}
	for name, raw := range n.t.StateDict() {
		stateDict["t."+name] = raw
	}
	return stateDict
}

// LoadStateDict loads parameters saved by StateDict.
func (n *STNet[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	sDict := make(map[string]*tensor.RawTensor)
	tDict := make(map[string]*tensor.RawTensor)
	for key, raw := range stateDict {
		switch {
		case len(key) > 2 && key[:2] == "s.":
			sDict[key[2:]] = raw
		case len(key) > 2 && key[:2] == "t.":
			tDict[key[2:]] = raw
		}
	}
	if err := n.s.LoadStateDict(sDict); err != nil {
		return fmt.Errorf("scale net: %w", err)
	}
	if err := n.t.LoadStateDict(tDict); err != nil {
		return fmt.Errorf("translation net: %w", err)
	}
	return nil
}
