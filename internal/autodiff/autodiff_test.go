package autodiff_test

import (
	"testing"

	"github.com/born-ml/realnvp/internal/autodiff"
	"github.com/born-ml/realnvp/internal/backend/cpu"
	"github.com/born-ml/realnvp/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

func fromSlice(t *testing.T, backend Backend, data []float32, shape tensor.Shape) *tensor.Tensor[float32, Backend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, backend)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	return x
}

func gradOf(t *testing.T, grads map[*tensor.RawTensor]*tensor.RawTensor, x *tensor.Tensor[float32, Backend]) []float32 {
	t.Helper()
	g, ok := grads[x.Raw()]
	if !ok {
		t.Fatal("no gradient recorded for tensor")
	}
	return g.AsFloat32()
}

func assertFloats(t *testing.T, expected, actual []float32, tol float32, msg string) {
	t.Helper()
	if len(expected) != len(actual) {
		t.Fatalf("%s: length %d, want %d", msg, len(actual), len(expected))
	}
	for i := range expected {
		if diff := expected[i] - actual[i]; diff > tol || diff < -tol {
			t.Errorf("%s: element %d = %v, want %v", msg, i, actual[i], expected[i])
		}
	}
}

func TestTapeRecording(t *testing.T) {
	backend := newBackend()
	tape := backend.Tape()

	x := fromSlice(t, backend, []float32{1, 2}, tensor.Shape{2})

	// Not recording yet.
	_ = x.Add(x)
	if tape.NumOps() != 0 {
		t.Errorf("ops recorded while stopped: %d", tape.NumOps())
	}

	tape.StartRecording()
	_ = x.Add(x).Mul(x)
	if tape.NumOps() != 2 {
		t.Errorf("NumOps = %d, want 2", tape.NumOps())
	}
	tape.StopRecording()

	tape.Clear()
	if tape.NumOps() != 0 {
		t.Errorf("NumOps after Clear = %d, want 0", tape.NumOps())
	}
}

func TestAddBackward(t *testing.T) {
	backend := newBackend()
	x := fromSlice(t, backend, []float32{1, 2, 3}, tensor.Shape{3})
	y := fromSlice(t, backend, []float32{4, 5, 6}, tensor.Shape{3})

	backend.Tape().StartRecording()
	z := x.Add(y).Sum()
	grads := autodiff.Backward(z)

	assertFloats(t, []float32{1, 1, 1}, gradOf(t, grads, x), 0, "d(sum(x+y))/dx")
	assertFloats(t, []float32{1, 1, 1}, gradOf(t, grads, y), 0, "d(sum(x+y))/dy")
}

func TestMulBackward(t *testing.T) {
	backend := newBackend()
	x := fromSlice(t, backend, []float32{2, 3}, tensor.Shape{2})
	y := fromSlice(t, backend, []float32{5, 7}, tensor.Shape{2})

	backend.Tape().StartRecording()
	z := x.Mul(y).Sum()
	grads := autodiff.Backward(z)

	assertFloats(t, []float32{5, 7}, gradOf(t, grads, x), 0, "d(sum(x*y))/dx = y")
	assertFloats(t, []float32{2, 3}, gradOf(t, grads, y), 0, "d(sum(x*y))/dy = x")
}

func TestSubBackward(t *testing.T) {
	backend := newBackend()
	x := fromSlice(t, backend, []float32{2, 3}, tensor.Shape{2})
	y := fromSlice(t, backend, []float32{5, 7}, tensor.Shape{2})

	backend.Tape().StartRecording()
	z := x.Sub(y).Sum()
	grads := autodiff.Backward(z)

	assertFloats(t, []float32{1, 1}, gradOf(t, grads, x), 0, "d(sum(x-y))/dx")
	assertFloats(t, []float32{-1, -1}, gradOf(t, grads, y), 0, "d(sum(x-y))/dy")
}

func TestExpBackward(t *testing.T) {
	backend := newBackend()
	x := fromSlice(t, backend, []float32{0, 1}, tensor.Shape{2})

	backend.Tape().StartRecording()
	y := x.Exp()
	z := y.Sum()
	grads := autodiff.Backward(z)

	// d(exp(x))/dx = exp(x)
	assertFloats(t, y.Data(), gradOf(t, grads, x), 1e-6, "exp gradient")
}

func TestMatMulBackward(t *testing.T) {
	backend := newBackend()
	a := fromSlice(t, backend, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := fromSlice(t, backend, []float32{5, 6, 7, 8}, tensor.Shape{2, 2})

	backend.Tape().StartRecording()
	z := a.MatMul(b).Sum()
	grads := autodiff.Backward(z)

	// d(sum(A@B))/dA = ones @ B^T, each row is the row sums of B.
	assertFloats(t, []float32{11, 15, 11, 15}, gradOf(t, grads, a), 1e-6, "matmul gradA")
	// d(sum(A@B))/dB = A^T @ ones, each column is the column sums of A.
	assertFloats(t, []float32{4, 4, 6, 6}, gradOf(t, grads, b), 1e-6, "matmul gradB")
}

func TestBroadcastGradientReduced(t *testing.T) {
	backend := newBackend()
	x := fromSlice(t, backend, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	bias := fromSlice(t, backend, []float32{10, 20, 30}, tensor.Shape{1, 3})

	backend.Tape().StartRecording()
	z := x.Add(bias).Sum()
	grads := autodiff.Backward(z)

	// The bias broadcasts over 2 rows; its gradient sums them back.
	g := grads[bias.Raw()]
	if !g.Shape().Equal(tensor.Shape{1, 3}) {
		t.Fatalf("bias grad shape = %v, want [1 3]", g.Shape())
	}
	assertFloats(t, []float32{2, 2, 2}, g.AsFloat32(), 0, "broadcast-reduced bias gradient")
}

func TestGradientAccumulation(t *testing.T) {
	backend := newBackend()
	x := fromSlice(t, backend, []float32{3}, tensor.Shape{1})

	backend.Tape().StartRecording()
	// x feeds two operations; gradients must add up: d(x*x + x)/dx = 2x + 1 = 7.
	z := x.Mul(x).Add(x).Sum()
	grads := autodiff.Backward(z)

	assertFloats(t, []float32{7}, gradOf(t, grads, x), 1e-6, "accumulated gradient")
}

func TestTanhBackward(t *testing.T) {
	backend := newBackend()
	x := fromSlice(t, backend, []float32{0.5}, tensor.Shape{1})

	backend.Tape().StartRecording()
	y := tensor.New[float32, Backend](backend.Tanh(x.Raw()), backend)
	grads := autodiff.Backward(y.Sum())

	// d(tanh)/dx = 1 - tanh².
	th := y.Data()[0]
	assertFloats(t, []float32{1 - th*th}, gradOf(t, grads, x), 1e-6, "tanh gradient")
}

func TestReLUBackward(t *testing.T) {
	backend := newBackend()
	x := fromSlice(t, backend, []float32{-2, 3}, tensor.Shape{2})

	backend.Tape().StartRecording()
	y := tensor.New[float32, Backend](backend.ReLU(x.Raw()), backend)

	assertFloats(t, []float32{0, 3}, y.Data(), 0, "relu forward")

	grads := autodiff.Backward(y.Sum())
	assertFloats(t, []float32{0, 1}, gradOf(t, grads, x), 0, "relu gradient")
}

func TestSumDimBackward(t *testing.T) {
	backend := newBackend()
	x := fromSlice(t, backend, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	backend.Tape().StartRecording()
	z := x.SumDim(1, false).Sum()
	grads := autodiff.Backward(z)

	assertFloats(t, []float32{1, 1, 1, 1, 1, 1}, gradOf(t, grads, x), 0, "sumdim gradient")
}
