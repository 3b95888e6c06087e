package cpu

import (
	"math"
	"testing"

	"github.com/born-ml/realnvp/internal/tensor"
)

func rawFromSlice(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	copy(raw.AsFloat32(), data)
	return raw
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

func TestAdd(t *testing.T) {
	backend := New()
	a := rawFromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := rawFromSlice(t, []float32{10, 20, 30, 40}, tensor.Shape{2, 2})

	result := backend.Add(a, b)
	assertFloats(t, []float32{11, 22, 33, 44}, result.AsFloat32(), 0, "Add")

	// Operands untouched.
	assertFloats(t, []float32{1, 2, 3, 4}, a.AsFloat32(), 0, "Add operand a")
}

func TestAddBroadcastRow(t *testing.T) {
	backend := New()
	a := rawFromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := rawFromSlice(t, []float32{10, 20, 30}, tensor.Shape{1, 3})

	result := backend.Add(a, b)
	if !result.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("result shape = %v, want [2 3]", result.Shape())
	}
	assertFloats(t, []float32{11, 22, 33, 14, 25, 36}, result.AsFloat32(), 0, "broadcast Add")
}

func TestSubMulDiv(t *testing.T) {
	backend := New()
	a := rawFromSlice(t, []float32{8, 6, 4, 2}, tensor.Shape{4})
	b := rawFromSlice(t, []float32{2, 2, 4, 4}, tensor.Shape{4})

	assertFloats(t, []float32{6, 4, 0, -2}, backend.Sub(a, b).AsFloat32(), 0, "Sub")
	assertFloats(t, []float32{16, 12, 16, 8}, backend.Mul(a, b).AsFloat32(), 0, "Mul")
	assertFloats(t, []float32{4, 3, 1, 0.5}, backend.Div(a, b).AsFloat32(), 0, "Div")
}

func TestMatMul(t *testing.T) {
	backend := New()
	a := rawFromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := rawFromSlice(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	result := backend.MatMul(a, b)
	if !result.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("result shape = %v, want [2 2]", result.Shape())
	}
	assertFloats(t, []float32{58, 64, 139, 154}, result.AsFloat32(), 0, "MatMul")
}

func TestMatMulShapeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for inner dimension mismatch")
		}
	}()
	backend := New()
	a := rawFromSlice(t, make([]float32, 6), tensor.Shape{2, 3})
	b := rawFromSlice(t, make([]float32, 4), tensor.Shape{2, 2})
	backend.MatMul(a, b)
}

func TestScalarOps(t *testing.T) {
	backend := New()
	x := rawFromSlice(t, []float32{1, -2, 3}, tensor.Shape{3})

	assertFloats(t, []float32{2, -4, 6}, backend.MulScalar(x, 2).AsFloat32(), 0, "MulScalar")
	assertFloats(t, []float32{1.5, -1.5, 3.5}, backend.AddScalar(x, 0.5).AsFloat32(), 0, "AddScalar")
}

func TestExpLog(t *testing.T) {
	backend := New()
	x := rawFromSlice(t, []float32{0, 1, -1}, tensor.Shape{3})

	e := float32(math.E)
	assertFloats(t, []float32{1, e, 1 / e}, backend.Exp(x).AsFloat32(), 1e-6, "Exp")

	y := rawFromSlice(t, []float32{1, e, 10}, tensor.Shape{3})
	assertFloats(t, []float32{0, 1, float32(math.Log(10))}, backend.Log(y).AsFloat32(), 1e-6, "Log")
}

func TestSum(t *testing.T) {
	backend := New()
	x := rawFromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

	result := backend.Sum(x)
	if !result.Shape().Equal(tensor.Shape{}) {
		t.Fatalf("Sum shape = %v, want scalar", result.Shape())
	}
	assertFloats(t, []float32{10}, result.AsFloat32(), 0, "Sum")
}

func TestSumDim(t *testing.T) {
	backend := New()
	x := rawFromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	rows := backend.SumDim(x, 1, false)
	if !rows.Shape().Equal(tensor.Shape{2}) {
		t.Fatalf("SumDim(1) shape = %v, want [2]", rows.Shape())
	}
	assertFloats(t, []float32{6, 15}, rows.AsFloat32(), 0, "SumDim dim=1")

	cols := backend.SumDim(x, 0, true)
	if !cols.Shape().Equal(tensor.Shape{1, 3}) {
		t.Fatalf("SumDim(0, keep) shape = %v, want [1 3]", cols.Shape())
	}
	assertFloats(t, []float32{5, 7, 9}, cols.AsFloat32(), 0, "SumDim dim=0 keepDim")
}

func TestMeanDim(t *testing.T) {
	backend := New()
	x := rawFromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	result := backend.MeanDim(x, 1, false)
	assertFloats(t, []float32{2, 5}, result.AsFloat32(), 1e-6, "MeanDim dim=1")
}

func TestReshape(t *testing.T) {
	backend := New()
	x := rawFromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	result := backend.Reshape(x, tensor.Shape{3, 2})
	if !result.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("Reshape shape = %v, want [3 2]", result.Shape())
	}
	assertFloats(t, []float32{1, 2, 3, 4, 5, 6}, result.AsFloat32(), 0, "Reshape preserves order")
}

func TestTranspose2D(t *testing.T) {
	backend := New()
	x := rawFromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	result := backend.Transpose(x)
	if !result.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("Transpose shape = %v, want [3 2]", result.Shape())
	}
	assertFloats(t, []float32{1, 4, 2, 5, 3, 6}, result.AsFloat32(), 0, "Transpose")
}

func TestTransposeRoundTrip(t *testing.T) {
	backend := New()
	x := rawFromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	back := backend.Transpose(backend.Transpose(x))
	assertFloats(t, x.AsFloat32(), back.AsFloat32(), 0, "double transpose")
}
