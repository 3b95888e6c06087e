package flow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/realnvp/internal/flow"
)

func TestScheduleHalfSplit(t *testing.T) {
	masks := flow.Schedule(flow.HalfSplit, 4, 3)

	assert.Equal(t, flow.Mask{1, 1, 0, 0}, masks[0])
	assert.Equal(t, flow.Mask{0, 0, 1, 1}, masks[1])
	assert.Equal(t, flow.Mask{1, 1, 0, 0}, masks[2])
}

func TestScheduleCheckerboard(t *testing.T) {
	masks := flow.Schedule(flow.Checkerboard, 4, 2)

	assert.Equal(t, flow.Mask{1, 0, 1, 0}, masks[0])
	assert.Equal(t, flow.Mask{0, 1, 0, 1}, masks[1])
}

func TestScheduleOddDimension(t *testing.T) {
	masks := flow.Schedule(flow.HalfSplit, 5, 2)

	// dim/2 pass-through dims, so the split is 2/3 for dim 5.
	assert.Equal(t, flow.Mask{1, 1, 0, 0, 0}, masks[0])
	assert.Equal(t, 3, masks[1].NumPassThrough())
}

// With at least two layers the alternating schedule transforms every
// dimension somewhere in the stack.
func TestScheduleCoversAllDimensions(t *testing.T) {
	for _, kind := range []flow.MaskKind{flow.HalfSplit, flow.Checkerboard} {
		for _, dim := range []int{2, 3, 5, 8} {
			masks := flow.Schedule(kind, dim, 2)

			for d := 0; d < dim; d++ {
				transformed := false
				for _, m := range masks {
					if m[d] == 0 {
						transformed = true
					}
				}
				assert.True(t, transformed, "%v dim %d of %d never transformed", kind, d, dim)
			}
		}
	}
}

func TestMaskComplement(t *testing.T) {
	m := flow.Mask{1, 0, 1, 0}

	assert.Equal(t, flow.Mask{0, 1, 0, 1}, m.Complement())
	assert.Equal(t, m, m.Complement().Complement())
	assert.Equal(t, 2, m.NumPassThrough())
}

func TestSchedulePanics(t *testing.T) {
	assert.Panics(t, func() { flow.Schedule(flow.HalfSplit, 1, 2) })
	assert.Panics(t, func() { flow.Schedule(flow.HalfSplit, 4, 0) })
	assert.Panics(t, func() { flow.Schedule(flow.MaskKind(99), 4, 2) })
}

func TestMaskKindString(t *testing.T) {
	assert.Equal(t, "half-split", flow.HalfSplit.String())
	assert.Equal(t, "checkerboard", flow.Checkerboard.String())
}
