package flow

import "errors"

// Sentinel errors surfaced by model-level operations.
//
// Shape misuse inside the hot path (a coupling layer fed the wrong
// width) panics instead, matching the tensor layer's convention for
// programming errors.
var (
	// ErrDimensionMismatch reports input whose feature dimension does
	// not match the dimension the model was constructed with.
	ErrDimensionMismatch = errors.New("flow: input dimension mismatch")

	// ErrNumericInstability reports a NaN or Inf loss. The training
	// step that produced it must be discarded; continuing would
	// corrupt the parameters.
	ErrNumericInstability = errors.New("flow: numeric instability (NaN or Inf)")
)
