// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// It wraps any backend with a gradient tape that records operations
// during the forward pass:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := model.Loss(batch)
//	grads := autodiff.Backward(loss)
package autodiff

import (
	"github.com/born-ml/realnvp/internal/autodiff"
	"github.com/born-ml/realnvp/internal/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates a new autodiff backend wrapping the given backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// BackwardCapable is implemented by backends that can run a backward pass.
type BackwardCapable = autodiff.BackwardCapable

// Backward computes gradients of a scalar output with respect to every
// tensor recorded on the tape.
func Backward[T tensor.DType, B tensor.Backend](output *tensor.Tensor[T, B]) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(output)
}
