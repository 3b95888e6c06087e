// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package flow provides the public API for RealNVP normalizing flows.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	model, err := flow.New(flow.Config{Dim: 2}, backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	loss, err := model.Loss(batch)      // exact NLL, differentiable
//	samples, err := model.Sample(1000)  // latent draws through the inverse
package flow

import (
	"github.com/born-ml/realnvp/internal/flow"
	"github.com/born-ml/realnvp/internal/serialization"
	"github.com/born-ml/realnvp/internal/tensor"
)

// Sentinel errors.
var (
	ErrDimensionMismatch  = flow.ErrDimensionMismatch
	ErrNumericInstability = flow.ErrNumericInstability
)

// MaskKind selects how coupling layers partition the feature vector.
type MaskKind = flow.MaskKind

// Mask kinds.
const (
	HalfSplit    MaskKind = flow.HalfSplit
	Checkerboard MaskKind = flow.Checkerboard
)

// Mask is a binary partition of the feature vector.
type Mask = flow.Mask

// Schedule returns the alternating mask for each of n coupling layers.
func Schedule(kind MaskKind, dim, n int) []Mask {
	return flow.Schedule(kind, dim, n)
}

// Config configures a RealNVP model.
type Config = flow.Config

// RealNVP is a normalizing-flow density model.
type RealNVP[B tensor.Backend] = flow.RealNVP[B]

// New creates a RealNVP model.
func New[B tensor.Backend](config Config, backend B) (*RealNVP[B], error) {
	return flow.New(config, backend)
}

// Load reads an .rnvp checkpoint and reconstructs the model.
func Load[B tensor.Backend](path string, backend B) (*RealNVP[B], error) {
	return flow.Load(path, backend)
}

// Coupling is a single affine coupling layer.
type Coupling[B tensor.Backend] = flow.Coupling[B]

// NewCoupling creates a coupling layer for the given mask.
func NewCoupling[B tensor.Backend](mask Mask, hidden, depth int, backend B) *Coupling[B] {
	return flow.NewCoupling(mask, hidden, depth, backend)
}

// Flow composes coupling layers into a single bijection.
type Flow[B tensor.Backend] = flow.Flow[B]

// NewFlow creates a flow from coupling layers.
func NewFlow[B tensor.Backend](layers ...*Coupling[B]) *Flow[B] {
	return flow.NewFlow(layers...)
}

// Gaussian is the standard normal base distribution.
type Gaussian = flow.Gaussian

// NewGaussian creates a standard Gaussian over dim dimensions.
func NewGaussian(dim int, seed uint64) *Gaussian {
	return flow.NewGaussian(dim, seed)
}

// TrainingMeta carries optional training state stored in checkpoints.
type TrainingMeta = serialization.TrainingMeta
