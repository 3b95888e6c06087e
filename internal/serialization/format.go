// Package serialization implements the .rnvp checkpoint format.
//
// File layout:
//
//	[0:4]   magic bytes "RNVP"
//	[4:8]   format version (uint32, little endian)
//	[8:12]  flags (uint32, little endian)
//	[12:20] header size (uint64, little endian)
//	[20:..] JSON header
//	[.. ..] zero padding to a 64-byte boundary
//	[.. ..] raw tensor data, in the order listed by the header
//	[-32:]  SHA-256 checksum of everything before it
//
// Tensors are written in sorted name order so that writing the same
// state dictionary twice produces byte-identical files.
package serialization

import (
	"time"

	"github.com/born-ml/realnvp/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "RNVP"
	FormatVersion   = 1
	HeaderAlignment = 64 // Tensor data starts on a 64-byte boundary
	ChecksumSize    = 32 // SHA-256

	// Guards against reading a corrupt header-size field.
	maxHeaderSize = 16 * 1024 * 1024
)

// Data type string constants used in the JSON header.
const (
	DTypeFloat32 = "float32"
	DTypeFloat64 = "float64"
	DTypeBool    = "bool"
)

// Flags for the .rnvp format.
const (
	FlagHasTrainingState uint32 = 1 << 0 // training metadata included
	FlagHasMetadata      uint32 = 1 << 1 // custom metadata included
)

// Header is the JSON header of an .rnvp file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	ModelType     string            `json:"model_type"` // e.g. "RealNVP"
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata"`
	Training      *TrainingMeta     `json:"training,omitempty"`
}

// TrainingMeta carries optional training state for checkpoints.
type TrainingMeta struct {
	Step          int64   `json:"step"`
	Loss          float64 `json:"loss"`
	OptimizerType string  `json:"optimizer_type"`
	LearningRate  float64 `json:"learning_rate"`
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "coupling.0.s.2.weight"
	DType  string `json:"dtype"`  // "float32", "float64" or "bool"
	Shape  []int  `json:"shape"`  //
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Bytes
}

func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Float64:
		return DTypeFloat64
	case tensor.Bool:
		return DTypeBool
	default:
		return "unknown"
	}
}

func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeFloat64:
		return tensor.Float64, true
	case DTypeBool:
		return tensor.Bool, true
	default:
		return 0, false
	}
}
