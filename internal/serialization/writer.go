package serialization

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/born-ml/realnvp/internal/tensor"
)

// Writer writes checkpoints in .rnvp format.
type Writer struct {
	path string
}

// NewWriter creates a writer targeting the given path. The file is
// created when WriteStateDict is called.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// WriteStateDict writes a state dictionary to the file.
//
// modelType labels the header ("RealNVP"); metadata and training are
// optional and may be nil.
func (w *Writer) WriteStateDict(stateDict map[string]*tensor.RawTensor, modelType string, metadata map[string]string, training *TrainingMeta) error {
	header := Header{
		FormatVersion: FormatVersion,
		ModelType:     modelType,
		CreatedAt:     time.Now().UTC(),
		Tensors:       make([]TensorMeta, 0, len(stateDict)),
		Metadata:      metadata,
		Training:      training,
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	// Sorted order makes the output deterministic.
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	var currentOffset int64
	for _, name := range names {
		raw := stateDict[name]
		size := int64(raw.ByteSize())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtypeToString(raw.DType()),
			Shape:  []int(raw.Shape()),
			Offset: currentOffset,
			Size:   size,
		})
		currentOffset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(MagicBytes)

	if err := binary.Write(&buf, binary.LittleEndian, uint32(FormatVersion)); err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if training != nil {
		flags |= FlagHasTrainingState
	}
	if err := binary.Write(&buf, binary.LittleEndian, flags); err != nil {
		return fmt.Errorf("failed to write flags: %w", err)
	}

	if err := binary.Write(&buf, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	buf.Write(headerJSON)

	// Pad so the data section starts on an aligned boundary.
	padding := (HeaderAlignment - (buf.Len() % HeaderAlignment)) % HeaderAlignment
	buf.Write(make([]byte, padding))

	for _, name := range names {
		buf.Write(stateDict[name].Data())
	}

	checksum := sha256.Sum256(buf.Bytes())
	buf.Write(checksum[:])

	if err := os.WriteFile(w.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.path, err)
	}
	return nil
}
