package serialization

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/born-ml/realnvp/internal/tensor"
)

// Reader reads checkpoints from .rnvp format.
type Reader struct {
	header     Header
	flags      uint32
	version    uint32
	data       []byte // Data section
	tensorMeta map[string]TensorMeta
}

// fixedPrefixSize is magic + version + flags + headerSize.
const fixedPrefixSize = 4 + 4 + 4 + 8

// NewReader reads and validates an .rnvp file.
//
// The whole file is read into memory; checkpoints for this model family
// are at most a few megabytes.
func NewReader(path string) (*Reader, error) {
	//nolint:gosec // G304: path comes from the caller, expected for model loading
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if len(raw) < fixedPrefixSize+ChecksumSize {
		return nil, fmt.Errorf("%w: file too short (%d bytes)", ErrInvalidMagic, len(raw))
	}

	// Verify checksum over everything before the trailing digest.
	body := raw[:len(raw)-ChecksumSize]
	var stored [ChecksumSize]byte
	copy(stored[:], raw[len(raw)-ChecksumSize:])
	if sha256.Sum256(body) != stored {
		return nil, ErrChecksumMismatch
	}

	r := &Reader{}
	if err := r.parse(body); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) parse(body []byte) error {
	if string(body[:4]) != MagicBytes {
		return ErrInvalidMagic
	}

	r.version = binary.LittleEndian.Uint32(body[4:8])
	if r.version != FormatVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, r.version, FormatVersion)
	}

	r.flags = binary.LittleEndian.Uint32(body[8:12])

	headerSize := binary.LittleEndian.Uint64(body[12:20])
	if headerSize > maxHeaderSize {
		return ErrHeaderTooLarge
	}
	if uint64(len(body)) < fixedPrefixSize+headerSize {
		return fmt.Errorf("%w: header size %d exceeds file", ErrHeaderTooLarge, headerSize)
	}

	headerBytes := body[fixedPrefixSize : fixedPrefixSize+headerSize]
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	headerEnd := fixedPrefixSize + int64(headerSize)
	padding := (HeaderAlignment - (headerEnd % HeaderAlignment)) % HeaderAlignment
	dataOffset := headerEnd + padding
	if dataOffset > int64(len(body)) {
		return fmt.Errorf("%w: data section starts beyond file", ErrTensorOutOfBounds)
	}
	r.data = body[dataOffset:]

	r.tensorMeta = make(map[string]TensorMeta, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		if meta.Offset < 0 || meta.Size < 0 || meta.Offset+meta.Size > int64(len(r.data)) {
			return fmt.Errorf("%w: tensor %q", ErrTensorOutOfBounds, meta.Name)
		}
		r.tensorMeta[meta.Name] = meta
	}
	return nil
}

// Header returns the parsed file header.
func (r *Reader) Header() Header {
	return r.header
}

// TensorNames returns the names of all tensors in the file.
func (r *Reader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		names = append(names, meta.Name)
	}
	return names
}

// ReadTensor materializes the named tensor.
func (r *Reader) ReadTensor(name string, device tensor.Device) (*tensor.RawTensor, error) {
	meta, ok := r.tensorMeta[name]
	if !ok {
		return nil, fmt.Errorf("tensor %q not found", name)
	}

	dtype, ok := stringToDtype(meta.DType)
	if !ok {
		return nil, fmt.Errorf("%w: tensor %q has dtype %q", ErrUnknownDType, name, meta.DType)
	}

	shape := tensor.Shape(meta.Shape)
	raw, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", name, err)
	}
	if int64(raw.ByteSize()) != meta.Size {
		return nil, fmt.Errorf("tensor %q: size %d does not match shape %v", name, meta.Size, shape)
	}
	copy(raw.Data(), r.data[meta.Offset:meta.Offset+meta.Size])
	return raw, nil
}

// ReadStateDict materializes every tensor in the file.
func (r *Reader) ReadStateDict(device tensor.Device) (map[string]*tensor.RawTensor, error) {
	stateDict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		raw, err := r.ReadTensor(meta.Name, device)
		if err != nil {
			return nil, err
		}
		stateDict[meta.Name] = raw
	}
	return stateDict, nil
}
