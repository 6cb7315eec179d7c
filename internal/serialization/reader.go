package serialization

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/born-ml/trainer/internal/tensor"
)

// ReaderOptions configures decoding.
type ReaderOptions struct {
	SkipChecksumValidation bool
}

// File is a decoded .born file.
type File struct {
	Header    Header
	Flags     uint32
	StateDict map[string]*tensor.RawTensor
}

// Split separates model tensors from optimizer tensors, stripping the
// optimizer prefix.
func (f *File) Split() (model, optimizer map[string]*tensor.RawTensor) {
	model = make(map[string]*tensor.RawTensor)
	optimizer = make(map[string]*tensor.RawTensor)
	for name, raw := range f.StateDict {
		if rest, ok := strings.CutPrefix(name, OptimizerPrefix); ok {
			optimizer[rest] = raw
			continue
		}
		model[name] = raw
	}
	return model, optimizer
}

// Decode parses a complete .born image.
func Decode(buf []byte, opts ReaderOptions) (*File, error) {
	if len(buf) < FixedHeaderSize {
		return nil, ErrTruncated
	}
	if !bytes.Equal(buf[0:4], []byte(MagicBytes)) {
		return nil, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(buf[4:8]); version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	flags := binary.LittleEndian.Uint32(buf[8:12])
	headerSize := binary.LittleEndian.Uint64(buf[16:24])
	dataSize := binary.LittleEndian.Uint64(buf[24:32])
	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}

	headerEnd := int64(FixedHeaderSize) + int64(headerSize)
	dataStart := alignedOffset(headerEnd)
	dataEnd := dataStart + int64(dataSize) //nolint:gosec // bounded by len(buf) below
	if int64(len(buf)) < dataEnd {
		return nil, ErrTruncated
	}

	var header Header
	if err := json.Unmarshal(buf[FixedHeaderSize:headerEnd], &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	data := buf[dataStart:dataEnd]
	if !opts.SkipChecksumValidation {
		var stored [ChecksumSize]byte
		copy(stored[:], buf[ChecksumOffset:ChecksumOffset+ChecksumSize])
		if sha256.Sum256(data) != stored {
			return nil, ErrChecksumMismatch
		}
	}

	if err := ValidateHeader(&header, int64(len(data))); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	stateDict := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		dt, _ := tensor.ParseDataType(meta.DType)
		chunk := make([]byte, meta.Size)
		copy(chunk, data[meta.Offset:meta.Offset+meta.Size])
		raw, err := tensor.FromBytes(chunk, tensor.Shape(meta.Shape), dt)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
		}
		stateDict[meta.Name] = raw
	}

	return &File{Header: header, Flags: flags, StateDict: stateDict}, nil
}

// ReadFile reads and decodes the .born file at path.
func ReadFile(path string, opts ReaderOptions) (*File, error) {
	//nolint:gosec // G304: checkpoint paths come from configuration
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	f, err := Decode(buf, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}
