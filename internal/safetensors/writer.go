package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// RawTensor is one tensor's encoded bytes in any dtype.
type RawTensor struct {
	Name  string
	DType string
	Shape []int64
	Data  []byte
}

// Encode narrows or copies t's values into dtype, which must be F32, F16
// or BF16.
func Encode(t Tensor, dtype string) (RawTensor, error) {
	dtype = strings.ToUpper(dtype)

	enc, ok := encoders[dtype]
	if !ok {
		return RawTensor{}, fmt.Errorf("safetensors: tensor %q: cannot encode dtype %q", t.Name, dtype)
	}

	data := make([]byte, 0, len(t.Data)*elementSizes[dtype])
	for _, v := range t.Data {
		data = enc(data, v)
	}

	return RawTensor{Name: t.Name, DType: dtype, Shape: slices.Clone(t.Shape), Data: data}, nil
}

// EncodeTensors serializes float32 tensors into safetensors format, laid out
// in name order. A non-empty metadata map is stored under MetadataKey.
func EncodeTensors(tensors []Tensor, metadata map[string]string) ([]byte, error) {
	raw := make([]RawTensor, 0, len(tensors))

	for _, t := range tensors {
		rt, err := Encode(t, dtypeF32)
		if err != nil {
			return nil, err
		}

		raw = append(raw, rt)
	}

	return EncodeRaw(raw, metadata)
}

// EncodeRaw serializes tensors with their bytes copied unchanged, laid out
// in name order.
func EncodeRaw(tensors []RawTensor, metadata map[string]string) ([]byte, error) {
	if len(tensors) == 0 {
		return nil, errors.New("safetensors: no tensors to encode")
	}

	sorted := slices.SortedFunc(slices.Values(tensors), func(a, b RawTensor) int {
		return strings.Compare(a.Name, b.Name)
	})

	header := make(map[string]any, len(sorted)+1)
	if len(metadata) > 0 {
		header[MetadataKey] = metadata
	}

	size := 0
	for _, t := range sorted {
		size += len(t.Data)
	}

	body := make([]byte, 0, size)

	for _, t := range sorted {
		name := strings.TrimSpace(t.Name)
		if err := checkTensor(name, t, header); err != nil {
			return nil, err
		}

		start := len(body)
		body = append(body, t.Data...)

		header[name] = headerEntry{
			DType:   strings.ToUpper(t.DType),
			Shape:   append([]int64{}, t.Shape...),
			Offsets: [2]int{start, len(body)},
		}
	}

	return assemble(header, body)
}

// checkTensor rejects names the header cannot hold and data that does not
// fill the shape.
func checkTensor(name string, t RawTensor, header map[string]any) error {
	switch {
	case name == "":
		return errors.New("safetensors: tensor name must not be empty")
	case name == MetadataKey:
		return fmt.Errorf("safetensors: tensor name %q is reserved", name)
	}

	if _, dup := header[name]; dup {
		return fmt.Errorf("safetensors: duplicate tensor name %q", name)
	}

	size, err := elementSize(t.DType)
	if err != nil {
		return fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	n, err := elementCount(t.Shape)
	if err != nil {
		return fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	if want := n * int64(size); int64(len(t.Data)) != want {
		return fmt.Errorf("safetensors: tensor %q shape %v needs %d bytes of %s, got %d",
			name, t.Shape, want, strings.ToUpper(t.DType), len(t.Data))
	}

	return nil
}

// WriteFile writes float32 tensors into a .safetensors file. The file is
// replaced atomically.
func WriteFile(path string, tensors []Tensor, metadata map[string]string) error {
	data, err := EncodeTensors(tensors, metadata)
	if err != nil {
		return err
	}

	return writeFileAtomic(path, data)
}

// WriteRawFile is WriteFile for tensors already encoded, whatever their
// dtype.
func WriteRawFile(path string, tensors []RawTensor, metadata map[string]string) error {
	data, err := EncodeRaw(tensors, metadata)
	if err != nil {
		return err
	}

	return writeFileAtomic(path, data)
}

// UpdateMetadata merges metadata into the header of the file at path and
// rewrites it in place. Tensor bytes are copied unchanged, whatever their
// dtype.
func UpdateMetadata(path string, metadata map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("safetensors: read %s: %w", path, err)
	}

	headerEnd, header, err := decodeHeader(data)
	if err != nil {
		return err
	}

	merged, err := parseMetadata(header[MetadataKey])
	if err != nil {
		return err
	}

	if merged == nil {
		merged = make(map[string]string, len(metadata))
	}

	maps.Copy(merged, metadata)

	encoded, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("safetensors: encode metadata: %w", err)
	}

	out := make(map[string]any, len(header))
	for k, v := range header {
		out[k] = v
	}

	out[MetadataKey] = json.RawMessage(encoded)

	blob, err := assemble(out, data[headerEnd:])
	if err != nil {
		return err
	}

	return writeFileAtomic(path, blob)
}

func assemble(header map[string]any, raw []byte) ([]byte, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("safetensors: encode header: %w", err)
	}

	out := make([]byte, 0, 8+len(headerJSON)+len(raw))
	lenPrefix := make([]byte, 8)
	binary.LittleEndian.PutUint64(lenPrefix, uint64(len(headerJSON)))
	out = append(out, lenPrefix...)
	out = append(out, headerJSON...)
	out = append(out, raw...)

	return out, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("safetensors: create temp for %s: %w", path, err)
	}

	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("safetensors: write %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("safetensors: write %s: %w", path, err)
	}

	if err := os.Chmod(name, 0o644); err != nil {
		return fmt.Errorf("safetensors: chmod %s: %w", path, err)
	}

	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("safetensors: replace %s: %w", path, err)
	}

	return nil
}
