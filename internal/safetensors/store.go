package safetensors

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
)

// ErrTensorNotFound is returned when a store has no tensor of the requested
// name.
var ErrTensorNotFound = errors.New("safetensors: tensor not found")

// Tensor holds one tensor decoded to float32.
type Tensor struct {
	Name  string
	Shape []int64
	Data  []float32
}

// Rows splits a tensor of two or more dimensions along its first axis.
// The rows share t.Data.
func (t Tensor) Rows() ([][]float32, error) {
	if len(t.Shape) < 2 {
		return nil, fmt.Errorf("safetensors: tensor %q has shape %v, need at least 2 dimensions", t.Name, t.Shape)
	}

	n := int(t.Shape[0])
	if n == 0 {
		return nil, nil
	}

	width := len(t.Data) / n
	rows := make([][]float32, n)

	for i := range rows {
		rows[i] = t.Data[i*width : (i+1)*width : (i+1)*width]
	}

	return rows, nil
}

// KeyMapper renames tensors while a store is opened. Returning keep=false
// drops the tensor.
type KeyMapper func(name string) (mapped string, keep bool)

// TrimPrefixes returns a KeyMapper that strips the first matching prefix,
// such as the "module." added by data-parallel training wrappers.
func TrimPrefixes(prefixes ...string) KeyMapper {
	return func(name string) (string, bool) {
		for _, p := range prefixes {
			if after, ok := strings.CutPrefix(name, p); ok {
				return after, true
			}
		}

		return name, true
	}
}

type StoreOptions struct {
	KeyMapper KeyMapper
}

// Store holds a whole checkpoint in memory and decodes tensors on demand.
type Store struct {
	data     []byte
	slots    map[string]slot
	metadata map[string]string
}

// slot locates one tensor's bytes inside Store.data.
type slot struct {
	source string
	dtype  string
	shape  []int64
	lo, hi int
}

type headerEntry struct {
	DType   string  `json:"dtype"`
	Shape   []int64 `json:"shape"`
	Offsets [2]int  `json:"data_offsets"`
}

func parseHeaderEntry(raw json.RawMessage) (headerEntry, error) {
	var e headerEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return headerEntry{}, err
	}

	return e, nil
}

func OpenStore(path string, opts StoreOptions) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors: read %s: %w", path, err)
	}

	s, err := LoadStore(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return s, nil
}

// LoadStore checks every header entry against data before returning. Two
// tensors mapped to the same name are an error.
func LoadStore(data []byte, opts StoreOptions) (*Store, error) {
	mapName := opts.KeyMapper
	if mapName == nil {
		mapName = func(name string) (string, bool) { return name, true }
	}

	headerEnd, header, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}

	metadata, err := parseMetadata(header[MetadataKey])
	if err != nil {
		return nil, err
	}

	s := &Store{data: data, slots: make(map[string]slot, len(header)), metadata: metadata}

	for _, source := range slices.Sorted(maps.Keys(header)) {
		if source == MetadataKey {
			continue
		}

		sl, err := locate(source, header[source], headerEnd, len(data))
		if err != nil {
			return nil, err
		}

		name, keep := mapName(source)
		if !keep {
			continue
		}

		if name = strings.TrimSpace(name); name == "" {
			return nil, fmt.Errorf("safetensors: tensor %q maps to an empty name", source)
		}

		if prev, dup := s.slots[name]; dup {
			return nil, fmt.Errorf("safetensors: tensors %q and %q both map to %q", prev.source, source, name)
		}

		s.slots[name] = sl
	}

	if len(s.slots) == 0 {
		return nil, errors.New("safetensors: no tensors found")
	}

	return s, nil
}

// locate validates one header entry and resolves its absolute byte range.
func locate(source string, raw json.RawMessage, headerEnd, size int) (slot, error) {
	e, err := parseHeaderEntry(raw)
	if err != nil {
		return slot{}, fmt.Errorf("safetensors: decode header entry %q: %w", source, err)
	}

	width, err := elementSize(e.DType)
	if err != nil {
		return slot{}, fmt.Errorf("safetensors: tensor %q: %w", source, err)
	}

	n, err := elementCount(e.Shape)
	if err != nil {
		return slot{}, fmt.Errorf("safetensors: tensor %q: %w", source, err)
	}

	lo, hi := headerEnd+e.Offsets[0], headerEnd+e.Offsets[1]
	if e.Offsets[0] < 0 || hi < lo || hi > size {
		return slot{}, fmt.Errorf("safetensors: tensor %q has data offsets %v outside a %d byte file", source, e.Offsets, size)
	}

	if need := int(n) * width; hi-lo < need {
		return slot{}, fmt.Errorf("safetensors: tensor %q needs %d bytes but data has %d", source, need, hi-lo)
	}

	return slot{
		source: source,
		dtype:  strings.ToUpper(e.DType),
		shape:  slices.Clone(e.Shape),
		lo:     lo,
		hi:     hi,
	}, nil
}

// Metadata returns a copy of the file's string metadata.
func (s *Store) Metadata() map[string]string {
	return maps.Clone(s.metadata)
}

// Names lists the tensors after key mapping, sorted.
func (s *Store) Names() []string {
	return slices.Sorted(maps.Keys(s.slots))
}

// Info describes a tensor without decoding it.
func (s *Store) Info(name string) (TensorInfo, bool) {
	sl, ok := s.slots[name]
	if !ok {
		return TensorInfo{}, false
	}

	return TensorInfo{Name: name, DType: sl.dtype, Shape: slices.Clone(sl.shape), Bytes: sl.hi - sl.lo}, true
}

// Tensor decodes the named tensor to float32. Only F32, F16 and BF16
// tensors can be decoded; use Raw for the rest.
func (s *Store) Tensor(name string) (Tensor, error) {
	sl, ok := s.slots[name]
	if !ok {
		return Tensor{}, fmt.Errorf("%w: %q", ErrTensorNotFound, name)
	}

	dec, err := lookupDType(sl.dtype)
	if err != nil {
		return Tensor{}, fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	n, _ := elementCount(sl.shape)

	data, err := decodeElements(s.data[sl.lo:sl.hi], dec, int(n))
	if err != nil {
		return Tensor{}, fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	return Tensor{Name: name, Shape: slices.Clone(sl.shape), Data: data}, nil
}

// Tensors decodes every tensor in name order, ready for WriteFile.
func (s *Store) Tensors() ([]Tensor, error) {
	names := s.Names()
	out := make([]Tensor, 0, len(names))

	for _, name := range names {
		t, err := s.Tensor(name)
		if err != nil {
			return nil, err
		}

		out = append(out, t)
	}

	return out, nil
}

// Raw returns the named tensor's bytes as stored. Data aliases the store.
func (s *Store) Raw(name string) (RawTensor, error) {
	sl, ok := s.slots[name]
	if !ok {
		return RawTensor{}, fmt.Errorf("%w: %q", ErrTensorNotFound, name)
	}

	return RawTensor{
		Name:  name,
		DType: sl.dtype,
		Shape: slices.Clone(sl.shape),
		Data:  s.data[sl.lo:sl.hi:sl.hi],
	}, nil
}

// RawTensors returns every tensor undecoded, in name order, ready for
// WriteRawFile.
func (s *Store) RawTensors() []RawTensor {
	names := s.Names()
	out := make([]RawTensor, 0, len(names))

	for _, name := range names {
		t, _ := s.Raw(name)
		out = append(out, t)
	}

	return out
}
