package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// fixture is one tensor of a hand-built file, stored as given.
type fixture struct {
	name  string
	dtype string
	shape []int64
	data  []byte
}

// buildFile lays the tensors out back to back in argument order.
func buildFile(t *testing.T, tensors ...fixture) []byte {
	t.Helper()

	header := make(map[string]headerEntry, len(tensors))

	var body []byte
	for _, rt := range tensors {
		header[rt.name] = headerEntry{
			DType:   rt.dtype,
			Shape:   rt.shape,
			Offsets: [2]int{len(body), len(body) + len(rt.data)},
		}
		body = append(body, rt.data...)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}

	return rawFile(headerJSON, body)
}

func rawFile(headerJSON, data []byte) []byte {
	buf := make([]byte, 8, 8+len(headerJSON)+len(data))
	binary.LittleEndian.PutUint64(buf, uint64(len(headerJSON)))
	buf = append(buf, headerJSON...)

	return append(buf, data...)
}

func f32(vals ...float32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}

	return buf
}

func float16Bytes(bits []uint16) []byte {
	buf := make([]byte, len(bits)*2)
	for i, b := range bits {
		binary.LittleEndian.PutUint16(buf[i*2:], b)
	}

	return buf
}

// bf16 truncates each value to its upper 16 bits.
func bf16(vals ...float32) []byte {
	buf := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(math.Float32bits(v)>>16))
	}

	return buf
}

func assertFloatSliceNear(t *testing.T, got, want []float32, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("got %d values, want %d", len(got), len(want))
	}

	for i := range got {
		if d := math.Abs(float64(got[i] - want[i])); d > tol {
			t.Fatalf("value[%d] = %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

func sortedNames(tensors []Tensor) []string {
	names := make([]string, len(tensors))
	for i, t := range tensors {
		names[i] = t.Name
	}

	sort.Strings(names)

	return names
}

func writeTempSafetensors(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.safetensors")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write temp safetensors: %v", err)
	}

	return path
}
