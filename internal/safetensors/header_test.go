package safetensors

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestReadHeader_TensorsAndMetadata(t *testing.T) {
	header := `{"__metadata__":{"format":"pt","vocab.preset":"khmer-only"},` +
		`"encoder.emb.weight":{"dtype":"F16","shape":[168,4],"data_offsets":[0,1344]},` +
		`"decoder.bias":{"dtype":"F32","shape":[2],"data_offsets":[1344,1352]}}`

	path := writeTempSafetensors(t, rawFile([]byte(header), make([]byte, 1352)))

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}

	if len(h.Tensors) != 2 {
		t.Fatalf("len(Tensors) = %d; want 2 (metadata must be skipped)", len(h.Tensors))
	}

	if h.Tensors[0].Name != "decoder.bias" || h.Tensors[1].Name != "encoder.emb.weight" {
		t.Errorf("tensors not sorted by name: %+v", h.Tensors)
	}

	emb, ok := h.Tensor("encoder.emb.weight")
	if !ok {
		t.Fatal("Tensor(encoder.emb.weight) not found")
	}

	if emb.DType != "F16" || !slices.Equal(emb.Shape, []int64{168, 4}) || emb.Bytes != 1344 {
		t.Errorf("embedding info = %+v", emb)
	}

	if h.Metadata["vocab.preset"] != "khmer-only" || h.Metadata["format"] != "pt" {
		t.Errorf("Metadata = %v", h.Metadata)
	}

	if _, ok := h.Tensor("missing"); ok {
		t.Error("Tensor(missing) should miss")
	}
}

func TestReadHeader_DoesNotNeedTensorData(t *testing.T) {
	header := `{"w":{"dtype":"F32","shape":[1000000],"data_offsets":[0,4000000]}}`
	path := writeTempSafetensors(t, rawFile([]byte(header), nil))

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader on header-only file: %v", err)
	}

	if len(h.Tensors) != 1 || h.Metadata != nil {
		t.Fatalf("header = %+v", h)
	}
}

func TestReadHeader_Errors(t *testing.T) {
	dir := t.TempDir()

	tooShort := filepath.Join(dir, "short.safetensors")
	if err := os.WriteFile(tooShort, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}

	hugeLen := make([]byte, 8)
	binary.LittleEndian.PutUint64(hugeLen, maxHeaderBytes+1)
	huge := writeTempSafetensors(t, hugeLen)

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "none.safetensors")},
		{"truncated length prefix", tooShort},
		{"header length over limit", huge},
		{"truncated header", writeTempSafetensors(t, rawFile([]byte(`{"a":1}`), nil)[:10])},
		{"invalid json", writeTempSafetensors(t, rawFile([]byte(`{invalid`), nil))},
		{"non-string metadata", writeTempSafetensors(t, rawFile([]byte(`{"__metadata__":{"n":1}}`), nil))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadHeader(tt.path); err == nil {
				t.Fatalf("ReadHeader(%s) = nil error", tt.name)
			}
		})
	}
}
