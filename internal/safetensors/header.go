// Package safetensors reads and writes the safetensors checkpoint format:
// an 8-byte little-endian header length, a JSON header describing every
// tensor, then the raw tensor bytes.
//
// Only the header is needed to inspect a checkpoint's shapes and metadata,
// so ReadHeader never loads tensor data.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// MetadataKey is the reserved header entry holding string metadata.
const MetadataKey = "__metadata__"

// maxHeaderBytes bounds the JSON header read from untrusted files.
const maxHeaderBytes = 100 << 20

// TensorInfo describes one tensor without its data.
type TensorInfo struct {
	Name  string  `json:"name"`
	DType string  `json:"dtype"`
	Shape []int64 `json:"shape"`
	Bytes int     `json:"bytes"`
}

// Header is the decoded header of a safetensors file.
type Header struct {
	Tensors  []TensorInfo      `json:"tensors"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Tensor returns the entry for name.
func (h Header) Tensor(name string) (TensorInfo, bool) {
	for _, t := range h.Tensors {
		if t.Name == name {
			return t, true
		}
	}

	return TensorInfo{}, false
}

// ReadHeader reads only the header of the file at path.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("safetensors: open %s: %w", path, err)
	}
	defer f.Close()

	var prefix [8]byte
	if _, err := io.ReadFull(f, prefix[:]); err != nil {
		return Header{}, fmt.Errorf("safetensors: read header length of %s: %w", path, err)
	}

	n := binary.LittleEndian.Uint64(prefix[:])
	if n > maxHeaderBytes {
		return Header{}, fmt.Errorf("safetensors: header length %d exceeds limit %d", n, maxHeaderBytes)
	}

	buf := make([]byte, 8+int(n))
	copy(buf, prefix[:])

	if _, err := io.ReadFull(f, buf[8:]); err != nil {
		return Header{}, fmt.Errorf("safetensors: read header of %s: %w", path, err)
	}

	return ParseHeader(buf)
}

// ParseHeader decodes the header at the start of data. data may be the
// header alone or a whole file.
func ParseHeader(data []byte) (Header, error) {
	_, raw, err := decodeHeader(data)
	if err != nil {
		return Header{}, err
	}

	meta, err := parseMetadata(raw[MetadataKey])
	if err != nil {
		return Header{}, err
	}

	h := Header{Metadata: meta}

	for name, msg := range raw {
		if name == MetadataKey {
			continue
		}

		entry, err := parseHeaderEntry(msg)
		if err != nil {
			return Header{}, fmt.Errorf("safetensors: decode header entry %q: %w", name, err)
		}

		h.Tensors = append(h.Tensors, TensorInfo{
			Name:  name,
			DType: strings.ToUpper(entry.DType),
			Shape: append([]int64(nil), entry.Shape...),
			Bytes: entry.Offsets[1] - entry.Offsets[0],
		})
	}

	sort.Slice(h.Tensors, func(i, j int) bool { return h.Tensors[i].Name < h.Tensors[j].Name })

	return h, nil
}

func decodeHeader(data []byte) (int, map[string]json.RawMessage, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("safetensors: file too short (%d bytes)", len(data))
	}

	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > maxHeaderBytes {
		return 0, nil, fmt.Errorf("safetensors: header length %d exceeds limit %d", headerLen, maxHeaderBytes)
	}

	headerEnd := 8 + int(headerLen)
	if headerEnd > len(data) {
		return 0, nil, fmt.Errorf("safetensors: header length %d exceeds file size %d", headerLen, len(data))
	}

	var header map[string]json.RawMessage

	err := json.Unmarshal(data[8:headerEnd], &header)
	if err != nil {
		return 0, nil, fmt.Errorf("safetensors: parse header: %w", err)
	}

	return headerEnd, header, nil
}

func parseMetadata(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var meta map[string]string
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("safetensors: metadata must map strings to strings: %w", err)
	}

	return meta, nil
}
