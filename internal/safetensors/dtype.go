package safetensors

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const (
	dtypeF32  = "F32"
	dtypeF16  = "F16"
	dtypeBF16 = "BF16"
)

// elementSizes covers every dtype a safetensors header may name. Tensors of
// any of them can be opened and copied; only the float kinds in decoders can
// be decoded.
var elementSizes = map[string]int{
	"BOOL": 1, "U8": 1, "I8": 1, "F8_E4M3": 1, "F8_E5M2": 1,
	"U16": 2, "I16": 2, dtypeF16: 2, dtypeBF16: 2,
	"U32": 4, "I32": 4, dtypeF32: 4,
	"U64": 8, "I64": 8, "F64": 8,
}

func elementSize(dtype string) (int, error) {
	n, ok := elementSizes[strings.ToUpper(dtype)]
	if !ok {
		return 0, fmt.Errorf("unknown dtype %q", dtype)
	}

	return n, nil
}

// decoder turns one little-endian element into a float32.
type decoder struct {
	size   int
	decode func(b []byte) float32
}

// Checkpoints from mixed-precision training store embeddings as F16 or BF16.
// Both are widened on read and can be narrowed again by Encode.
var decoders = map[string]decoder{
	dtypeF32: {4, func(b []byte) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	}},
	dtypeF16: {2, func(b []byte) float32 {
		return halfToFloat(binary.LittleEndian.Uint16(b))
	}},
	dtypeBF16: {2, func(b []byte) float32 {
		return math.Float32frombits(uint32(binary.LittleEndian.Uint16(b)) << 16)
	}},
}

var encoders = map[string]func(dst []byte, v float32) []byte{
	dtypeF32: func(dst []byte, v float32) []byte {
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	},
	dtypeF16: func(dst []byte, v float32) []byte {
		return binary.LittleEndian.AppendUint16(dst, floatToHalf(v))
	},
	dtypeBF16: func(dst []byte, v float32) []byte {
		return binary.LittleEndian.AppendUint16(dst, floatToBFloat(v))
	},
}

func lookupDType(dtype string) (decoder, error) {
	d, ok := decoders[strings.ToUpper(dtype)]
	if !ok {
		return decoder{}, fmt.Errorf("unsupported dtype %q", dtype)
	}

	return d, nil
}

func decodeElements(raw []byte, d decoder, n int) ([]float32, error) {
	if len(raw) < n*d.size {
		return nil, fmt.Errorf("need %d bytes for %d elements, got %d", n*d.size, n, len(raw))
	}

	out := make([]float32, n)
	for i := range out {
		out[i] = d.decode(raw[i*d.size:])
	}

	return out, nil
}

// halfToFloat widens an IEEE 754 binary16 value.
func halfToFloat(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := int32(h>>10) & 0x1f
	mant := uint32(h) & 0x3ff

	switch {
	case exp == 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | mant<<13)
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// subnormal
		exp = 1
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}

		mant &= 0x3ff
	}

	return math.Float32frombits(sign | uint32(exp+112)<<23 | mant<<13)
}

// floatToHalf narrows f to binary16, rounding to nearest even. Values past
// the half range become infinities.
func floatToHalf(f float32) uint16 {
	b := math.Float32bits(f)
	sign := uint16(b>>16) & 0x8000
	exp := int32(b>>23)&0xff - 127
	mant := b & 0x7fffff

	switch {
	case exp == 128:
		if mant != 0 {
			return sign | 0x7e00
		}

		return sign | 0x7c00
	case exp > 15:
		return sign | 0x7c00
	case exp >= -14:
		h := uint32(exp+15)<<10 | mant>>13
		// A carry out of the mantissa bumps the exponent, up to infinity.
		h += roundBit(mant, 13, h)

		return sign | uint16(h)
	case exp >= -25:
		full := mant | 0x800000
		shift := uint32(-1 - exp)
		h := full >> shift
		h += roundBit(full, shift, h)

		return sign | uint16(h)
	default:
		return sign
	}
}

// floatToBFloat keeps the upper half of f's bits, rounding to nearest even.
func floatToBFloat(f float32) uint16 {
	b := math.Float32bits(f)
	if math.IsNaN(float64(f)) {
		return uint16(b>>16) | 0x40
	}

	return uint16((b + 0x7fff + (b>>16)&1) >> 16)
}

// roundBit reports whether dropping the low shift bits of v, leaving kept,
// rounds up under round-half-to-even.
func roundBit(v, shift, kept uint32) uint32 {
	rest := v & (1<<shift - 1)
	half := uint32(1) << (shift - 1)

	if rest > half || rest == half && kept&1 == 1 {
		return 1
	}

	return 0
}

func elementCount(shape []int64) (int64, error) {
	total := int64(1)

	for _, d := range shape {
		switch {
		case d < 0:
			return 0, fmt.Errorf("negative dimension %d", d)
		case d == 0:
			return 0, nil
		case total > math.MaxInt64/d:
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}

		total *= d
	}

	return total, nil
}
