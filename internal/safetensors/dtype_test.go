package safetensors

import (
	"math"
	"testing"
)

func TestHalfToFloat(t *testing.T) {
	cases := []struct {
		bits uint16
		want float64
	}{
		{0x0000, 0},
		{0x3c00, 1},
		{0xbc00, -1},
		{0x3555, 0.333251953125},
		{0x7bff, 65504},
		{0x0400, math.Ldexp(1, -14)},
		{0x0200, math.Ldexp(1, -15)},
		{0x0001, math.Ldexp(1, -24)},
		{0x83ff, -math.Ldexp(1023, -24)},
		{0x7c00, math.Inf(1)},
		{0xfc00, math.Inf(-1)},
	}

	for _, tc := range cases {
		if got := halfToFloat(tc.bits); float64(got) != tc.want {
			t.Errorf("halfToFloat(%#04x) = %v, want %v", tc.bits, got, tc.want)
		}
	}

	if got := halfToFloat(0x7e00); !math.IsNaN(float64(got)) {
		t.Errorf("halfToFloat(0x7e00) = %v, want NaN", got)
	}

	if got := halfToFloat(0x8000); got != 0 || !math.Signbit(float64(got)) {
		t.Errorf("halfToFloat(0x8000) = %v, want -0", got)
	}
}

func TestFloatToHalf(t *testing.T) {
	cases := []struct {
		in   float32
		want uint16
	}{
		{0, 0x0000},
		{1, 0x3c00},
		{-2, 0xc000},
		{0.5, 0x3800},
		{65504, 0x7bff},
		{65520, 0x7c00}, // halfway past the largest half, rounds to +Inf
		{1e6, 0x7c00},
		{float32(math.Inf(-1)), 0xfc00},
		{float32(math.Ldexp(1, -14)), 0x0400},
		{float32(math.Ldexp(1, -24)), 0x0001},
		{float32(math.Ldexp(1, -25)), 0x0000},     // halfway to the smallest subnormal, even
		{float32(math.Ldexp(3, -26)), 0x0001},     // above halfway
		{float32(1 + math.Ldexp(1, -11)), 0x3c00}, // tie, kept even
		{float32(1 + math.Ldexp(3, -11)), 0x3c02}, // tie, rounded to even
		{float32(math.Ldexp(1, -30)), 0x0000},
	}

	for _, tc := range cases {
		if got := floatToHalf(tc.in); got != tc.want {
			t.Errorf("floatToHalf(%v) = %#04x, want %#04x", tc.in, got, tc.want)
		}
	}

	if got := floatToHalf(float32(math.NaN())); got&0x7c00 != 0x7c00 || got&0x3ff == 0 {
		t.Errorf("floatToHalf(NaN) = %#04x, want a NaN", got)
	}

	// Every finite half survives widening and narrowing.
	for h := range uint32(0x7c00) {
		for _, bits := range []uint16{uint16(h), uint16(h) | 0x8000} {
			if got := floatToHalf(halfToFloat(bits)); got != bits {
				t.Fatalf("round trip of %#04x gave %#04x", bits, got)
			}
		}
	}
}

func TestFloatToBFloat(t *testing.T) {
	cases := []struct {
		in   float32
		want uint16
	}{
		{1, 0x3f80},
		{-2, 0xc000},
		{math.Float32frombits(0x3f808000), 0x3f80}, // tie, kept even
		{math.Float32frombits(0x3f818000), 0x3f82}, // tie, rounded to even
		{math.Float32frombits(0x3f808001), 0x3f81},
		{math.MaxFloat32, 0x7f80},
	}

	for _, tc := range cases {
		if got := floatToBFloat(tc.in); got != tc.want {
			t.Errorf("floatToBFloat(%v) = %#04x, want %#04x", tc.in, got, tc.want)
		}
	}

	if got := floatToBFloat(float32(math.NaN())); got&0x7f80 != 0x7f80 || got&0x7f == 0 {
		t.Errorf("floatToBFloat(NaN) = %#04x, want a NaN", got)
	}
}

func TestElementSize(t *testing.T) {
	for dtype, size := range map[string]int{"I64": 8, "bool": 1, "BF16": 2, "u32": 4} {
		if got, err := elementSize(dtype); err != nil || got != size {
			t.Errorf("elementSize(%q) = %d, %v; want %d", dtype, got, err, size)
		}
	}

	if _, err := elementSize("Q4"); err == nil {
		t.Error("elementSize(Q4) should fail")
	}
}

func TestElementCount(t *testing.T) {
	cases := []struct {
		shape   []int64
		want    int64
		wantErr bool
	}{
		{nil, 1, false},
		{[]int64{168, 4}, 672, false},
		{[]int64{3, 0, 5}, 0, false},
		{[]int64{2, -1}, 0, true},
		{[]int64{math.MaxInt64, 2}, 0, true},
	}

	for _, tc := range cases {
		got, err := elementCount(tc.shape)
		if (err != nil) != tc.wantErr {
			t.Errorf("elementCount(%v) error = %v, wantErr %v", tc.shape, err, tc.wantErr)
			continue
		}

		if got != tc.want {
			t.Errorf("elementCount(%v) = %d, want %d", tc.shape, got, tc.want)
		}
	}
}

func TestLookupDType(t *testing.T) {
	for dtype, size := range map[string]int{"F32": 4, "f16": 2, "BF16": 2} {
		d, err := lookupDType(dtype)
		if err != nil || d.size != size {
			t.Errorf("lookupDType(%q) = size %d, %v; want %d", dtype, d.size, err, size)
		}
	}

	if _, err := lookupDType("I64"); err == nil {
		t.Error("lookupDType(I64) should fail")
	}
}
