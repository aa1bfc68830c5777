package symbols

import (
	"errors"
	"fmt"
	"strings"
)

// Preset selects which classes compose the vocabulary.
type Preset string

const (
	PresetFull         Preset = "full"
	PresetKhmerOnly    Preset = "khmer-only"
	PresetKhmerMinimal Preset = "khmer-minimal"
)

// DefaultPreset is used when no preset is configured.
const DefaultPreset = PresetKhmerOnly

// ErrUnknownPreset is returned for preset names outside the known set.
var ErrUnknownPreset = errors.New("unknown symbol preset")

var presetClasses = map[Preset][]Class{
	PresetFull: {
		ClassPad, ClassPunctuation, ClassIPALetters, ClassNonKhmer,
		ClassKhmerIPA, ClassKhmerScript, ClassAdditional,
	},
	PresetKhmerOnly: {
		ClassPad, ClassPunctuation, ClassIPALetters,
		ClassKhmerIPA, ClassKhmerScript, ClassAdditional,
	},
	PresetKhmerMinimal: {
		ClassPad, ClassPunctuation,
		ClassKhmerIPA, ClassKhmerScript, ClassAdditional,
	},
}

// Presets lists every preset in a stable order.
func Presets() []Preset {
	return []Preset{PresetFull, PresetKhmerOnly, PresetKhmerMinimal}
}

// ParsePreset resolves a case-insensitive preset name. An empty name yields
// DefaultPreset; "khmer" and "minimal" are accepted as aliases.
func ParsePreset(raw string) (Preset, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	switch Preset(name) {
	case "":
		return DefaultPreset, nil
	case PresetFull, PresetKhmerOnly, PresetKhmerMinimal:
		return Preset(name), nil
	case "khmer":
		return PresetKhmerOnly, nil
	case "minimal":
		return PresetKhmerMinimal, nil
	default:
		return "", fmt.Errorf(
			"%w %q (expected %s|%s|%s)",
			ErrUnknownPreset,
			raw,
			PresetFull,
			PresetKhmerOnly,
			PresetKhmerMinimal,
		)
	}
}

// Classes returns the ordered class composition of p, or nil when p is unknown.
func Classes(p Preset) []Class {
	cs, ok := presetClasses[p]
	if !ok {
		return nil
	}

	return append([]Class(nil), cs...)
}
