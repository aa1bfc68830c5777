// Package symbols builds the ordered symbol vocabulary shared by the Khmer
// text front-end and the acoustic model. A token's position in the table is
// its embedding index, so the order of classes and of tokens within a class
// is part of the checkpoint contract.
package symbols

// Class names a fixed group of tokens.
type Class string

const (
	ClassPad         Class = "pad"
	ClassPunctuation Class = "punctuation"
	ClassIPALetters  Class = "ipa-letters"
	ClassNonKhmer    Class = "non-khmer"
	ClassKhmerIPA    Class = "khmer-ipa"
	ClassKhmerScript Class = "khmer-script"
	ClassAdditional  Class = "additional"
)

// Pad is the padding token. It always sits at index 0.
const Pad = "_"

// Silence and Aspiration are the control tokens appended after the Khmer
// classes.
const (
	Silence    = "sil"
	Aspiration = "ʰ"
)

var punctuation = []string{"!", "'", ",", "-", ".", ":", ";", "?"}

// Generic IPA letters. Letters that double as Khmer phones (ɓ ɗ ʔ ɲ ŋ ɡ ɨ ə ɔ ɛ ɑ ɐ)
// live in khmerIPA instead, and the aspiration modifier is a control token.
var ipaLetters = splitRunes("ɒæʙβɕçɖðʤɘɚɜɝɞɟʄɠɢʛɦɧħɥʜɪʝɭɬɫɮʟɱɯɰɳɴøɵɸθœɶʘɹɺɾɻʀʁɽʂʃʈʧʉʊʋⱱʌɣ")

var nonKhmer = append(
	splitRunes("ABCDEFGHIJKLMNOPQRSTUVWXYZ"),
	"˥", "˦", "˧", "˨", "˩",
	"↓", "↑", "→", "↗", "↘",
)

var khmerIPA = []string{
	// consonants
	"p", "ɓ", "t", "ɗ", "c", "k", "ʔ",
	"pʰ", "tʰ", "cʰ", "kʰ",
	"m", "n", "ɲ", "ŋ",
	"j", "r", "l", "w", "s", "h",
	"f", "ɡ", "z",
	// vowels
	"a", "aː", "i", "iː", "ɨ", "ɨː", "u", "uː",
	"e", "eː", "ə", "əː", "o", "oː", "ɔ", "ɔː",
	"ɛ", "ɛː", "ɑ", "ɑː", "ɐ", "ɐː",
	"ɨə", "iə", "uə", "ae", "ao", "aə", "ɔə", "ei", "ou",
}

// Consonants U+1780..U+17A2 followed by the diacritics that survive character
// fallback in the G2P: nikahit, reahmuk, muusikatoan, triisap, bantoc, robat
// and coeng.
var khmerScript = append(
	runeRange(0x1780, 0x17A2),
	"ំ", "ះ", "៉", "៊", "់", "៌", "្",
)

var additional = []string{Silence, Aspiration}

var classTokens = map[Class][]string{
	ClassPad:         {Pad},
	ClassPunctuation: punctuation,
	ClassIPALetters:  ipaLetters,
	ClassNonKhmer:    nonKhmer,
	ClassKhmerIPA:    khmerIPA,
	ClassKhmerScript: khmerScript,
	ClassAdditional:  additional,
}

// Tokens returns a copy of the tokens in class c, or nil for an unknown class.
func Tokens(c Class) []string {
	toks, ok := classTokens[c]
	if !ok {
		return nil
	}

	return append([]string(nil), toks...)
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}

	return out
}

func runeRange(lo, hi rune) []string {
	out := make([]string, 0, hi-lo+1)
	for r := lo; r <= hi; r++ {
		out = append(out, string(r))
	}

	return out
}
