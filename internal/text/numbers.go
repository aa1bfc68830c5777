package text

import (
	"math"
	"strconv"
	"strings"
)

// MaxCardinal is the first value NumberToWords no longer spells out.
const MaxCardinal = 10_000_000

// Minus is the word read in front of negative numbers.
const Minus = "ដក"

var units = [...]string{
	"សូន្យ", "មួយ", "ពីរ", "បី", "បួន",
	"ប្រាំ", "ប្រាំមួយ", "ប្រាំពីរ", "ប្រាំបី", "ប្រាំបួន",
	"ដប់",
}

var tens = [...]string{
	2: "ម្ភៃ",
	3: "សាមសិប",
	4: "សែសិប",
	5: "ហាសិប",
	6: "ហុកសិប",
	7: "ចិតសិប",
	8: "ប៉ែតសិប",
	9: "កៅសិប",
}

// scales are ordered largest first.
var scales = []struct {
	value int64
	word  string
}{
	{1_000_000, "លាន"},
	{100_000, "សែន"},
	{10_000, "ម៉ឺន"},
	{1_000, "ពាន់"},
	{100, "រយ"},
}

// NumberToWords reads n as a Khmer cardinal, words separated by spaces.
// Values whose magnitude reaches MaxCardinal are returned as decimal digits.
//
//	NumberToWords(2024) == "ពីរ ពាន់ ម្ភៃ បួន"
func NumberToWords(n int64) string {
	if n == math.MinInt64 {
		return strconv.FormatInt(n, 10)
	}

	if n < 0 {
		return Minus + " " + NumberToWords(-n)
	}

	if n >= MaxCardinal {
		return strconv.FormatInt(n, 10)
	}

	return cardinal(n)
}

func cardinal(n int64) string {
	switch {
	case n <= 10:
		return units[n]
	case n < 20:
		return units[10] + " " + units[n-10]
	case n < 100:
		if n%10 == 0 {
			return tens[n/10]
		}

		return tens[n/10] + " " + units[n%10]
	}

	for _, sc := range scales {
		if n < sc.value {
			continue
		}

		head := cardinal(n/sc.value) + " " + sc.word
		if rem := n % sc.value; rem != 0 {
			return head + " " + cardinal(rem)
		}

		return head
	}

	return strconv.FormatInt(n, 10)
}

// DigitsToWords reads every digit of s on its own. ASCII and Khmer digits are
// both accepted; other runes are kept as separate tokens.
//
//	DigitsToWords("012") == "សូន្យ មួយ ពីរ"
func DigitsToWords(s string) string {
	words := make([]string, 0, len(s))
	for _, r := range KhmerDigitsToASCII(s) {
		if r >= '0' && r <= '9' {
			words = append(words, units[r-'0'])
			continue
		}

		words = append(words, string(r))
	}

	return strings.Join(words, " ")
}

// KhmerDigitsToASCII replaces the Khmer digits ០–៩ with 0–9.
func KhmerDigitsToASCII(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '០' && r <= '៩' {
			return '0' + (r - '០')
		}

		return r
	}, s)
}

// readNumber verbalises a digit string, falling back to digit-by-digit
// reading when it is out of cardinal range.
func readNumber(digits string) string {
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n >= MaxCardinal {
		return DigitsToWords(digits)
	}

	return cardinal(n)
}

// readFraction reads the part after a decimal separator: leading zeros one by
// one, the remainder as a cardinal.
func readFraction(digits string) string {
	rest := strings.TrimLeft(digits, "0")
	zeros := len(digits) - len(rest)

	words := make([]string, 0, zeros+1)
	for range zeros {
		words = append(words, units[0])
	}

	if rest != "" {
		words = append(words, readNumber(rest))
	}

	return strings.Join(words, " ")
}
