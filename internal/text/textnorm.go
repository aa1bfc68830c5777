package text

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Options selects the NormalizeKhmer stages. Stages run in a fixed order,
// most specific pattern first.
type Options struct {
	Electronic bool
	Emoticons  bool
	Telephone  bool
	Time       bool
	Money      bool
	Measure    bool
	Dates      bool
	Fractions  bool
	Decimals   bool
	Cardinals  bool
	// Digits reads remaining multi-digit numbers digit by digit. It only
	// applies when Cardinals is off.
	Digits bool
}

// DefaultOptions enables every stage except Digits.
func DefaultOptions() Options {
	return Options{
		Electronic: true,
		Emoticons:  true,
		Telephone:  true,
		Time:       true,
		Money:      true,
		Measure:    true,
		Dates:      true,
		Fractions:  true,
		Decimals:   true,
		Cardinals:  true,
	}
}

// SilenceToken is inserted between digit groups of telephone numbers.
const SilenceToken = "sil"

var months = [...]string{
	1:  "មករា",
	2:  "កុម្ភៈ",
	3:  "មិនា",
	4:  "មេសា",
	5:  "ឧសភា",
	6:  "មិថុនា",
	7:  "កក្កដា",
	8:  "សីហា",
	9:  "កញ្ញា",
	10: "តុលា",
	11: "វិច្ឆិកា",
	12: "ធ្នូ",
}

const (
	wordMonth   = "ខែ"
	wordYear    = "ឆ្នាំ"
	wordHour    = "ម៉ោង"
	wordMinute  = "នាទី"
	wordSecond  = "វិនាទី"
	wordOver    = "លើ"
	wordPoint   = "ក្បៀស"
	wordAt      = "អ៊ែត"
	wordDot     = "ដត់"
	wordWWW     = "ដាប់ប៊លយូ ដាប់ប៊លយូ ដាប់ប៊លយូ"
	wordDollars = "ដុល្លារ អាមេរិក"
	wordRiel    = "រៀល"
)

var measureUnits = map[string]string{
	"m":          "ម៉ែត្រ",
	"meter":      "ម៉ែត្រ",
	"meters":     "ម៉ែត្រ",
	"km":         "គីឡូ ម៉ែត្រ",
	"kilometer":  "គីឡូ ម៉ែត្រ",
	"kilometers": "គីឡូ ម៉ែត្រ",
	"g":          "ក្រាម",
	"gram":       "ក្រាម",
	"grams":      "ក្រាម",
	"kg":         "គីឡូ ក្រាម",
	"kilogram":   "គីឡូ ក្រាម",
	"kilograms":  "គីឡូ ក្រាម",
	"l":          "លីត្រ",
	"liter":      "លីត្រ",
	"liters":     "លីត្រ",
	"percent":    "ភាគរយ",
	"%":          "ភាគរយ",
}

var emoticons = strings.NewReplacer(
	">:-)", " មុខ អាក្រក់ ",
	":-)", " មុខ ញញឹម ",
	":)", " មុខ ញញឹម ",
	"=)", " មុខ ញញឹម ",
	":-(", " មុខ ក្រៀម ",
	":(", " មុខ ក្រៀម ",
	":'(", " មុខ យំ ",
	":')", " មុខ យំ សើច ",
	";-)", " មុខ មិច ភ្នែក ",
	":-P", " មុខ ញញឹម លៀន អណ្ដាត ",
	":-D", " មុខ សើច ",
	":-O", " មុខ រន្ធត់ ",
	":-@", " មុខ ខឹង ",
	"☹", " មុខ ក្រមូវ ",
	"☺", " មុខ ញញឹម ",
	"☻", " មុខ ញញឹម ",
)

var topLevelDomains = map[string]bool{"com": true, "org": true, "net": true, "edu": true}

// dateContext marks words that make a bare DD/MM read as a date.
var dateContext = []string{"date", "day", "month", "ថ្ងៃ", wordMonth}

var (
	reEmail      = regexp.MustCompile(`(\w+(?:[._]\w+)*)@([\w.-]*\w)`)
	reURL        = regexp.MustCompile(`https?://([\w.-]*\w)`)
	rePhone      = regexp.MustCompile(`\b(?:0\d{2}[-.\s]?\d{3}[-.\s]?\d{3,4}|\+?\d{1,3}[-.\s]?\d{3,4}[-.\s]?\d{3,4}[-.\s]?\d{3,4})\b`)
	reTime       = regexp.MustCompile(`\b(\d{1,2}):(\d{2})(?::(\d{2}))?\b`)
	reDollars    = regexp.MustCompile(`\$(\d+)(?:\.(\d+))?`)
	reRiel       = regexp.MustCompile(`\b(\d+)(?:\.(\d+))?\s*រៀល`)
	reMeasure    = regexp.MustCompile(`(?i)\b(\d+)\s*(kilometers?|kilograms?|meters?|grams?|liters?|percent|km|kg|m|g|l)\b`)
	rePercent    = regexp.MustCompile(`\b(\d+)\s*%`)
	reYearDate   = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})\b`)
	reFraction   = regexp.MustCompile(`\b(\d+)/(\d+)\b`)
	reShortDate  = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})\b`)
	reThousands  = regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+\b`)
	reDecimal    = regexp.MustCompile(`\b(\d+)[.,](\d+)\b`)
	reCardinal   = regexp.MustCompile(`\d+`)
	reDigitRun   = regexp.MustCompile(`\d{2,}`)
	reHorizontal = regexp.MustCompile(`[^\S\n]+`)
)

// NormalizeKhmer expands the written forms of numbers, dates, times, money,
// measures, telephone numbers, e-mail addresses and emoticons into Khmer
// words. Khmer digits are read like ASCII digits.
//
//	NormalizeKhmer("4.5", DefaultOptions()) == "បួន ក្បៀស ប្រាំ"
func NormalizeKhmer(s string, opts Options) string {
	s = KhmerDigitsToASCII(s)

	if opts.Electronic {
		s = normalizeElectronic(s)
	}

	if opts.Emoticons {
		s = emoticons.Replace(s)
	}

	if opts.Telephone {
		s = normalizeTelephone(s)
	}

	if opts.Time {
		s = normalizeTime(s)
	}

	if opts.Money {
		s = normalizeMoney(s)
	}

	if opts.Measure {
		s = normalizeMeasure(s)
	}

	if opts.Dates {
		s = normalizeYearDates(s)
	}

	if opts.Fractions {
		s = normalizeFractions(s, opts.Dates)
	}

	if opts.Dates {
		s = normalizeShortDates(s)
	}

	if opts.Decimals {
		s = normalizeDecimals(s)
	}

	switch {
	case opts.Cardinals:
		s = normalizeCardinals(s)
	case opts.Digits:
		s = replaceAll(reDigitRun, s, func(s string, m []int) (int, string, bool) {
			return m[0], DigitsToWords(s[m[0]:m[1]]), true
		})
	}

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(reHorizontal.ReplaceAllString(line, " "))
	}

	return strings.Join(lines, "\n")
}

func normalizeElectronic(s string) string {
	s = replaceAll(reEmail, s, func(s string, m []int) (int, string, bool) {
		user, domain := group(s, m, 1), group(s, m, 2)

		words := spellASCII(user)
		words = append(words, wordAt)
		words = append(words, spellDomain(domain)...)

		return m[0], strings.Join(words, " "), true
	})

	return replaceAll(reURL, s, func(s string, m []int) (int, string, bool) {
		host := group(s, m, 1)

		var words []string
		if rest, ok := strings.CutPrefix(host, "www."); ok {
			words = append(words, wordWWW, wordDot)
			host = rest
		}

		words = append(words, spellDomain(host)...)

		return m[0], strings.Join(words, " "), true
	})
}

// spellDomain keeps common top-level domains as words and spells the rest
// letter by letter, reading dots as ដត់.
func spellDomain(domain string) []string {
	var words []string
	for i, part := range strings.Split(domain, ".") {
		if i > 0 {
			words = append(words, wordDot)
		}

		if topLevelDomains[strings.ToLower(part)] {
			words = append(words, strings.ToLower(part))
			continue
		}

		words = append(words, spellASCII(part)...)
	}

	return words
}

// spellASCII reads letters as "<letter>_letter-en" tokens and digits as
// Khmer words.
func spellASCII(s string) []string {
	words := make([]string, 0, len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			words = append(words, string(unicode.ToLower(r))+"_letter-en")
		case r >= '0' && r <= '9':
			words = append(words, units[r-'0'])
		default:
			words = append(words, string(r))
		}
	}

	return words
}

func normalizeTelephone(s string) string {
	return replaceAll(rePhone, s, func(s string, m []int) (int, string, bool) {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}

			return -1
		}, s[m[0]:m[1]])

		return m[0], readPhoneDigits(digits), true
	})
}

// readPhoneDigits reads digits in groups of three, with the last group
// taking up to four, separated by SilenceToken.
func readPhoneDigits(digits string) string {
	var words []string
	for i := 0; i < len(digits); {
		if i > 0 {
			words = append(words, SilenceToken)
		}

		size := min(4, len(digits)-i)
		if len(digits)-i >= 6 {
			size = 3
		}

		for _, r := range digits[i : i+size] {
			words = append(words, units[r-'0'])
		}
		i += size
	}

	return strings.Join(words, " ")
}

func normalizeTime(s string) string {
	return replaceAll(reTime, s, func(s string, m []int) (int, string, bool) {
		hours, _ := strconv.Atoi(group(s, m, 1))
		minutes, _ := strconv.Atoi(group(s, m, 2))
		if hours > 24 || minutes > 59 {
			return 0, "", false
		}

		words := []string{wordHour, cardinal(int64(hours))}
		if minutes > 0 {
			words = append(words, cardinal(int64(minutes)), wordMinute)
		}

		if sec := group(s, m, 3); sec != "" {
			seconds, _ := strconv.Atoi(sec)
			if seconds > 59 {
				return 0, "", false
			}

			if seconds > 0 {
				words = append(words, cardinal(int64(seconds)), wordSecond)
			}
		}

		words = append(words, dayPeriod(hours))

		return m[0], strings.Join(words, " "), true
	})
}

func dayPeriod(hours int) string {
	switch {
	case hours >= 5 && hours < 12:
		return "ពេលព្រឹក"
	case hours >= 12 && hours < 17:
		return "ពេលរសៀល"
	case hours >= 17 && hours < 21:
		return "ល្ងាច"
	default:
		return "យប់"
	}
}

func normalizeMoney(s string) string {
	amount := func(currency string) func(string, []int) (int, string, bool) {
		return func(s string, m []int) (int, string, bool) {
			words := readNumber(group(s, m, 1))
			if frac := group(s, m, 2); frac != "" {
				words += " " + wordPoint + " " + readFraction(frac)
			}

			return m[0], words + " " + currency, true
		}
	}

	s = replaceAll(reDollars, s, amount(wordDollars))

	return replaceAll(reRiel, s, amount(wordRiel))
}

func normalizeMeasure(s string) string {
	read := func(s string, m []int) (int, string, bool) {
		unit := strings.ToLower(group(s, m, 2))
		if unit == "" {
			unit = "%"
		}

		return m[0], readNumber(group(s, m, 1)) + " " + measureUnits[unit], true
	}

	s = replaceAll(reMeasure, s, read)

	return replaceAll(rePercent, s, read)
}

func normalizeYearDates(s string) string {
	return replaceAll(reYearDate, s, func(s string, m []int) (int, string, bool) {
		day, _ := strconv.Atoi(group(s, m, 1))
		month, _ := strconv.Atoi(group(s, m, 2))
		if month < 1 || month > 12 {
			return 0, "", false
		}

		return m[0], readDate(day, month) + " " + wordYear + " " + readNumber(group(s, m, 3)), true
	})
}

// normalizeFractions reads N/D as "N លើ D". With dates enabled, pairs that
// read better as a day and month are left for normalizeShortDates.
func normalizeFractions(s string, dates bool) string {
	return replaceAll(reFraction, s, func(s string, m []int) (int, string, bool) {
		if followedByDatePart(s[m[1]:]) {
			return 0, "", false
		}

		if dates && looksLikeShortDate(s, m) {
			return 0, "", false
		}

		start, neg := signedStart(s, m[0])
		words := readNumber(group(s, m, 1)) + " " + wordOver + " " + readNumber(group(s, m, 2))
		if neg {
			words = Minus + " " + words
		}

		return start, words, true
	})
}

func normalizeShortDates(s string) string {
	return replaceAll(reShortDate, s, func(s string, m []int) (int, string, bool) {
		if followedByDatePart(s[m[1]:]) || !looksLikeShortDate(s, m) {
			return 0, "", false
		}

		day, _ := strconv.Atoi(group(s, m, 1))
		month, _ := strconv.Atoi(group(s, m, 2))

		return m[0], readDate(day, month), true
	})
}

// looksLikeShortDate treats DD/MM as a date when the month is valid and the
// day either cannot be a month or a date word is nearby.
func looksLikeShortDate(s string, m []int) bool {
	day, err1 := strconv.Atoi(group(s, m, 1))
	month, err2 := strconv.Atoi(group(s, m, 2))
	if err1 != nil || err2 != nil {
		return false
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}

	return day > 12 || hasDateContext(s, m[0], m[1])
}

func hasDateContext(s string, start, end int) bool {
	const window = 20

	before := []rune(s[:start])
	if len(before) > window {
		before = before[len(before)-window:]
	}

	after := []rune(s[end:])
	if len(after) > window {
		after = after[:window]
	}

	ctx := strings.ToLower(string(before) + " " + string(after))
	for _, w := range dateContext {
		if strings.Contains(ctx, w) {
			return true
		}
	}

	return false
}

// followedByDatePart reports whether rest continues a date, as in the "/2024"
// of "1/2/2024".
func followedByDatePart(rest string) bool {
	rest = strings.TrimLeft(rest, " \t")
	if len(rest) < 2 || (rest[0] != '/' && rest[0] != '-') {
		return false
	}

	return rest[1] >= '0' && rest[1] <= '9'
}

func readDate(day, month int) string {
	return cardinal(int64(day)) + " " + wordMonth + " " + months[month]
}

func normalizeDecimals(s string) string {
	s = replaceAll(reThousands, s, func(s string, m []int) (int, string, bool) {
		return m[0], strings.ReplaceAll(s[m[0]:m[1]], ",", ""), true
	})

	return replaceAll(reDecimal, s, func(s string, m []int) (int, string, bool) {
		start, neg := signedStart(s, m[0])
		words := readNumber(group(s, m, 1)) + " " + wordPoint + " " + readFraction(group(s, m, 2))
		if neg {
			words = Minus + " " + words
		}

		return start, words, true
	})
}

func normalizeCardinals(s string) string {
	return replaceAll(reCardinal, s, func(s string, m []int) (int, string, bool) {
		start, neg := signedStart(s, m[0])
		words := readNumber(s[m[0]:m[1]])
		if neg {
			words = Minus + " " + words
		}

		return start, words, true
	})
}

// signedStart reports whether the match at start is preceded by a minus sign
// that belongs to it, and returns the start including that sign. A hyphen
// between two words or numbers is not a sign.
func signedStart(s string, start int) (int, bool) {
	if start == 0 || s[start-1] != '-' {
		return start, false
	}

	if start >= 2 {
		prev, _ := utf8.DecodeLastRuneInString(s[:start-1])
		if isWordRune(prev) {
			return start, false
		}
	}

	return start - 1, true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func group(s string, m []int, i int) string {
	if 2*i+1 >= len(m) || m[2*i] < 0 {
		return ""
	}

	return s[m[2*i]:m[2*i+1]]
}

// replaceAll substitutes every match of re for which fn returns ok. fn may
// move the start of the replaced span back, for example to cover a sign.
// Replacements are separated by a space from adjacent letters and digits so
// expanded words never glue onto their neighbours.
func replaceAll(re *regexp.Regexp, s string, fn func(s string, m []int) (int, string, bool)) string {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}

	var b strings.Builder

	last := 0
	for _, m := range matches {
		start, repl, ok := fn(s, m)
		if !ok {
			continue
		}

		start = max(start, last)

		b.WriteString(s[last:start])

		if prev, _ := utf8.DecodeLastRuneInString(s[:start]); start > 0 && isWordRune(prev) {
			b.WriteByte(' ')
		}

		b.WriteString(repl)

		if next, _ := utf8.DecodeRuneInString(s[m[1]:]); m[1] < len(s) && isWordRune(next) {
			b.WriteByte(' ')
		}

		last = m[1]
	}

	b.WriteString(s[last:])

	return b.String()
}
