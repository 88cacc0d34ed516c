package textnorm

import (
	"regexp"
	"strconv"
	"strings"
)

var numberRe = regexp.MustCompile(`\b\d+(?:\.\d+)*\b`)

var digits = [10]string{"零", "一", "二", "三", "四", "五", "六", "七", "八", "九"}

const (
	point   = "点"
	ten     = "十"
	hundred = "百"
)

// VerbalizeNumbers rewrites standalone Arabic numerals as Chinese numerals
// so speech synthesis reads them correctly.
//
//	25      -> 二十五
//	3.14    -> 三点一四
//	1.5.2   -> 一点五点二
//	1995    -> 一九九五   (four-digit numbers read as years)
func VerbalizeNumbers(text string) string {
	return numberRe.ReplaceAllStringFunc(text, verbalizeNumber)
}

func verbalizeNumber(s string) string {
	parts := strings.Split(s, ".")
	switch len(parts) {
	case 1:
		return VerbalizeInteger(s)
	case 2:
		return VerbalizeInteger(parts[0]) + point + spellDigits(parts[1])
	default:
		for i, p := range parts {
			parts[i] = VerbalizeInteger(p)
		}
		return strings.Join(parts, point)
	}
}

// VerbalizeInteger converts a digit string. Values below 1000 use the
// positional 十/百 forms; four-digit values and anything larger are
// spelled digit by digit. Non-digit input is returned unchanged.
func VerbalizeInteger(s string) string {
	if s == "" || !isDigits(s) {
		return s
	}
	if len(s) == 4 {
		return spellDigits(s)
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return spellDigits(s)
	}
	switch {
	case n < 10:
		return digits[n]
	case n < 100:
		return tens(n)
	case n < 1000:
		out := digits[n/100] + hundred
		rem := n % 100
		switch {
		case rem == 0:
			return out
		case rem < 10:
			return out + digits[0] + digits[rem]
		case rem%10 == 0:
			return out + digits[rem/10] + ten
		default:
			return out + digits[rem/10] + ten + digits[rem%10]
		}
	default:
		return spellDigits(s)
	}
}

// tens handles 10..99.
func tens(n int) string {
	t, o := n/10, n%10
	switch {
	case n == 10:
		return ten
	case o == 0:
		return digits[t] + ten
	case t == 1:
		return ten + digits[o]
	default:
		return digits[t] + ten + digits[o]
	}
}

func spellDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteString(digits[r-'0'])
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
