package litigation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount keeps the ASCII digits of s and reads them as a base-10 integer.
// "80€" gives 80 and "12.50€" gives 1250. No digits, or a value that overflows
// int64, gives 0 and ErrMalformedAmount.
func ParseAmount(s string) (int64, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	return n, nil
}

// Commission is percent of amount. 600 at 30 gives 180.
func Commission(amount, percent int64) float64 {
	return float64(amount*percent) / 100
}

// FormatAmount renders a parsed amount the way cases store it.
func FormatAmount(n int64) string {
	return strconv.FormatInt(n, 10) + "€"
}

func isBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
