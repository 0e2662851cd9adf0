package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CleanCurrency parses a monetary string into a non-negative amount.
// Accepts "$1,234,567.89", "1234567", " $50,000 ". Parenthesized values
// follow the accounting negative convention and are rejected, as are
// explicit negatives: award amounts cannot be negative.
func CleanCurrency(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, fmt.Errorf("no digits in amount %q", raw)
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric amount %q", raw)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("non-finite amount %q", raw)
	}
	if negative || value < 0 {
		return 0, fmt.Errorf("negative amount %q", raw)
	}
	return value, nil
}

// ParseFiscalYear parses "2021", "FY2021", "FY 2021", "FY21", and the
// "2021.0" form spreadsheet exports produce.
func ParseFiscalYear(raw string) (int, error) {
	s := strings.TrimSpace(strings.ToUpper(raw))
	if s == "" {
		return 0, fmt.Errorf("empty fiscal year")
	}
	s = strings.TrimPrefix(s, "FY")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".0")

	year, err := strconv.Atoi(s)
	if err != nil {
		// Some exports carry the year as a float
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("non-numeric fiscal year %q", raw)
		}
		year = int(f)
	}

	// Two-digit years pivot at 50
	if year >= 0 && year < 100 {
		if year < 50 {
			year += 2000
		} else {
			year += 1900
		}
	}
	return year, nil
}
