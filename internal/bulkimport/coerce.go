package bulkimport

// coerce.go turns loosely typed cell values into Go values.
//
// Input comes from CSV cells, spreadsheet cells or decoded JSON, so the same
// field may arrive as "42", 42.0 or json.Number("42"). Each coerce function
// accepts all of these and reports a short message when it cannot.

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// DefaultDateLayouts are tried in order when a Date field lists no layouts.
var DefaultDateLayouts = []string{
	"2006-01-02", "2006/01/02", "2006.01.02",
	"02.01.2006", "2.1.2006", "02/01/2006", "2/1/2006",
	"2006-01-02T15:04:05Z07:00",
	"20060102",
}

// CleanCell trims whitespace and spreadsheet artifacts such as an Excel
// formula prefix (="...") and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// isBlank reports whether v should be treated as an absent value.
func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return CleanCell(x) == ""
	case json.Number:
		return x == ""
	}
	return false
}

func coerceText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return "", fmt.Errorf("expected text, got %T", v)
}

func coerceNumber(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case json.Number:
		return parseNumber(x.String())
	case string:
		return parseNumber(x)
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

// parseNumber accepts currency symbols, thousands separators and the
// accounting form "(123.45)" for negatives.
func parseNumber(s string) (float64, error) {
	s = CleanCell(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, sym := range []string{"$", "€", "£", "₺", "TL", ","} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)

	if !numericRegex.MatchString(s) {
		return 0, fmt.Errorf("expected a number")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("expected a number")
	}
	if negative {
		f = -f
	}
	return f, nil
}

func coerceInteger(v any) (int64, error) {
	f, err := coerceNumber(v)
	if err != nil {
		return 0, fmt.Errorf("expected a whole number")
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("expected a whole number")
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("number is out of range")
	}
	return int64(f), nil
}

func coerceDate(v any, layouts []string) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	s, err := coerceText(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected a date")
	}
	s = CleanCell(s)
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("expected a date in %s format", layouts[0])
}

func coerceBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	s, err := coerceText(v)
	if err != nil {
		return false, fmt.Errorf("must be yes/no, true/false, or 1/0")
	}
	switch strings.ToLower(CleanCell(s)) {
	case "true", "t", "yes", "y", "1", "evet":
		return true, nil
	case "false", "f", "no", "n", "0", "hayır", "hayir":
		return false, nil
	}
	return false, fmt.Errorf("must be yes/no, true/false, or 1/0")
}
