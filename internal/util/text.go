package util

import (
	"strconv"
	"strings"
	"time"
)

var truthyTokens = map[string]struct{}{
	"yes": {}, "true": {}, "1": {}, "vip": {}, "y": {},
}

// NormalizePhone strips everything except digits and a single leading plus.
// Idempotent: normalizing an already normalized number is a no-op.
func NormalizePhone(input string) string {
	s := strings.TrimSpace(input)
	out := strings.Builder{}
	for _, r := range s {
		if r >= '0' && r <= '9' {
			out.WriteRune(r)
			continue
		}
		if r == '+' && out.Len() == 0 {
			out.WriteRune(r)
		}
	}
	if out.String() == "+" {
		return ""
	}
	return out.String()
}

func NormalizeEmail(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

func Truthy(input string) bool {
	_, ok := truthyTokens[strings.ToLower(strings.TrimSpace(input))]
	return ok
}

// ParseVisits parses a visit counter best-effort: non-numeric or negative
// input yields zero, never an error.
func ParseVisits(input string) int {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0
	}
	parsed, err := strconv.Atoi(s)
	if err != nil {
		// Some exports write counters as floats ("12.0").
		f, ferr := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if ferr != nil {
			return 0
		}
		parsed = int(f)
	}
	if parsed < 0 {
		return 0
	}
	return parsed
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"02.01.2006",
}

// ParseDate tries the known export layouts in order; nil on failure.
func ParseDate(input string) *time.Time {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// Truncate caps s at max runes.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func ContainsAnyFold(s string, tokens []string) bool {
	lower := strings.ToLower(s)
	for _, token := range tokens {
		if strings.Contains(lower, strings.ToLower(token)) {
			return true
		}
	}
	return false
}

func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func StringPtr(v string) *string { return &v }

func IntPtr(v int) *int { return &v }

func Int64Ptr(v int64) *int64 { return &v }

func BoolPtr(v bool) *bool { return &v }
