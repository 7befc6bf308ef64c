package validation

import (
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/diewo77/stockroom/internal/apperr"
)

// Violations maps a field name to a machine-readable violation code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Error lists violations in field order so a Violations can travel as an error.
func (v Violations) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + v[f]
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

// Err returns v wrapped in a BAD_REQUEST error, or nil when empty.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return apperr.Wrap(apperr.CodeBadRequest, "validation failed", v)
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func MaxLen(field, value string, n int, v Violations) {
	if utf8.RuneCountInString(value) > n {
		v[field] = "too_long"
	}
}

func NonNegativeFloat(field string, val float64, v Violations) {
	if val < 0 {
		v[field] = "must_not_be_negative"
	}
}

func NonNegativeInt(field string, val int, v Violations) {
	if val < 0 {
		v[field] = "must_not_be_negative"
	}
}

// OptionalURL accepts "" or an absolute http(s) URL.
func OptionalURL(field, value string, v Violations) {
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v[field] = "invalid_url"
	}
}
