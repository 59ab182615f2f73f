/*
format.go - Placeholder interpolation and display formatting

PURPOSE:
  Text helpers for row templates. Interpolation is intentionally forgiving:
  a template referencing a key absent from the context is returned
  unmodified rather than failing - billing must not abort because a label
  template is stale.
*/
package billing

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Interpolate substitutes {name} placeholders from ctx. If any referenced
// key is missing, the template is returned unmodified.
func Interpolate(template string, ctx map[string]interface{}) string {
	if template == "" {
		return ""
	}
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if _, ok := ctx[m[1]]; !ok {
			return template
		}
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(s string) string {
		return fmt.Sprint(ctx[s[1:len(s)-1]])
	})
}

// resolveValue resolves a component definition field: a "{name}" string is
// looked up in the live context (nil when absent), anything else is taken
// literally. Nil means "not configured".
func resolveValue(val interface{}, ctx map[string]interface{}) interface{} {
	if val == nil {
		return nil
	}
	s, ok := val.(string)
	if ok && strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		v, found := ctx[s[1:len(s)-1]]
		if !found {
			return nil
		}
		return v
	}
	return val
}

// FormatCurrency renders an amount with thousands separators and two
// decimal places: 1234567.8 -> "1,234,567.80".
func FormatCurrency(v decimal.Decimal) string {
	s := v.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	parts := strings.SplitN(s, ".", 2)
	intPart := parts[0]

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(intPart[i : i+3])
	}
	out := b.String() + "." + parts[1]
	if neg {
		out = "-" + out
	}
	return out
}

// FormatQty renders a quantity without a fractional part when it is whole,
// with two decimals otherwise.
func FormatQty(v decimal.Decimal) string {
	if v.IsInteger() {
		return v.StringFixed(0)
	}
	return v.StringFixed(2)
}

// unitForms returns the singular display unit and its (naively) pluralized
// form for a quantity. Cosmetic only; never used in computation.
func unitForms(ctx map[string]interface{}, qty decimal.Decimal) (string, string) {
	display := "unit"
	if v, ok := ctx["unit_name"]; ok && v != nil && fmt.Sprint(v) != "" {
		display = fmt.Sprint(v)
	} else if v, ok := ctx["unit"]; ok && v != nil && fmt.Sprint(v) != "" {
		display = fmt.Sprint(v)
	}
	base := strings.ToLower(display)
	base = strings.TrimSuffix(base, "s")
	plural := base
	if !qty.Equal(decimal.NewFromInt(1)) {
		plural = base + "s"
	}
	return base, plural
}
