package cronexpr

import (
	"fmt"
	"strconv"
	"strings"
)

type fieldDef struct {
	name string
	min  int
	max  int
}

var fieldDefs = [5]fieldDef{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// Parse parses a 5-field cron expression. Errors wrap ErrMalformed and name
// the offending field.
func Parse(src string) (*Expression, error) {
	parts := strings.Fields(src)
	if len(parts) != 5 {
		return nil, fmt.Errorf("%w: want 5 fields, got %d in %q", ErrMalformed, len(parts), src)
	}

	e := &Expression{src: strings.Join(parts, " ")}
	dst := [5]*field{&e.minute, &e.hour, &e.dom, &e.month, &e.dow}
	for i, def := range fieldDefs {
		f, err := parseField(def, parts[i])
		if err != nil {
			return nil, err
		}
		*dst[i] = f
	}
	return e, nil
}

// MustParse is Parse for expressions known to be valid; it panics otherwise.
func MustParse(src string) *Expression {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

func parseField(def fieldDef, text string) (field, error) {
	var f field
	for _, item := range strings.Split(text, ",") {
		if item == "" {
			return field{}, fmt.Errorf("%w: %s: empty list item in %q", ErrMalformed, def.name, text)
		}
		t, star, err := parseTerm(def, item)
		if err != nil {
			return field{}, err
		}
		if star {
			f.star = true
		}
		f.terms = append(f.terms, t)
	}
	return f, nil
}

// parseTerm parses one list item: "*", "n", "a-b", optionally with "/step".
// The second return reports whether the term is "*"-based.
func parseTerm(def fieldDef, item string) (term, bool, error) {
	base, stepText, hasStep := strings.Cut(item, "/")

	step := 1
	if hasStep {
		n, err := strconv.Atoi(stepText)
		if err != nil || n < 1 {
			return term{}, false, fmt.Errorf("%w: %s: bad step in %q", ErrMalformed, def.name, item)
		}
		step = n
	}

	if base == "*" {
		if !hasStep {
			return term{kind: termAny, lo: def.min, hi: def.max}, true, nil
		}
		return term{kind: termStep, lo: def.min, hi: def.max, step: step}, true, nil
	}

	if lo, hi, isRange := strings.Cut(base, "-"); isRange {
		a, err := parseValue(def, lo)
		if err != nil {
			return term{}, false, err
		}
		b, err := parseValue(def, hi)
		if err != nil {
			return term{}, false, err
		}
		if a > b {
			return term{}, false, fmt.Errorf("%w: %s: range start after end in %q", ErrMalformed, def.name, item)
		}
		if hasStep {
			return term{kind: termStep, lo: a, hi: b, step: step}, false, nil
		}
		return term{kind: termRange, lo: a, hi: b}, false, nil
	}

	n, err := parseValue(def, base)
	if err != nil {
		return term{}, false, err
	}
	if hasStep {
		// "n/step" runs from n to the field max, standard cron reading.
		return term{kind: termStep, lo: n, hi: def.max, step: step}, false, nil
	}
	return term{kind: termSingle, lo: n}, false, nil
}

func parseValue(def fieldDef, text string) (int, error) {
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not a number", ErrMalformed, def.name, text)
	}
	if n < def.min || n > def.max {
		return 0, fmt.Errorf("%w: %s: value %d out of range %d-%d", ErrMalformed, def.name, n, def.min, def.max)
	}
	return n, nil
}
