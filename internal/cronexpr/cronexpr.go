package cronexpr

import "errors"

var (
	// ErrMalformed reports syntactically invalid expression text
	// (wrong field count, out-of-range numbers, bad ranges/steps).
	ErrMalformed = errors.New("malformed cron expression")

	// ErrUnreachable reports a well-formed expression that matches no instant
	// within the search horizon (e.g. day-of-month 31 in February).
	ErrUnreachable = errors.New("unreachable cron schedule")
)

type termKind uint8

const (
	termAny    termKind = iota // *
	termSingle                 // n
	termRange                  // a-b
	termStep                   // a-b/n (also */n and a/n)
)

// term is one comma-separated matcher within a field.
type term struct {
	kind termKind
	lo   int
	hi   int
	step int
}

func (t term) match(v int) bool {
	switch t.kind {
	case termAny:
		return true
	case termSingle:
		return v == t.lo
	case termRange:
		return v >= t.lo && v <= t.hi
	case termStep:
		return v >= t.lo && v <= t.hi && (v-t.lo)%t.step == 0
	default:
		return false
	}
}

// field is a parsed cron field: a list of terms, any of which may match.
type field struct {
	terms []term

	// star is set when the field contains a "*"-based term. The day rule
	// combines day-of-month and day-of-week with OR only when neither
	// field has it.
	star bool
}

func (f field) match(v int) bool {
	for _, t := range f.terms {
		if t.match(v) {
			return true
		}
	}
	return false
}

// Expression is a parsed cron expression. It is immutable after Parse and
// safe for concurrent use.
type Expression struct {
	src    string
	minute field
	hour   field
	dom    field
	month  field
	dow    field
}

func (e *Expression) String() string { return e.src }
