package cronexpr

import (
	"errors"
	"testing"
)

func TestParseValid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
	}{
		{name: "all wildcards", src: "* * * * *"},
		{name: "daily", src: "30 8 * * *"},
		{name: "every other hour", src: "0 */2 * * *"},
		{name: "weekdays", src: "0 8 * * 1-5"},
		{name: "lists and steps", src: "1,5,10-20/2 */3 1-15 2,4,6 0-6/2"},
		{name: "max values", src: "59 23 31 12 6"},
		{name: "value with step", src: "5/10 6/4 * * *"},
		{name: "range with step", src: "10-50/5 * * * *"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.src); err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.src, err)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
	}{
		{name: "minute out of range", src: "61 8 * * *"},
		{name: "four fields", src: "* * * *"},
		{name: "six fields", src: "* * * * * *"},
		{name: "empty", src: ""},
		{name: "not a number", src: "a * * * *"},
		{name: "zero step", src: "*/0 * * * *"},
		{name: "negative step", src: "*/-2 * * * *"},
		{name: "reversed range", src: "5-1 * * * *"},
		{name: "empty list item", src: "1,,2 * * * *"},
		{name: "day-of-month zero", src: "0 0 0 * *"},
		{name: "month thirteen", src: "0 0 * 13 *"},
		{name: "day-of-week seven", src: "* * * * 7"},
		{name: "hour out of range", src: "0 24 * * *"},
		{name: "dangling range", src: "1- * * * *"},
		{name: "dangling step", src: "1/ * * * *"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatalf("Parse(%q) = nil error, want ErrMalformed", tt.src)
			}
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("Parse(%q) error = %v, want ErrMalformed", tt.src, err)
			}
		})
	}
}

func TestParseNormalizesWhitespace(t *testing.T) {
	t.Parallel()
	e, err := Parse("  30   8 * *\t*  ")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got := e.String(); got != "30 8 * * *" {
		t.Fatalf("String() = %q, want %q", got, "30 8 * * *")
	}
}

func TestFieldMatch(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		field string
		def   fieldDef
		hits  []int
		miss  []int
	}{
		{name: "wildcard", field: "*", def: fieldDefs[0], hits: []int{0, 30, 59}},
		{name: "single", field: "3", def: fieldDefs[0], hits: []int{3}, miss: []int{2, 4}},
		{name: "range", field: "10-20", def: fieldDefs[0], hits: []int{10, 15, 20}, miss: []int{9, 21}},
		{name: "wildcard step", field: "*/15", def: fieldDefs[0], hits: []int{0, 15, 30, 45}, miss: []int{1, 59}},
		{name: "range step", field: "10-20/5", def: fieldDefs[0], hits: []int{10, 15, 20}, miss: []int{11, 25}},
		{name: "value step", field: "30/10", def: fieldDefs[0], hits: []int{30, 40, 50}, miss: []int{0, 35}},
		{name: "list", field: "1,7,20-22", def: fieldDefs[0], hits: []int{1, 7, 21}, miss: []int{2, 23}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			f, err := parseField(tt.def, tt.field)
			if err != nil {
				t.Fatalf("parseField(%q) error: %v", tt.field, err)
			}
			for _, v := range tt.hits {
				if !f.match(v) {
					t.Fatalf("match(%d) = false, want true for %q", v, tt.field)
				}
			}
			for _, v := range tt.miss {
				if f.match(v) {
					t.Fatalf("match(%d) = true, want false for %q", v, tt.field)
				}
			}
		})
	}
}

func TestParseStarFlag(t *testing.T) {
	t.Parallel()
	tests := []struct {
		src     string
		domStar bool
		dowStar bool
	}{
		{src: "* * * * *", domStar: true, dowStar: true},
		{src: "* * 15 * *", domStar: false, dowStar: true},
		{src: "* * * * 1-5", domStar: true, dowStar: false},
		{src: "* * */2 * 1", domStar: true, dowStar: false},
		{src: "* * 1,15 * 0,6", domStar: false, dowStar: false},
	}

	for _, tt := range tests {
		e, err := Parse(tt.src)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tt.src, err)
		}
		if e.dom.star != tt.domStar || e.dow.star != tt.dowStar {
			t.Fatalf("%q star flags = (%v, %v), want (%v, %v)",
				tt.src, e.dom.star, e.dow.star, tt.domStar, tt.dowStar)
		}
	}
}
