package cronexpr

import (
	"errors"
	"testing"
	"time"

	robfig "github.com/robfig/cron/v3"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad test time %q: %v", value, err)
	}
	return ts
}

func TestNextScenarios(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
		ref  string
		want string
	}{
		{
			name: "daily after today's fire",
			src:  "30 8 * * *",
			ref:  "2024-01-01T09:00:00Z",
			want: "2024-01-02T08:30:00Z",
		},
		{
			name: "every other hour rounds up",
			src:  "0 */2 * * *",
			ref:  "2024-01-01T05:15:00Z",
			want: "2024-01-01T06:00:00Z",
		},
		{
			name: "weekday schedule skips the weekend",
			src:  "0 8 * * 1-5",
			ref:  "2024-01-05T20:00:00Z", // Friday
			want: "2024-01-08T08:00:00Z", // Monday
		},
		{
			name: "business hours wrap to next morning",
			src:  "*/15 9-17 * * *",
			ref:  "2024-03-10T17:50:00Z",
			want: "2024-03-11T09:00:00Z",
		},
		{
			name: "monthly first",
			src:  "0 0 1 * *",
			ref:  "2024-01-15T12:00:00Z",
			want: "2024-02-01T00:00:00Z",
		},
		{
			name: "leap day",
			src:  "0 0 29 2 *",
			ref:  "2023-03-01T00:00:00Z",
			want: "2024-02-29T00:00:00Z",
		},
		{
			name: "sunday is zero",
			src:  "0 9 * * 0",
			ref:  "2024-01-06T12:00:00Z", // Saturday
			want: "2024-01-07T09:00:00Z", // Sunday
		},
		{
			name: "dom or dow takes earlier weekday",
			src:  "0 12 15 * 1",
			ref:  "2024-02-01T00:00:00Z",
			want: "2024-02-05T12:00:00Z", // Monday before the 15th
		},
		{
			name: "dom or dow takes earlier month day",
			src:  "0 12 15 * 1",
			ref:  "2024-02-12T13:00:00Z", // Monday 13:00
			want: "2024-02-15T12:00:00Z", // Thursday the 15th
		},
		{
			name: "star step dom restricts alongside dow",
			src:  "0 12 */2 * 1",
			ref:  "2024-02-05T13:00:00Z",
			want: "2024-02-19T12:00:00Z", // Feb 12 is a Monday but an even day
		},
		{
			name: "exact fire instant is excluded",
			src:  "30 8 * * *",
			ref:  "2024-01-01T08:30:00Z",
			want: "2024-01-02T08:30:00Z",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			e, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.src, err)
			}
			got, err := e.Next(mustTime(t, tt.ref))
			if err != nil {
				t.Fatalf("Next error: %v", err)
			}
			if want := mustTime(t, tt.want); !got.Equal(want) {
				t.Fatalf("Next(%q, %s) = %s, want %s", tt.src, tt.ref, got.Format(time.RFC3339), want.Format(time.RFC3339))
			}
		})
	}
}

func TestNextMinuteResolution(t *testing.T) {
	t.Parallel()
	e := MustParse("30 8 * * *")
	ref := time.Date(2024, 1, 1, 8, 29, 45, 500_000_000, time.UTC)
	got, err := e.Next(ref)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want := time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %s, want %s", got, want)
	}
	if got.Second() != 0 || got.Nanosecond() != 0 {
		t.Fatalf("Next not minute-aligned: %s", got)
	}
}

func TestNextKeepsLocation(t *testing.T) {
	t.Parallel()
	zone := time.FixedZone("UTC+8", 8*3600)
	e := MustParse("30 8 * * *")
	ref := time.Date(2024, 1, 1, 9, 0, 0, 0, zone)
	got, err := e.Next(ref)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want := time.Date(2024, 1, 2, 8, 30, 0, 0, zone)
	if !got.Equal(want) {
		t.Fatalf("Next = %s, want %s", got, want)
	}
	if got.Location() != zone {
		t.Fatalf("Next location = %v, want %v", got.Location(), zone)
	}
}

func TestNextUnreachable(t *testing.T) {
	t.Parallel()
	tests := []string{
		"0 0 31 2 *",
		"0 0 30 2 *",
		"0 0 31 4 *",
	}
	for _, src := range tests {
		e, err := Parse(src)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", src, err)
		}
		_, err = e.Next(mustTime(t, "2024-01-01T00:00:00Z"))
		if !errors.Is(err, ErrUnreachable) {
			t.Fatalf("Next(%q) error = %v, want ErrUnreachable", src, err)
		}
	}
}

func TestNextStrictlyAfterAndMatching(t *testing.T) {
	t.Parallel()
	exprs := []string{
		"* * * * *",
		"30 8 * * *",
		"*/15 9-17 * * 1-5",
		"0 12 15 * 1",
		"0 0 1 */3 *",
	}
	ref := mustTime(t, "2024-05-17T10:11:12Z")
	for _, src := range exprs {
		e := MustParse(src)
		cur := ref
		for i := 0; i < 10; i++ {
			got, err := e.Next(cur)
			if err != nil {
				t.Fatalf("Next(%q, %s) error: %v", src, cur, err)
			}
			if !got.After(cur) {
				t.Fatalf("Next(%q, %s) = %s, not strictly after", src, cur, got)
			}
			if got.Second() != 0 || got.Nanosecond() != 0 {
				t.Fatalf("Next(%q) not minute-aligned: %s", src, got)
			}
			if !e.minute.match(got.Minute()) || !e.hour.match(got.Hour()) ||
				!e.month.match(int(got.Month())) || !e.dayMatches(got) {
				t.Fatalf("Next(%q) = %s does not satisfy the expression", src, got)
			}
			cur = got
		}
	}
}

// robfig/cron implements the same standard 5-field dialect; use it to
// cross-check the evaluator over a grid of expressions and reference times.
func TestNextAgreesWithRobfigCron(t *testing.T) {
	t.Parallel()
	parser := robfig.NewParser(robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow)

	// Day-field "*/n" is excluded: it keeps the star flag here (Vixie
	// behavior) but not in robfig. TestNextScenarios covers it instead.
	exprs := []string{
		"* * * * *",
		"30 8 * * *",
		"0 */2 * * *",
		"*/15 9-17 * * 1-5",
		"0 0 1 */3 *",
		"5,20,50 6-18/4 * * *",
		"0 12 15 * 1",
		"0 6 1-7 * 0",
		"0 9 * * 0",
		"30/10 * * * *",
	}
	refs := []string{
		"2024-01-01T00:00:00Z",
		"2024-02-28T23:59:00Z",
		"2024-12-31T23:30:00Z",
		"2025-06-15T12:34:56Z",
		"2023-03-01T08:30:00Z",
	}

	for _, src := range exprs {
		e, err := Parse(src)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", src, err)
		}
		sched, err := parser.Parse(src)
		if err != nil {
			t.Fatalf("robfig parse(%q) error: %v", src, err)
		}
		for _, r := range refs {
			cur := mustTime(t, r)
			for i := 0; i < 4; i++ {
				got, err := e.Next(cur)
				if err != nil {
					t.Fatalf("Next(%q, %s) error: %v", src, cur, err)
				}
				want := sched.Next(cur)
				if !got.Equal(want) {
					t.Fatalf("Next(%q, %s) = %s, want %s (robfig)",
						src, cur.Format(time.RFC3339), got.Format(time.RFC3339), want.Format(time.RFC3339))
				}
				cur = got
			}
		}
	}
}
