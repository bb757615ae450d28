package validity

import (
	"testing"
	"time"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsp(s string) *time.Time {
	t := ts(s)
	return &t
}

func TestRealValidTo(t *testing.T) {
	tests := []struct {
		name     string
		seenLast time.Time
		stated   *time.Time
		now      time.Time
		want     *time.Time
	}{
		{
			name:     "stale site trusts last seen over stated date",
			seenLast: ts("2020-06-01T00:00:00Z"),
			stated:   tsp("2020-06-15T00:00:00Z"),
			now:      ts("2022-01-01T00:00:00Z"),
			want:     tsp("2020-06-01T00:00:00Z"),
		},
		{
			name:     "fresh observation trusts stated date",
			seenLast: ts("2020-06-01T00:00:00Z"),
			stated:   tsp("2020-06-15T00:00:00Z"),
			now:      ts("2020-06-01T00:00:01Z"),
			want:     tsp("2020-06-15T00:00:00Z"),
		},
		{
			name:     "no stated date and fresh is indeterminate",
			seenLast: ts("2020-06-01T00:00:00Z"),
			stated:   nil,
			now:      ts("2020-06-01T00:00:01Z"),
			want:     nil,
		},
		{
			name:     "no stated date and gone for two days presumes ended at last seen",
			seenLast: ts("2020-06-01T00:00:00Z"),
			stated:   nil,
			now:      ts("2020-06-03T00:00:00Z"),
			want:     tsp("2020-06-01T00:00:00Z"),
		},
		{
			name:     "stated date before last seen gets one hour grace",
			seenLast: ts("2020-06-01T12:00:00Z"),
			stated:   tsp("2020-06-01T00:00:00Z"),
			now:      ts("2020-06-01T12:30:00Z"),
			want:     tsp("2020-06-01T13:00:00Z"),
		},
		{
			name:     "stated date within the grace window of last seen is kept as-is",
			seenLast: ts("2020-06-01T12:00:00Z"),
			stated:   tsp("2020-06-01T12:30:00Z"),
			now:      ts("2020-06-01T12:31:00Z"),
			want:     tsp("2020-06-01T12:30:00Z"),
		},
		{
			name:     "future stated date but observation exactly one day old falls back to last seen",
			seenLast: ts("2020-06-01T00:00:00Z"),
			stated:   tsp("2020-06-15T00:00:00Z"),
			now:      ts("2020-06-02T00:00:00Z"),
			want:     tsp("2020-06-01T00:00:00Z"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RealValidTo(tt.seenLast, tt.stated, tt.now)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("RealValidTo() = %v, want %v", got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Errorf("RealValidTo() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsActive(t *testing.T) {
	seen := ts("2020-06-01T00:00:00Z")

	if !IsActive(seen, nil, ts("2020-06-01T06:00:00Z")) {
		t.Error("indeterminate end date should count as active")
	}
	if IsActive(seen, nil, ts("2020-06-05T00:00:00Z")) {
		t.Error("offer unseen for days without stated end should be inactive")
	}
	if !IsActive(seen, tsp("2020-06-10T00:00:00Z"), ts("2020-06-01T01:00:00Z")) {
		t.Error("fresh offer with future end date should be active")
	}
	if IsActive(seen, tsp("2020-05-20T00:00:00Z"), ts("2020-06-01T02:00:00Z")) {
		t.Error("offer past its grace period should be inactive")
	}
}
