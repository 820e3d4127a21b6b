package filter

import (
	"testing"
	"time"

	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/testutil"
)

func TestIsVisible(t *testing.T) {
	t1 := testutil.Month(1)
	t2 := testutil.Month(2)
	tests := []struct {
		name string
		r    *model.TemporalRange
		at   time.Time
		want bool
	}{
		{"nil range", nil, t1, true},
		{"empty range", &model.TemporalRange{}, t1, true},
		{"at validFrom", &model.TemporalRange{ValidFrom: &t1}, t1, true},
		{"just before validFrom", &model.TemporalRange{ValidFrom: &t1}, t1.Add(-time.Nanosecond), false},
		{"at validTo", &model.TemporalRange{ValidTo: &t2}, t2, true},
		{"just after validTo", &model.TemporalRange{ValidTo: &t2}, t2.Add(time.Nanosecond), false},
		{"inside closed range", &model.TemporalRange{ValidFrom: &t1, ValidTo: &t2}, t1.Add(time.Hour), true},
		{"single instant range", &model.TemporalRange{ValidFrom: &t1, ValidTo: &t1}, t1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVisible(tt.r, tt.at); got != tt.want {
				t.Errorf("IsVisible = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestIsVisible_BoundaryOneUnitEarlier checks validFrom = T is visible at T
// and hidden at T-1 for several unit sizes.
func TestIsVisible_BoundaryOneUnitEarlier(t *testing.T) {
	T := testutil.Month(3)
	r := &model.TemporalRange{ValidFrom: &T}
	for _, unit := range []time.Duration{time.Nanosecond, time.Millisecond, time.Second, 24 * time.Hour} {
		if !IsVisible(r, T) {
			t.Fatalf("not visible at validFrom")
		}
		if IsVisible(r, T.Add(-unit)) {
			t.Errorf("visible at validFrom-%v", unit)
		}
	}
}

func TestIsVisible_IgnoresLocation(t *testing.T) {
	T := testutil.Month(3)
	r := &model.TemporalRange{ValidFrom: &T}
	loc := time.FixedZone("UTC+5", 5*3600)
	if !IsVisible(r, T.In(loc)) {
		t.Error("same instant in another zone should be visible")
	}
}
