package filter

import (
	"time"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

// IsVisible reports whether an entity with range r exists at instant t.
// Both bounds are inclusive; a nil range or nil bound is unconstrained.
func IsVisible(r *model.TemporalRange, t time.Time) bool {
	if r == nil {
		return true
	}
	if r.ValidFrom != nil && t.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidTo != nil && t.After(*r.ValidTo) {
		return false
	}
	return true
}
