package presence

import (
	"testing"

	"ridedesk/internal/types"
)

func TestSortByDistance(t *testing.T) {
	type hit struct {
		id types.ID
		d  float64
	}
	hits := []hit{{"c", 5.0}, {"a", 1.0}, {"b", 3.0}}

	sortByDistance(hits, func(h hit) float64 { return h.d })

	if hits[0].id != "a" || hits[1].id != "b" || hits[2].id != "c" {
		t.Errorf("unexpected sort order: %v", hits)
	}

	var empty []hit
	sortByDistance(empty, func(h hit) float64 { return h.d })
}
