package etopo_test

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-etopo"
)

func TestNearestIndex(t *testing.T) {
	axis := []float64{-10, -5, 0, 5, 10}
	for _, tc := range []struct {
		name     string
		axis     []float64
		target   float64
		expected int
	}{
		{name: "exact", axis: axis, target: 5, expected: 3},
		{name: "nearest", axis: axis, target: 3.2, expected: 3},
		{name: "tie_lowest", axis: axis, target: 2.5, expected: 2},
		{name: "below", axis: axis, target: -90, expected: 0},
		{name: "above", axis: axis, target: 90, expected: 4},
		{name: "single", axis: []float64{7}, target: -3, expected: 0},
		{name: "empty", axis: nil, target: 0, expected: -1},
		{name: "descending", axis: []float64{10, 5, 0}, target: 4, expected: 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, etopo.NearestIndex(tc.axis, tc.target))
		})
	}
}

func TestLocateIndices(t *testing.T) {
	lats := []float64{-10, -5, 0, 5, 10}
	lons := []float64{-20, -10, 0, 10, 20}
	for _, tc := range []struct {
		name     string
		bbox     etopo.BoundingBox
		expected etopo.IndexBounds
	}{
		{
			name:     "inside",
			bbox:     etopo.BoundingBox{MinLat: -3, MaxLat: 3, MinLon: -12, MaxLon: 12},
			expected: etopo.IndexBounds{MinLat: 1, MaxLat: 3, MinLon: 1, MaxLon: 3},
		},
		{
			name:     "clamped",
			bbox:     etopo.BoundingBox{MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180},
			expected: etopo.IndexBounds{MinLat: 0, MaxLat: 4, MinLon: 0, MaxLon: 4},
		},
		{
			name:     "collapsed",
			bbox:     etopo.BoundingBox{MinLat: 0.5, MaxLat: 1, MinLon: 0, MaxLon: 1},
			expected: etopo.IndexBounds{MinLat: 2, MaxLat: 2, MinLon: 2, MaxLon: 2},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, etopo.LocateIndices(tc.bbox, lats, lons))
		})
	}
}
