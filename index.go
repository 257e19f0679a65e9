package etopo

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// NearestIndex returns the index of the element of axis closest to target.
// Ties resolve to the lowest index. Targets beyond either end of axis resolve
// to the nearest endpoint. It returns -1 if axis is empty.
func NearestIndex(axis []float64, target float64) int {
	if len(axis) == 0 {
		return -1
	}
	distances := make([]float64, len(axis))
	for i, v := range axis {
		distances[i] = math.Abs(v - target)
	}
	return floats.MinIdx(distances)
}

// LocateIndices returns the nearest indexes of b's edges in lats and lons.
func LocateIndices(b BoundingBox, lats, lons []float64) IndexBounds {
	return IndexBounds{
		MinLat: NearestIndex(lats, b.MinLat),
		MaxLat: NearestIndex(lats, b.MaxLat),
		MinLon: NearestIndex(lons, b.MinLon),
		MaxLon: NearestIndex(lons, b.MaxLon),
	}
}
