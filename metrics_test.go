package etopo

import (
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"gonum.org/v1/gonum/floats"
)

func TestMetrics(t *testing.T) {
	d, err := OpenGeoTIFFFile(newTestGeoTIFF().write(t))
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, d.Close())
	}()
	logger, _ := test.NewNullLogger()
	e := NewExtractor(
		WithLogger(logger),
		WithBuffer(0),
		WithFactor(1),
	)
	bbox := BoundingBox{MinLat: -1, MaxLat: 1, MinLon: -1.5, MaxLon: 1.5}

	selectedBefore := testutil.ToFloat64(selectedPoints)
	missesBefore := testutil.ToFloat64(tileCacheMisses)
	hitsBefore := testutil.ToFloat64(tileCacheHits)
	grid, err := e.Subset(t.Context(), d, bbox)
	assert.NoError(t, err)
	assert.Equal(t, 6, grid.Size())
	assert.Equal(t, selectedBefore+6, testutil.ToFloat64(selectedPoints))
	assert.Equal(t, missesBefore+1, testutil.ToFloat64(tileCacheMisses))
	assert.Equal(t, hitsBefore, testutil.ToFloat64(tileCacheHits))

	interpolatedBefore := testutil.ToFloat64(interpolatedPoints)
	missingBefore := testutil.ToFloat64(missingPoints)
	grid, err = e.Interpolate(t.Context(), d, bbox)
	assert.NoError(t, err)
	missing := floats.Count(math.IsNaN, grid.Values.RawMatrix().Data)
	assert.True(t, missing > 0)
	assert.Equal(t, interpolatedBefore+float64(grid.Size()), testutil.ToFloat64(interpolatedPoints))
	assert.Equal(t, missingBefore+float64(missing), testutil.ToFloat64(missingPoints))
	assert.Equal(t, hitsBefore+1, testutil.ToFloat64(tileCacheHits))
}
