package etopo

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Interpolate returns the values of ds inside bbox resampled onto a regular
// grid with e's refinement factor times as many rows and columns as the
// dataset has inside bbox. Input samples are taken from bbox padded by e's
// buffer. Output points outside the convex hull of the input samples are NaN.
func (e *Extractor) Interpolate(ctx context.Context, ds Dataset, bbox BoundingBox) (*OutputGrid, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	if e.factor <= 0 {
		return nil, newError("interpolate", KindDegenerateBoundingBox, ds.Name(),
			fmt.Errorf("refinement factor %d is not positive", e.factor))
	}

	lons, lats, err := ds.Axes(ctx)
	if err != nil {
		return nil, wrapError("interpolate", KindReadFailure, ds.Name(), err)
	}

	padded := bbox.Pad(e.buffer)
	paddedBounds := LocateIndices(padded, lats, lons)
	bounds := LocateIndices(bbox, lats, lons)
	if e.debug {
		e.log.WithFields(logrus.Fields{
			"bbox":   padded.String(),
			"bounds": fmt.Sprintf("%+v", paddedBounds),
		}).Debug("buffered")
		e.log.WithFields(logrus.Fields{
			"bbox":   bbox.String(),
			"bounds": fmt.Sprintf("%+v", bounds),
		}).Debug("unbuffered")
	}

	samples, err := bufferedSamples(ctx, ds, paddedBounds, lats, lons)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, newError("interpolate", KindInterpolation, ds.Name(),
			fmt.Errorf("buffered window %+v contains no samples", paddedBounds))
	}
	if bounds.Empty() {
		return nil, newError("interpolate", KindDegenerateBoundingBox, ds.Name(),
			fmt.Errorf("%s selects no samples (indexes %+v)", bbox, bounds))
	}
	e.logSelected(ds, bbox, bounds)

	rows, cols := bounds.Dims()
	grid := &OutputGrid{
		Lats: linspace(bbox.MinLat, bbox.MaxLat, e.factor*rows),
		Lons: linspace(bbox.MinLon, bbox.MaxLon, e.factor*cols),
	}
	e.log.WithFields(logrus.Fields{
		"rows":    len(grid.Lats),
		"cols":    len(grid.Lons),
		"samples": len(samples),
	}).Debug("interpolation grid")

	interpolant, err := NewCloughTocher(samples, e.cloughTocherOptions...)
	if err != nil {
		return nil, wrapError("interpolate", KindInterpolation, ds.Name(), err)
	}
	if !interpolant.Converged() {
		gradientNonConvergences.Inc()
		e.log.WithField("file", ds.Name()).Warn("gradient estimation did not converge")
	}

	grid.Values = mat.NewDense(len(grid.Lats), len(grid.Lons), nil)
	for i, lat := range grid.Lats {
		for j, lon := range grid.Lons {
			grid.Values.Set(i, j, interpolant.Eval(lon, lat))
		}
	}

	missing := floats.Count(math.IsNaN, grid.Values.RawMatrix().Data)
	interpolatedPoints.Add(float64(grid.Size()))
	missingPoints.Add(float64(missing))
	outRows, outCols := grid.Dims()
	e.log.WithFields(logrus.Fields{
		"file":    ds.Name(),
		"points":  grid.Size(),
		"rows":    outRows,
		"cols":    outCols,
		"missing": missing,
	}).Infof("interpolated %d points (%dx%d)", grid.Size(), outCols, outRows)

	return grid, nil
}

// InterpolateFile opens filename, returns the interpolated subset of it
// inside bbox, and closes it.
func (e *Extractor) InterpolateFile(ctx context.Context, filename string, bbox BoundingBox) (*OutputGrid, error) {
	ds, err := e.open(filename)
	if err != nil {
		return nil, err
	}
	defer ds.Close()
	return e.Interpolate(ctx, ds, bbox)
}

// bufferedSamples flattens the window of ds at bounds, row by row, into
// scattered samples.
func bufferedSamples(ctx context.Context, ds Dataset, bounds IndexBounds, lats, lons []float64) ([]ScatteredSample, error) {
	if bounds.Empty() {
		return nil, nil
	}
	window, err := ds.Window(ctx, bounds)
	if err != nil {
		return nil, wrapError("interpolate", KindReadFailure, ds.Name(), err)
	}
	rows, cols := window.Dims()
	samples := make([]ScatteredSample, 0, rows*cols)
	for i := range rows {
		for j := range cols {
			samples = append(samples, ScatteredSample{
				Lon:   lons[bounds.MinLon+j],
				Lat:   lats[bounds.MinLat+i],
				Value: window.At(i, j),
			})
		}
	}
	return samples, nil
}

// linspace returns n evenly spaced values from start to stop inclusive. The
// last value is exactly stop and a single value is start.
func linspace(start, stop float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{start}
	}
	values := floats.Span(make([]float64, n), start, stop)
	values[n-1] = stop
	return values
}
