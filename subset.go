package etopo

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
)

// Subset returns the samples of ds inside bbox at the dataset's own
// resolution.
func (e *Extractor) Subset(ctx context.Context, ds Dataset, bbox BoundingBox) (*OutputGrid, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}

	lons, lats, err := ds.Axes(ctx)
	if err != nil {
		return nil, wrapError("subset", KindReadFailure, ds.Name(), err)
	}

	bounds := LocateIndices(bbox, lats, lons)
	if bounds.Empty() {
		return nil, newError("subset", KindDegenerateBoundingBox, ds.Name(),
			fmt.Errorf("%s selects no samples (indexes %+v)", bbox, bounds))
	}

	values, err := ds.Window(ctx, bounds)
	if err != nil {
		return nil, wrapError("subset", KindReadFailure, ds.Name(), err)
	}

	grid := &OutputGrid{
		Lats:   slices.Clone(lats[bounds.MinLat:bounds.MaxLat]),
		Lons:   slices.Clone(lons[bounds.MinLon:bounds.MaxLon]),
		Values: values,
	}
	selectedPoints.Add(float64(grid.Size()))
	e.logSelected(ds, bbox, bounds)
	return grid, nil
}

// SubsetFile opens filename, returns the subset of it inside bbox, and closes
// it.
func (e *Extractor) SubsetFile(ctx context.Context, filename string, bbox BoundingBox) (*OutputGrid, error) {
	ds, err := e.open(filename)
	if err != nil {
		return nil, err
	}
	defer ds.Close()
	return e.Subset(ctx, ds, bbox)
}

// logSelected reports the number of samples selected by bounds.
func (e *Extractor) logSelected(ds Dataset, bbox BoundingBox, bounds IndexBounds) {
	rows, cols := bounds.Dims()
	e.log.WithFields(logrus.Fields{
		"file":   ds.Name(),
		"points": rows * cols,
		"rows":   rows,
		"cols":   cols,
	}).Infof("selected %d points (%dx%d) from %s", rows*cols, cols, rows, ds.Name())
	e.log.WithFields(logrus.Fields{
		"minLat": bbox.MinLat,
		"maxLat": bbox.MaxLat,
		"minLon": bbox.MinLon,
		"maxLon": bbox.MaxLon,
	}).Infof("requested %s", bbox)
}
