// Package etopo extracts rectangular latitude/longitude subsets of global
// bathymetry and topography grids such as ETOPO1, optionally resampling them
// onto a finer grid with a piecewise cubic scattered-data interpolant.
package etopo

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// A BoundingBox is a requested geographic region, in degrees.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Validate returns an error if b is not a proper rectangle.
func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.MinLat, b.MaxLat, b.MinLon, b.MaxLon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return newError("validate", KindDegenerateBoundingBox, "", fmt.Errorf("non-finite bound in %s", b))
		}
	}
	if b.MinLat >= b.MaxLat || b.MinLon >= b.MaxLon {
		return newError("validate", KindDegenerateBoundingBox, "", fmt.Errorf("minimum not below maximum in %s", b))
	}
	return nil
}

// Pad returns b expanded by margin degrees in every direction. It does not
// wrap at the antimeridian.
func (b BoundingBox) Pad(margin float64) BoundingBox {
	return BoundingBox{
		MinLat: b.MinLat - margin,
		MaxLat: b.MaxLat + margin,
		MinLon: b.MinLon - margin,
		MaxLon: b.MaxLon + margin,
	}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("lats %v to %v, lons %v to %v", b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
}

// IndexBounds are the nearest axis indexes of a BoundingBox's edges. Slices
// taken with them are half-open, so MaxLat and MaxLon are excluded.
type IndexBounds struct {
	MinLat int
	MaxLat int
	MinLon int
	MaxLon int
}

// Dims returns the number of rows and columns selected by b. Either may be
// zero or negative when the requested box collapses onto the same indexes.
func (b IndexBounds) Dims() (int, int) {
	return b.MaxLat - b.MinLat, b.MaxLon - b.MinLon
}

// Empty returns whether b selects no samples.
func (b IndexBounds) Empty() bool {
	rows, cols := b.Dims()
	return rows <= 0 || cols <= 0
}

// A ScatteredSample is a single (longitude, latitude, value) triple used as
// interpolation input.
type ScatteredSample struct {
	Lon   float64
	Lat   float64
	Value float64
}

// An OutputGrid is a regular latitude/longitude mesh with one value per mesh
// point. Row i of Values corresponds to Lats[i] and column j to Lons[j].
type OutputGrid struct {
	Lats   []float64
	Lons   []float64
	Values *mat.Dense
}

// Dims returns the number of rows (latitudes) and columns (longitudes) in g.
func (g *OutputGrid) Dims() (int, int) {
	return len(g.Lats), len(g.Lons)
}

// Size returns the number of points in g.
func (g *OutputGrid) Size() int {
	return len(g.Lats) * len(g.Lons)
}

// Lat returns the latitude of mesh point (i, j).
func (g *OutputGrid) Lat(i, j int) float64 { return g.Lats[i] }

// Lon returns the longitude of mesh point (i, j).
func (g *OutputGrid) Lon(i, j int) float64 { return g.Lons[j] }

// Value returns the value at mesh point (i, j).
func (g *OutputGrid) Value(i, j int) float64 { return g.Values.At(i, j) }

// A Dataset is a gridded elevation source with a longitude axis, a latitude
// axis, and a two dimensional grid indexed by [latitude, longitude].
type Dataset interface {
	// Axes returns the longitude and latitude axes.
	Axes(ctx context.Context) (lons, lats []float64, err error)
	// Window returns the samples in the half-open index range b.
	Window(ctx context.Context, b IndexBounds) (*mat.Dense, error)
	// Name identifies the dataset in log messages and errors.
	Name() string
	Close() error
}
