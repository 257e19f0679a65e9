package etopo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"slices"

	"github.com/ctessum/cdf"
	"gonum.org/v1/gonum/mat"
)

// Variable names in ETOPO1 style NetCDF files.
const (
	netCDFLonVar  = "x"
	netCDFLatVar  = "y"
	netCDFGridVar = "z"
)

// A NetCDFDataset is an open NetCDF (classic format) file with a longitude
// axis x, a latitude axis y, and an elevation grid z(y, x).
type NetCDFDataset struct {
	filename string
	file     *os.File
	nc       *cdf.File
	lons     []float64
	lats     []float64
}

// OpenNetCDF opens the NetCDF file filename.
func OpenNetCDF(filename string) (*NetCDFDataset, error) {
	ok := false

	file, err := os.Open(filename)
	if err != nil {
		return nil, newError("open", KindInputNotFound, filename, err)
	}
	defer func() {
		if !ok {
			_ = file.Close()
		}
	}()

	nc, err := cdf.Open(file)
	if err != nil {
		return nil, newError("open", KindInputNotFound, filename, err)
	}

	d := &NetCDFDataset{
		filename: filename,
		file:     file,
		nc:       nc,
	}
	if d.lons, err = d.readAxis(netCDFLonVar); err != nil {
		return nil, err
	}
	if d.lats, err = d.readAxis(netCDFLatVar); err != nil {
		return nil, err
	}
	if !d.hasVariable(netCDFGridVar) {
		return nil, newError("open", KindInputNotFound, filename, fmt.Errorf("missing variable %s", netCDFGridVar))
	}
	if dims := nc.Header.Lengths(netCDFGridVar); len(dims) != 2 || dims[0] != len(d.lats) || dims[1] != len(d.lons) {
		return nil, newError("open", KindInputNotFound, filename,
			fmt.Errorf("variable %s has shape %v, expected [%d %d]", netCDFGridVar, dims, len(d.lats), len(d.lons)))
	}

	ok = true
	return d, nil
}

// Axes returns d's longitude and latitude axes.
func (d *NetCDFDataset) Axes(ctx context.Context) ([]float64, []float64, error) {
	return d.lons, d.lats, nil
}

// Window reads the rows of z selected by b. The cdf library reads contiguous
// runs with inclusive ends, so each row is read separately.
func (d *NetCDFDataset) Window(ctx context.Context, b IndexBounds) (*mat.Dense, error) {
	if err := checkWindow(b, len(d.lats), len(d.lons)); err != nil {
		return nil, newError("read", KindDegenerateBoundingBox, d.filename, err)
	}
	rows, cols := b.Dims()
	values := make([]float64, 0, rows*cols)
	for r := b.MinLat; r < b.MaxLat; r++ {
		row, err := d.readVar(netCDFGridVar, []int{r, b.MinLon}, []int{r, b.MaxLon - 1})
		if err != nil {
			return nil, err
		}
		if len(row) != cols {
			return nil, newError("read", KindReadFailure, d.filename,
				fmt.Errorf("read %d values from row %d of %s, expected %d", len(row), r, netCDFGridVar, cols))
		}
		values = append(values, row...)
	}
	return mat.NewDense(rows, cols, values), nil
}

// Name returns d's filename.
func (d *NetCDFDataset) Name() string {
	return d.filename
}

func (d *NetCDFDataset) Close() error {
	return d.file.Close()
}

// readAxis reads the whole one dimensional variable v.
func (d *NetCDFDataset) readAxis(v string) ([]float64, error) {
	if !d.hasVariable(v) || len(d.nc.Header.Lengths(v)) != 1 {
		return nil, newError("open", KindInputNotFound, d.filename,
			fmt.Errorf("missing one dimensional variable %s", v))
	}
	return d.readVar(v, nil, nil)
}

func (d *NetCDFDataset) hasVariable(v string) bool {
	return slices.Contains(d.nc.Header.Variables(), v)
}

// readVar reads the contiguous run from begin to end inclusive of the numeric
// variable v as float64s, or all of v if begin and end are nil. Values equal to
// v's _FillValue are replaced by NaN.
func (d *NetCDFDataset) readVar(v string, begin, end []int) ([]float64, error) {
	r := d.nc.Reader(v, begin, end)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, newError("read", KindReadFailure, d.filename, fmt.Errorf("%s: %w", v, err))
	}
	values, err := toFloat64s(buf)
	if err != nil {
		return nil, newError("read", KindReadFailure, d.filename, fmt.Errorf("%s: %w", v, err))
	}

	if fillValue := d.nc.Header.GetAttribute(v, "_FillValue"); fillValue != nil {
		fill, err := toFloat64s(fillValue)
		if err != nil || len(fill) != 1 {
			return nil, newError("read", KindReadFailure, d.filename,
				fmt.Errorf("%s: invalid _FillValue %v", v, fillValue))
		}
		for i, value := range values {
			if value == fill[0] {
				values[i] = math.NaN()
			}
		}
	}
	return values, nil
}

// toFloat64s converts a slice of NetCDF numeric values to float64s.
func toFloat64s(data any) ([]float64, error) {
	switch data := data.(type) {
	case []float64:
		return data, nil
	case []float32:
		result := make([]float64, len(data))
		for i, value := range data {
			result[i] = widenFloat32(value)
		}
		return result, nil
	case []int32:
		return convertSlice(data), nil
	case []int16:
		return convertSlice(data), nil
	case []int8:
		return convertSlice(data), nil
	case []uint8:
		return convertSlice(data), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", data)
	}
}

func convertSlice[T int32 | int16 | int8 | uint8](data []T) []float64 {
	result := make([]float64, len(data))
	for i, value := range data {
		result[i] = float64(value)
	}
	return result
}

// checkWindow returns an error if b is empty or outside a rows by cols grid.
func checkWindow(b IndexBounds, rows, cols int) error {
	switch {
	case b.Empty():
		return fmt.Errorf("empty window %+v", b)
	case b.MinLat < 0 || b.MaxLat > rows || b.MinLon < 0 || b.MaxLon > cols:
		return fmt.Errorf("window %+v outside %dx%d grid", b, rows, cols)
	default:
		return nil
	}
}

// WriteNetCDF writes grid to filename as NetCDF with float32 variables
// latitude(latitude), longitude(longitude), and altitude(latitude, longitude).
// Any existing file is replaced. No file is left behind on failure.
func WriteNetCDF(filename string, grid *OutputGrid) (err error) {
	lats := uniqueSorted(grid.Lats)
	lons := uniqueSorted(grid.Lons)
	rows, cols := grid.Values.Dims()
	if len(lats) != rows || len(lons) != cols {
		return newError("write", KindOutputWrite, filename,
			fmt.Errorf("%d unique latitudes and %d unique longitudes for %dx%d values", len(lats), len(lons), rows, cols))
	}

	h := cdf.NewHeader([]string{"latitude", "longitude"}, []int{rows, cols})
	h.AddVariable("latitude", []string{"latitude"}, []float32{0})
	h.AddAttribute("latitude", "units", "degrees_north")
	h.AddVariable("longitude", []string{"longitude"}, []float32{0})
	h.AddAttribute("longitude", "units", "degrees_east")
	h.AddVariable("altitude", []string{"latitude", "longitude"}, []float32{0})
	h.AddAttribute("altitude", "units", "m")
	h.Define()
	if errs := h.Check(); len(errs) != 0 {
		return newError("write", KindOutputWrite, filename, errors.Join(errs...))
	}

	file, err := os.Create(filename)
	if err != nil {
		return newError("write", KindOutputWrite, filename, err)
	}
	defer func() {
		if closeErr := file.Close(); err == nil && closeErr != nil {
			err = newError("write", KindOutputWrite, filename, closeErr)
		}
		if err != nil {
			_ = os.Remove(filename)
		}
	}()

	nc, err := cdf.Create(file, h)
	if err != nil {
		return newError("write", KindOutputWrite, filename, err)
	}

	altitude := make([]float32, 0, rows*cols)
	for i := range rows {
		for j := range cols {
			altitude = append(altitude, float32(grid.Values.At(i, j)))
		}
	}
	for _, variable := range []struct {
		name  string
		end   []int
		value []float32
	}{
		{name: "latitude", end: []int{rows - 1}, value: convertFloat32s(lats)},
		{name: "longitude", end: []int{cols - 1}, value: convertFloat32s(lons)},
		{name: "altitude", end: []int{rows - 1, cols - 1}, value: altitude},
	} {
		if err := writeVar(nc, variable.name, variable.end, variable.value); err != nil {
			return newError("write", KindOutputWrite, filename, fmt.Errorf("%s: %w", variable.name, err))
		}
	}
	return nil
}

// writeVar writes values to the run of v from the origin to end inclusive. The
// cdf library reports io.EOF when a write reaches the end of its run.
func writeVar(nc *cdf.File, v string, end []int, values []float32) error {
	n, err := nc.Writer(v, make([]int, len(end)), end).Write(values)
	switch {
	case err != nil && !errors.Is(err, io.EOF):
		return err
	case n != len(values):
		return fmt.Errorf("wrote %d of %d values", n, len(values))
	default:
		return nil
	}
}

func convertFloat32s(data []float64) []float32 {
	result := make([]float32, len(data))
	for i, value := range data {
		result[i] = float32(value)
	}
	return result
}

// uniqueSorted returns the distinct values of s in increasing order.
func uniqueSorted(s []float64) []float64 {
	result := slices.Clone(s)
	slices.Sort(result)
	return slices.Compact(result)
}

// OpenDataset opens filename as a GeoTIFF if it has a .tif or .tiff
// extension and as NetCDF otherwise.
func OpenDataset(filename string) (Dataset, error) {
	if _, err := os.Stat(filename); errors.Is(err, fs.ErrNotExist) {
		return nil, newError("open", KindInputNotFound, filename, err)
	}
	if isGeoTIFFFilename(filename) {
		ds, err := OpenGeoTIFFFile(filename)
		if err != nil {
			return nil, err
		}
		return ds, nil
	}
	ds, err := OpenNetCDF(filename)
	if err != nil {
		return nil, err
	}
	return ds, nil
}
