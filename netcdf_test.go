package etopo_test

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/ctessum/cdf"
	"gonum.org/v1/gonum/mat"

	"github.com/twpayne/go-etopo"
)

const testFillValue = math.MinInt32

// writeTestNetCDF writes an ETOPO1 style grid with int32 z(y, x) to filename.
func writeTestNetCDF(t *testing.T, filename string, lons, lats []float64, z []int32) {
	t.Helper()
	h := cdf.NewHeader([]string{"x", "y"}, []int{len(lons), len(lats)})
	h.AddAttribute("", "title", "ETOPO1 test grid")
	h.AddVariable("x", []string{"x"}, []float64{0})
	h.AddAttribute("x", "long_name", "Longitude")
	h.AddVariable("y", []string{"y"}, []float64{0})
	h.AddAttribute("y", "long_name", "Latitude")
	h.AddVariable("z", []string{"y", "x"}, []int32{0})
	h.AddAttribute("z", "_FillValue", []int32{testFillValue})
	h.Define()
	assert.Equal(t, 0, len(h.Check()))

	file, err := os.Create(filename)
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, file.Close())
	}()
	nc, err := cdf.Create(file, h)
	assert.NoError(t, err)
	for _, variable := range []struct {
		name  string
		end   []int
		value any
	}{
		{name: "x", end: []int{len(lons)}, value: lons},
		{name: "y", end: []int{len(lats)}, value: lats},
		{name: "z", end: []int{len(lats), len(lons)}, value: z},
	} {
		_, err := nc.Writer(variable.name, make([]int, len(variable.end)), variable.end).Write(variable.value)
		assert.NoError(t, err)
	}
}

func newTestNetCDFFile(t *testing.T) string {
	t.Helper()
	lons := []float64{-10, -5, 0, 5, 10}
	lats := []float64{-10, -5, 0, 5, 10}
	z := make([]int32, 0, len(lats)*len(lons))
	for _, lat := range lats {
		for _, lon := range lons {
			z = append(z, int32(linear(lon, lat)))
		}
	}
	z[len(z)-1] = testFillValue
	filename := filepath.Join(t.TempDir(), "ETOPO1_Ice_g_gmt4.grd")
	writeTestNetCDF(t, filename, lons, lats, z)
	return filename
}

func TestOpenNetCDF(t *testing.T) {
	filename := newTestNetCDFFile(t)
	d, err := etopo.OpenNetCDF(filename)
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, d.Close())
	}()
	assert.Equal(t, filename, d.Name())

	lons, lats, err := d.Axes(t.Context())
	assert.NoError(t, err)
	assert.Equal(t, []float64{-10, -5, 0, 5, 10}, lons)
	assert.Equal(t, []float64{-10, -5, 0, 5, 10}, lats)

	window, err := d.Window(t.Context(), etopo.IndexBounds{MinLat: 1, MaxLat: 3, MinLon: 2, MaxLon: 5})
	assert.NoError(t, err)
	assert.Equal(t, []float64{-500, -495, -490, 0, 5, 10}, window.RawMatrix().Data)

	window, err = d.Window(t.Context(), etopo.IndexBounds{MinLat: 4, MaxLat: 5, MinLon: 3, MaxLon: 5})
	assert.NoError(t, err)
	assert.Equal(t, 1005.0, window.At(0, 0))
	assert.True(t, math.IsNaN(window.At(0, 1)))

	window, err = d.Window(t.Context(), etopo.IndexBounds{MinLat: 1, MaxLat: 3, MinLon: 1, MaxLon: 3})
	assert.NoError(t, err)
	assert.Equal(t, []float64{-505, -500, -5, 0}, window.RawMatrix().Data)

	window, err = d.Window(t.Context(), etopo.IndexBounds{MinLat: 2, MaxLat: 3, MinLon: 0, MaxLon: 4})
	assert.NoError(t, err)
	assert.Equal(t, []float64{-10, -5, 0, 5}, window.RawMatrix().Data)

	window, err = d.Window(t.Context(), etopo.IndexBounds{MinLat: 0, MaxLat: 5, MinLon: 0, MaxLon: 5})
	assert.NoError(t, err)
	rows, cols := window.Dims()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 5, cols)
	for k, lat := range lats {
		for c, lon := range lons {
			if k == 4 && c == 4 {
				assert.True(t, math.IsNaN(window.At(k, c)))
			} else {
				assert.Equal(t, linear(lon, lat), window.At(k, c))
			}
		}
	}

	_, err = d.Window(t.Context(), etopo.IndexBounds{MinLat: 0, MaxLat: 6, MinLon: 0, MaxLon: 5})
	assert.IsError(t, err, etopo.ErrDegenerateBoundingBox)
}

func TestOpenNetCDFErrors(t *testing.T) {
	_, err := etopo.OpenNetCDF(filepath.Join(t.TempDir(), "missing.nc"))
	assert.IsError(t, err, etopo.ErrInputNotFound)

	notNetCDF := filepath.Join(t.TempDir(), "text.nc")
	assert.NoError(t, os.WriteFile(notNetCDF, []byte("# N_lats\n"), 0o666))
	_, err = etopo.OpenNetCDF(notNetCDF)
	assert.IsError(t, err, etopo.ErrInputNotFound)

	// A grid written by WriteNetCDF has no x, y, or z variables.
	output := filepath.Join(t.TempDir(), "output.nc")
	assert.NoError(t, etopo.WriteNetCDF(output, &etopo.OutputGrid{
		Lats:   []float64{0, 1},
		Lons:   []float64{0, 1},
		Values: mat.NewDense(2, 2, nil),
	}))
	_, err = etopo.OpenNetCDF(output)
	assert.IsError(t, err, etopo.ErrInputNotFound)
}

func TestNetCDFWindowTruncated(t *testing.T) {
	filename := newTestNetCDFFile(t)
	info, err := os.Stat(filename)
	assert.NoError(t, err)
	// z is the last variable, so this cuts the end of its last row.
	assert.NoError(t, os.Truncate(filename, info.Size()-8))

	d, err := etopo.OpenNetCDF(filename)
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, d.Close())
	}()

	window, err := d.Window(t.Context(), etopo.IndexBounds{MinLat: 0, MaxLat: 4, MinLon: 0, MaxLon: 5})
	assert.NoError(t, err)
	assert.Equal(t, -1010.0, window.At(0, 0))

	_, err = d.Window(t.Context(), etopo.IndexBounds{MinLat: 3, MaxLat: 5, MinLon: 0, MaxLon: 5})
	assert.True(t, etopo.IsKind(err, etopo.KindReadFailure))
	assert.IsError(t, err, etopo.ErrInputNotFound)
	assert.Contains(t, err.Error(), "read_failure")

	_, err = etopo.NewExtractor(etopo.WithLogger(nullLogger())).SubsetFile(t.Context(), filename,
		etopo.BoundingBox{MinLat: 4, MaxLat: 10, MinLon: -10, MaxLon: 10})
	assert.True(t, etopo.IsKind(err, etopo.KindReadFailure))
}

func TestOpenDataset(t *testing.T) {
	_, err := etopo.OpenDataset(filepath.Join(t.TempDir(), "ETOPO1_Ice_g_gmt4.grd"))
	assert.IsError(t, err, etopo.ErrInputNotFound)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	ds, err := etopo.OpenDataset(newTestNetCDFFile(t))
	assert.NoError(t, err)
	_, isNetCDF := ds.(*etopo.NetCDFDataset)
	assert.True(t, isNetCDF)
	assert.NoError(t, ds.Close())
}

func TestSubsetNetCDFFile(t *testing.T) {
	e := etopo.NewExtractor(etopo.WithLogger(nullLogger()))
	grid, err := e.SubsetFile(t.Context(), newTestNetCDFFile(t), etopo.BoundingBox{MinLat: -3, MaxLat: 3, MinLon: -3, MaxLon: 3})
	assert.NoError(t, err)
	assert.Equal(t, []float64{-5, 0}, grid.Lats)
	assert.Equal(t, []float64{-5, 0}, grid.Lons)
	assert.Equal(t, []float64{-505, -500, -5, 0}, grid.Values.RawMatrix().Data)
}

func TestWriteNetCDF(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "subset.nc")
	assert.NoError(t, os.WriteFile(filename, []byte("stale"), 0o666))
	grid := &etopo.OutputGrid{
		Lats:   []float64{-1, 0, 1},
		Lons:   []float64{10, 10.5},
		Values: mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, math.NaN()}),
	}
	assert.NoError(t, etopo.WriteNetCDF(filename, grid))

	file, err := os.Open(filename)
	assert.NoError(t, err)
	defer file.Close()
	nc, err := cdf.Open(file)
	assert.NoError(t, err)

	assert.Equal(t, []string{"latitude"}, nc.Header.Dimensions("latitude"))
	assert.Equal(t, []string{"longitude"}, nc.Header.Dimensions("longitude"))
	assert.Equal(t, []string{"latitude", "longitude"}, nc.Header.Dimensions("altitude"))
	assert.Equal(t, []int{3, 2}, nc.Header.Lengths("altitude"))
	for variable, units := range map[string]string{
		"latitude":  "degrees_north",
		"longitude": "degrees_east",
		"altitude":  "m",
	} {
		assert.Equal[any](t, units, nc.Header.GetAttribute(variable, "units"))
	}

	read := func(v string) []float32 {
		r := nc.Reader(v, nil, nil)
		buf := r.Zero(-1)
		_, err := r.Read(buf)
		assert.NoError(t, err)
		return buf.([]float32)
	}
	assert.Equal(t, []float32{-1, 0, 1}, read("latitude"))
	assert.Equal(t, []float32{10, 10.5}, read("longitude"))
	altitude := read("altitude")
	assert.Equal(t, []float32{1, 2, 3, 4, 5}, altitude[:5])
	assert.True(t, math.IsNaN(float64(altitude[5])))
}

func TestWriteNetCDFErrors(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "subset.nc")
	err := etopo.WriteNetCDF(filename, &etopo.OutputGrid{
		Lats:   []float64{0, 0},
		Lons:   []float64{0, 1},
		Values: mat.NewDense(2, 2, nil),
	})
	assert.IsError(t, err, etopo.ErrOutputWrite)
	_, err = os.Stat(filename)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	err = etopo.WriteNetCDF(filepath.Join(t.TempDir(), "missing", "subset.nc"), &etopo.OutputGrid{
		Lats:   []float64{0, 1},
		Lons:   []float64{0, 1},
		Values: mat.NewDense(2, 2, nil),
	})
	assert.IsError(t, err, etopo.ErrOutputWrite)
}
