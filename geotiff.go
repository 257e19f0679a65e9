package etopo

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/tiff/lzw"
	"gonum.org/v1/gonum/mat"
)

const (
	compressionNone = 1
	compressionLZW  = 5

	modelTypeGeographic = 2

	rasterTypePixelIsArea  = 1
	rasterTypePixelIsPoint = 2
)

var errShortRead = errors.New("short read")

// A Pixel is a column and row in a raster, with row 0 at the top.
type Pixel struct {
	C int
	R int
}

// A TileCoord is a tile coordinate.
type TileCoord struct {
	C int // Column.
	R int // Row.
}

// A GeoTIFFDataset is an open, tiled, single band, float32 GeoTIFF file in
// geographic coordinates. Its latitude axis is presented in increasing order,
// so row 0 of its windows is the southernmost.
type GeoTIFFDataset struct {
	name                      string
	file                      geoTIFFFile
	byteOrder                 binary.ByteOrder
	compression               int
	imageWidth                int
	imageLength               int
	tileWidth                 int
	tileLength                int
	tilesAcross               int
	tilesDown                 int
	tileOffsets               []uint64
	tileByteCounts            []uint64
	tileSampleCount           int
	tileByteCountUncompressed int
	tileCacheSizeBytes        int
	tileSamplesCache          *lru.Cache[TileCoord, []float32]
	noData                    float32
	hasNoData                 bool
	lons                      []float64
	lats                      []float64
}

type geoTIFFFile interface {
	io.ReadSeeker
	io.ReaderAt
	io.Closer
}

// A GeoTIFFOption sets an option on a GeoTIFFDataset.
type GeoTIFFOption func(*GeoTIFFDataset)

// A geoTIFFIFD is a struct into which github.com/google/tiff can unmarshal an
// IFD.
type geoTIFFIFD struct {
	ImageWidth                uint16    `tiff:"field,tag=256"`
	ImageLength               uint16    `tiff:"field,tag=257"`
	BitsPerSample             uint16    `tiff:"field,tag=258"`
	Compression               uint16    `tiff:"field,tag=259"`
	PhotometricInterpretation uint16    `tiff:"field,tag=262"`
	SamplesPerPixel           uint16    `tiff:"field,tag=277"`
	PlanarConfiguration       uint16    `tiff:"field,tag=284"`
	Predictor                 uint16    `tiff:"field,tag=317"`
	TileWidth                 uint16    `tiff:"field,tag=322"`
	TileLength                uint16    `tiff:"field,tag=323"`
	TileOffsets               []uint64  `tiff:"field,tag=324"`
	TileByteCounts            []uint64  `tiff:"field,tag=325"`
	SampleFormat              uint16    `tiff:"field,tag=339"`
	ModelPixelScaleTag        []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag          []float64 `tiff:"field,tag=33922"`
	GeoKeyDirectoryTag        []uint16  `tiff:"field,tag=34735"`
	GeoDoubleParamsTag        []float64 `tiff:"field,tag=34736"`
	GeoASCIIParamsTag         string    `tiff:"field,tag=34737"`
	GDALNoData                string    `tiff:"field,tag=42113"`
}

// OpenGeoTIFF opens the GeoTIFF file filename in fsys.
func OpenGeoTIFF(fsys fs.FS, filename string, options ...GeoTIFFOption) (*GeoTIFFDataset, error) {
	ok := false

	d := &GeoTIFFDataset{
		name:               filename,
		tileCacheSizeBytes: 128 << 20, // 128MB.
	}
	for _, option := range options {
		option(d)
	}

	file, err := fsys.Open(filename)
	if err != nil {
		return nil, newError("open", KindInputNotFound, filename, err)
	}
	defer func() {
		if !ok {
			_ = file.Close()
		}
	}()
	geoFile, isGeoFile := file.(geoTIFFFile)
	if !isGeoFile {
		return nil, newError("open", KindInputNotFound, filename, errors.ErrUnsupported)
	}
	d.file = geoFile

	if err := d.parse(); err != nil {
		return nil, newError("open", KindInputNotFound, filename, err)
	}

	tileCacheCount := max(d.tileCacheSizeBytes/d.tileByteCountUncompressed, 1)
	if d.tileSamplesCache, err = lru.New[TileCoord, []float32](tileCacheCount); err != nil {
		return nil, newError("open", KindInputNotFound, filename, err)
	}

	ok = true
	return d, nil
}

// OpenGeoTIFFFile opens the GeoTIFF file at path filename.
func OpenGeoTIFFFile(filename string, options ...GeoTIFFOption) (*GeoTIFFDataset, error) {
	d, err := OpenGeoTIFF(os.DirFS(filepath.Dir(filename)), filepath.Base(filename), options...)
	if err != nil {
		return nil, err
	}
	d.name = filename
	return d, nil
}

// WithTileCacheSize sets the size, in bytes, of decoded tiles to cache.
func WithTileCacheSize(tileCacheSize int) GeoTIFFOption {
	return func(d *GeoTIFFDataset) {
		d.tileCacheSizeBytes = tileCacheSize
	}
}

// parse reads and validates d's header and computes its axes.
func (d *GeoTIFFDataset) parse() error {
	byteOrderMark := make([]byte, 2)
	if _, err := d.file.ReadAt(byteOrderMark, 0); err != nil {
		return err
	}
	switch string(byteOrderMark) {
	case "II":
		d.byteOrder = binary.LittleEndian
	case "MM":
		d.byteOrder = binary.BigEndian
	default:
		return fmt.Errorf("invalid byte order mark %q", byteOrderMark)
	}

	tiffTIFF, err := tiff.Parse(d.file, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return err
	}
	if len(tiffTIFF.IFDs()) != 1 {
		return fmt.Errorf("found %d IFDs, expected 1", len(tiffTIFF.IFDs()))
	}
	var ifd geoTIFFIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return err
	}

	if ifd.BitsPerSample != 32 ||
		(ifd.Compression != compressionNone && ifd.Compression != compressionLZW) ||
		ifd.SamplesPerPixel != 1 ||
		ifd.PlanarConfiguration != 1 ||
		ifd.Predictor > 1 ||
		ifd.SampleFormat != 3 ||
		ifd.TileWidth == 0 || ifd.TileLength == 0 ||
		len(ifd.ModelPixelScaleTag) != 3 ||
		len(ifd.ModelTiepointTag) != 6 || ifd.ModelTiepointTag[0] != 0 || ifd.ModelTiepointTag[1] != 0 {
		return errors.ErrUnsupported
	}

	geoKeys, err := ParseGeoKeys(ifd.GeoKeyDirectoryTag, ifd.GeoDoubleParamsTag, []byte(ifd.GeoASCIIParamsTag))
	if err != nil {
		return err
	}
	if modelType := geoKeys.Params[GeoKeyGTModelType]; modelType != modelTypeGeographic {
		return fmt.Errorf("model type %d: %w", modelType, errors.ErrUnsupported)
	}
	offset := 0.5
	switch rasterType := geoKeys.Params[GeoKeyGTRasterType]; rasterType {
	case 0, rasterTypePixelIsArea:
	case rasterTypePixelIsPoint:
		offset = 0
	default:
		return fmt.Errorf("raster type %d: %w", rasterType, errors.ErrUnsupported)
	}

	if ifd.GDALNoData != "" {
		noData, err := strconv.ParseFloat(strings.TrimRight(ifd.GDALNoData, "\x00 "), 32)
		if err != nil {
			return fmt.Errorf("GDAL no data value: %w", err)
		}
		d.noData = float32(noData)
		d.hasNoData = true
	}

	d.compression = int(ifd.Compression)
	d.imageWidth = int(ifd.ImageWidth)
	d.imageLength = int(ifd.ImageLength)
	d.tileWidth = int(ifd.TileWidth)
	d.tileLength = int(ifd.TileLength)
	d.tilesAcross = (d.imageWidth + d.tileWidth - 1) / d.tileWidth
	d.tilesDown = (d.imageLength + d.tileLength - 1) / d.tileLength
	tilesPerImage := d.tilesAcross * d.tilesDown
	if len(ifd.TileByteCounts) != tilesPerImage || len(ifd.TileOffsets) != tilesPerImage {
		return errors.New("incorrect number of tile byte counts or offsets")
	}
	d.tileOffsets = ifd.TileOffsets
	d.tileByteCounts = ifd.TileByteCounts
	d.tileSampleCount = d.tileWidth * d.tileLength
	d.tileByteCountUncompressed = d.tileSampleCount * int(ifd.BitsPerSample) / 8

	scaleX, scaleY := ifd.ModelPixelScaleTag[0], ifd.ModelPixelScaleTag[1]
	x0, y0 := ifd.ModelTiepointTag[3], ifd.ModelTiepointTag[4]
	d.lons, d.lats = pixelCenterAxes(x0, y0, scaleX, scaleY, d.imageWidth, d.imageLength, offset)
	return nil
}

// pixelCenterAxes returns the longitude of each column and the latitude of
// each row, in increasing order, of a north-up raster whose top left corner
// is at (x0, y0).
func pixelCenterAxes(x0, y0, scaleX, scaleY float64, width, length int, offset float64) ([]float64, []float64) {
	lons := make([]float64, width)
	for c := range lons {
		lons[c] = x0 + (float64(c)+offset)*scaleX
	}
	lats := make([]float64, length)
	for k := range lats {
		r := length - 1 - k
		lats[k] = y0 - (float64(r)+offset)*scaleY
	}
	return lons, lats
}

func isGeoTIFFFilename(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tif", ".tiff":
		return true
	default:
		return false
	}
}

// Axes returns d's longitude and latitude axes.
func (d *GeoTIFFDataset) Axes(ctx context.Context) ([]float64, []float64, error) {
	return d.lons, d.lats, nil
}

// Window returns the samples selected by b, with latitudes increasing down
// the rows.
func (d *GeoTIFFDataset) Window(ctx context.Context, b IndexBounds) (*mat.Dense, error) {
	if err := checkWindow(b, d.imageLength, d.imageWidth); err != nil {
		return nil, newError("read", KindDegenerateBoundingBox, d.name, err)
	}
	rows, cols := b.Dims()
	pixels := make([]Pixel, 0, rows*cols)
	for k := b.MinLat; k < b.MaxLat; k++ {
		for c := b.MinLon; c < b.MaxLon; c++ {
			pixels = append(pixels, Pixel{C: c, R: d.imageLength - 1 - k})
		}
	}
	samples, err := d.Samples(ctx, pixels)
	if err != nil {
		return nil, newError("read", KindReadFailure, d.name, err)
	}
	return mat.NewDense(rows, cols, samples), nil
}

// Name returns d's filename.
func (d *GeoTIFFDataset) Name() string {
	return d.name
}

func (d *GeoTIFFDataset) Close() error {
	return d.file.Close()
}

// Sample returns a single sample from d.
func (d *GeoTIFFDataset) Sample(ctx context.Context, pixel Pixel) (float64, error) {
	tileCoord, ok := d.tileCoord(pixel)
	if !ok {
		return math.NaN(), nil
	}
	tileSamples, err := d.getTileSamplesCached(ctx, tileCoord)
	if err != nil {
		return 0, err
	}
	return d.tileSample(tileSamples, pixel), nil
}

// Samples returns multiple samples from d. It is significantly faster than
// calling [Sample] for each pixel.
func (d *GeoTIFFDataset) Samples(ctx context.Context, pixels []Pixel) ([]float64, error) {
	samples := make([]float64, len(pixels))

	// Group indexes by tile coord.
	indexesByTileCoord := make(map[TileCoord][]int)
	for index, pixel := range pixels {
		tileCoord, ok := d.tileCoord(pixel)
		if !ok {
			samples[index] = math.NaN()
			continue
		}
		indexesByTileCoord[tileCoord] = append(indexesByTileCoord[tileCoord], index)
	}

	// Populate samples one tile at a time.
	for tileCoord, indexes := range indexesByTileCoord {
		slices.Sort(indexes)
		tileSamples, err := d.getTileSamplesCached(ctx, tileCoord)
		if err != nil {
			return nil, err
		}
		for _, index := range indexes {
			samples[index] = d.tileSample(tileSamples, pixels[index])
		}
	}

	return samples, nil
}

// getCompressedTileData returns the compressed tile data at tileCoord. It
// returns nil for sparse tiles, which have no data in the file.
func (d *GeoTIFFDataset) getCompressedTileData(tileCoord TileCoord) ([]byte, error) {
	tileIndex := tileCoord.C + d.tilesAcross*tileCoord.R
	tileByteCount := d.tileByteCounts[tileIndex]
	tileOffset := d.tileOffsets[tileIndex]
	if tileByteCount == 0 {
		return nil, nil
	}
	compressedData := make([]byte, tileByteCount)
	switch n, err := d.file.ReadAt(compressedData, int64(tileOffset)); {
	case n == int(tileByteCount):
		return compressedData, nil
	case err != nil:
		return nil, err
	default:
		return nil, errShortRead
	}
}

// decompressTileData decompresses the tile data in compressedData.
func (d *GeoTIFFDataset) decompressTileData(compressedData []byte) ([]byte, error) {
	if d.compression == compressionNone {
		if len(compressedData) < d.tileByteCountUncompressed {
			return nil, errShortRead
		}
		return compressedData, nil
	}
	tileData := make([]byte, d.tileByteCountUncompressed)
	r := lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8)
	defer r.Close()
	if _, err := io.ReadFull(r, tileData); err != nil {
		return nil, err
	}
	return tileData, nil
}

// decodeTileData decodes tileData. It returns nil if every sample is no
// data.
func (d *GeoTIFFDataset) decodeTileData(tileData []byte) []float32 {
	tileSamples := make([]float32, d.tileSampleCount)
	empty := true
	for i := range d.tileSampleCount {
		tileSamples[i] = math.Float32frombits(d.byteOrder.Uint32(tileData[i*4 : (i+1)*4]))
		if !d.hasNoData || tileSamples[i] != d.noData {
			empty = false
		}
	}
	if empty {
		return nil
	}
	return tileSamples
}

// getTileSamples reads and decodes the tile at tileCoord.
func (d *GeoTIFFDataset) getTileSamples(ctx context.Context, tileCoord TileCoord) ([]float32, error) {
	compressedTileData, err := d.getCompressedTileData(tileCoord)
	if err != nil || compressedTileData == nil {
		return nil, err
	}
	tileData, err := d.decompressTileData(compressedTileData)
	if err != nil {
		return nil, err
	}
	return d.decodeTileData(tileData), nil
}

// getTileSamplesCached returns the tile at tileCoord using d's cache. Tiles
// without data are cached as nil.
func (d *GeoTIFFDataset) getTileSamplesCached(ctx context.Context, tileCoord TileCoord) ([]float32, error) {
	if tileSamples, ok := d.tileSamplesCache.Get(tileCoord); ok {
		tileCacheHits.Inc()
		return tileSamples, nil
	}
	tileCacheMisses.Inc()
	tileSamples, err := d.getTileSamples(ctx, tileCoord)
	if err != nil {
		return nil, err
	}
	if eviction := d.tileSamplesCache.Add(tileCoord, tileSamples); eviction {
		tileCacheEvictions.Inc()
	}
	return tileSamples, nil
}

// tileCoord returns the tile containing pixel.
func (d *GeoTIFFDataset) tileCoord(pixel Pixel) (TileCoord, bool) {
	if pixel.C < 0 || d.imageWidth <= pixel.C || pixel.R < 0 || d.imageLength <= pixel.R {
		return TileCoord{}, false
	}
	return TileCoord{
		C: pixel.C / d.tileWidth,
		R: pixel.R / d.tileLength,
	}, true
}

// tileSample returns the sample from tileSamples at pixel.
func (d *GeoTIFFDataset) tileSample(tileSamples []float32, pixel Pixel) float64 {
	if tileSamples == nil {
		return math.NaN()
	}
	sample := tileSamples[pixel.C%d.tileWidth+(pixel.R%d.tileLength)*d.tileWidth]
	if d.hasNoData && sample == d.noData {
		return math.NaN()
	}
	return widenFloat32(sample)
}
