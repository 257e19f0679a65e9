package etopo

import (
	"errors"
	"fmt"
)

var errGeoKeys = errors.New("invalid GeoKey directory")

// A GeoKey identifies a GeoTIFF GeoKey.
type GeoKey uint16

// GeoKeys used when reading geographic rasters.
const (
	GeoKeyGTModelType  GeoKey = 1024
	GeoKeyGTRasterType GeoKey = 1025
	GeoKeyGTCitation   GeoKey = 1026

	GeoKeyGeodeticCRS         GeoKey = 2048
	GeoKeyGeogCitation        GeoKey = 2049
	GeoKeyGeodeticDatum       GeoKey = 2050
	GeoKeyPrimeMeridian       GeoKey = 2051
	GeoKeyAngularUnits        GeoKey = 2054
	GeoKeyGeogAngularUnitSize GeoKey = 2055
	GeoKeyEllipsoid           GeoKey = 2056
	GeoKeySemiMajorAxis       GeoKey = 2057
	GeoKeyInvFlattening       GeoKey = 2059

	GeoKeyVerticalUnits GeoKey = 4099
)

// GeoTIFF tags that may hold GeoKey values.
const (
	tagGeoDoubleParams = 34736
	tagGeoASCIIParams  = 34737
)

// ParsedGeoKeys are the GeoKeys of a GeoTIFF, split by value type.
type ParsedGeoKeys struct {
	Params       map[GeoKey]int
	DoubleParams map[GeoKey]float64
	ASCIIParams  map[GeoKey]string
}

// ParseGeoKeys parses a GeoKeyDirectoryTag and its GeoDoubleParamsTag and
// GeoASCIIParamsTag.
func ParseGeoKeys(directory []uint16, doubleParams []float64, asciiParams []byte) (*ParsedGeoKeys, error) {
	if len(directory) < 4 {
		return nil, fmt.Errorf("%w: %d entries", errGeoKeys, len(directory))
	}
	if version, revision, minorRevision := directory[0], directory[1], directory[2]; version != 1 || revision != 1 || minorRevision > 1 {
		return nil, fmt.Errorf("%w: version %d.%d.%d", errGeoKeys, version, revision, minorRevision)
	}
	numberOfKeys := int(directory[3])
	if len(directory) != 4+4*numberOfKeys {
		return nil, fmt.Errorf("%w: %d entries for %d keys", errGeoKeys, len(directory), numberOfKeys)
	}

	parsedGeoKeys := &ParsedGeoKeys{
		Params:       make(map[GeoKey]int),
		DoubleParams: make(map[GeoKey]float64),
		ASCIIParams:  make(map[GeoKey]string),
	}
	for i := range numberOfKeys {
		entry := directory[4+4*i : 4+4*(i+1)]
		key := GeoKey(entry[0])
		count := int(entry[2])
		index := int(entry[3])
		switch location := int(entry[1]); location {
		case 0:
			if count != 1 {
				return nil, fmt.Errorf("%w: key %d: count %d", errGeoKeys, key, count)
			}
			parsedGeoKeys.Params[key] = index
		case tagGeoDoubleParams:
			if count != 1 {
				return nil, fmt.Errorf("key %d: count %d: %w", key, count, errors.ErrUnsupported)
			}
			if index >= len(doubleParams) {
				return nil, fmt.Errorf("%w: key %d: double index %d out of range", errGeoKeys, key, index)
			}
			parsedGeoKeys.DoubleParams[key] = doubleParams[index]
		case tagGeoASCIIParams:
			if index+count > len(asciiParams) {
				return nil, fmt.Errorf("%w: key %d: ASCII range [%d, %d) out of range", errGeoKeys, key, index, index+count)
			}
			parsedGeoKeys.ASCIIParams[key] = string(asciiParams[index : index+count])
		default:
			return nil, fmt.Errorf("key %d: location %d: %w", key, location, errors.ErrUnsupported)
		}
	}
	return parsedGeoKeys, nil
}
