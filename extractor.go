package etopo

import (
	"github.com/sirupsen/logrus"
)

const (
	// DefaultFactor is the default linear refinement factor of Interpolate.
	DefaultFactor = 3
	// DefaultBuffer is the default margin, in degrees, added around the
	// requested box to give the interpolant support at its edges.
	DefaultBuffer = 3.0
)

// An Extractor extracts subsets of Datasets. All of its configuration is
// explicit; it holds no per-call state.
type Extractor struct {
	log                 logrus.FieldLogger
	debug               bool
	factor              int
	buffer              float64
	openFunc            func(string) (Dataset, error)
	cloughTocherOptions []CloughTocherOption
}

// An ExtractorOption sets an option on an Extractor.
type ExtractorOption func(*Extractor)

// NewExtractor returns a new Extractor with the given options.
func NewExtractor(options ...ExtractorOption) *Extractor {
	e := &Extractor{
		log:      logrus.StandardLogger(),
		factor:   DefaultFactor,
		buffer:   DefaultBuffer,
		openFunc: OpenDataset,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// WithBuffer sets the margin, in degrees, added to each side of the requested
// box before selecting interpolation input.
func WithBuffer(buffer float64) ExtractorOption {
	return func(e *Extractor) {
		e.buffer = buffer
	}
}

// WithCloughTocherOptions sets the options used to build interpolants.
func WithCloughTocherOptions(options ...CloughTocherOption) ExtractorOption {
	return func(e *Extractor) {
		e.cloughTocherOptions = options
	}
}

// WithDebug enables debug logging of intermediate index bounds.
func WithDebug(debug bool) ExtractorOption {
	return func(e *Extractor) {
		e.debug = debug
	}
}

// WithFactor sets the linear refinement factor of Interpolate.
func WithFactor(factor int) ExtractorOption {
	return func(e *Extractor) {
		e.factor = factor
	}
}

// WithLogger sets the logger that receives progress messages.
func WithLogger(log logrus.FieldLogger) ExtractorOption {
	return func(e *Extractor) {
		e.log = log
	}
}

// WithOpenFunc sets the function used by the *File methods to open datasets.
func WithOpenFunc(openFunc func(string) (Dataset, error)) ExtractorOption {
	return func(e *Extractor) {
		e.openFunc = openFunc
	}
}

// open opens filename with e's open function.
func (e *Extractor) open(filename string) (Dataset, error) {
	ds, err := e.openFunc(filename)
	if err != nil {
		return nil, wrapError("open", KindInputNotFound, filename, err)
	}
	return ds, nil
}
