package etopo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	selectedPoints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etopo_selected_points_total",
		Help: "The total number of source grid points selected by subsets",
	})
	interpolatedPoints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etopo_interpolated_points_total",
		Help: "The total number of output points produced by interpolation",
	})
	missingPoints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etopo_interpolated_missing_points_total",
		Help: "The total number of interpolated points outside the convex hull of the samples",
	})
	gradientNonConvergences = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etopo_gradient_estimation_nonconvergences_total",
		Help: "The total number of gradient estimations that did not converge",
	})
	tileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etopo_geotiff_tile_cache_hits_total",
		Help: "The total number of hits on the GeoTIFF tile cache",
	})
	tileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etopo_geotiff_tile_cache_misses_total",
		Help: "The total number of misses on the GeoTIFF tile cache",
	})
	tileCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etopo_geotiff_tile_cache_evictions_total",
		Help: "The total number of evictions from the GeoTIFF tile cache",
	})
)
