package gpxz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpxz_requests_total",
		Help: "The total number of API requests issued, by endpoint",
	}, []string{"endpoint"})
	requestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpxz_request_errors_total",
		Help: "The total number of failed API requests, by endpoint",
	}, []string{"endpoint"})
	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpxz_batches_total",
		Help: "The total number of batches issued by batched point queries",
	})
	pointCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpxz_point_cache_hits_total",
		Help: "The total number of hits on the single-point result cache",
	})
	pointCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpxz_point_cache_misses_total",
		Help: "The total number of misses on the single-point result cache",
	})
	rasterTileLoads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpxz_raster_tile_loads_total",
		Help: "The total number of raster tiles decoded into the tile samples cache",
	})
)
