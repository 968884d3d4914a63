package gpxz

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/url"
)

// MaxRasterAreaKm2 is the largest bounding box area the hires raster endpoint
// accepts, in square kilometres.
const MaxRasterAreaKm2 = 10

const kmPerDegree = 111.195 // Mean earth circumference / 360.

var (
	// ErrInvalidBounds is an empty or inverted bounding box.
	ErrInvalidBounds = errors.New("invalid bounds")

	// ErrBoundsTooLarge is a bounding box larger than the hires raster
	// endpoint accepts.
	ErrBoundsTooLarge = errors.New("bounds exceed maximum raster area")
)

// A Bounds is a geographic bounding box in EPSG:4326.
type Bounds struct {
	Left   float64 // West longitude.
	Right  float64 // East longitude.
	Bottom float64 // South latitude.
	Top    float64 // North latitude.
}

// Validate returns an error if b is inverted, out of range, or larger than
// the hires raster endpoint accepts.
func (b Bounds) Validate() error {
	if b.Left >= b.Right || b.Bottom >= b.Top {
		return ErrInvalidBounds
	}
	if b.Bottom < -90 || 90 < b.Top || b.Left < -180 || 180 < b.Right {
		return ErrInvalidBounds
	}
	if b.AreaKm2() >= MaxRasterAreaKm2 {
		return ErrBoundsTooLarge
	}
	return nil
}

// AreaKm2 returns b's approximate area in square kilometres, treating the
// earth as a sphere.
func (b Bounds) AreaKm2() float64 {
	midLat := (b.Bottom + b.Top) / 2
	width := (b.Right - b.Left) * kmPerDegree * math.Cos(midLat*math.Pi/180)
	height := (b.Top - b.Bottom) * kmPerDegree
	return width * height
}

// HiresRaster downloads the high-resolution raster covering bounds. The
// payload is a georeferenced image returned as opaque bytes; use
// [NewRasterElevationService] to query it locally or persist it for an
// external raster tool.
func (c *Client) HiresRaster(ctx context.Context, bounds Bounds) ([]byte, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("bbox_left", formatFloat(bounds.Left))
	query.Set("bbox_right", formatFloat(bounds.Right))
	query.Set("bbox_bottom", formatFloat(bounds.Bottom))
	query.Set("bbox_top", formatFloat(bounds.Top))

	resp, err := c.doWithRetry(ctx, "hires-raster", func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, "/v1/elevation/hires-raster", query, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
