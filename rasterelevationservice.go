package gpxz

import (
	"context"
	"errors"
	"fmt"

	"github.com/twpayne/go-proj/v11"
)

// A RasterElevationService answers elevation queries against a downloaded
// hires raster, transforming EPSG:4326 coordinates into the raster's
// projected CRS. Coordinate axis order follows the CRS authority definition,
// as with the north-first CRSs the hires endpoint serves.
type RasterElevationService struct {
	raster *GeoTIFFRaster
	pj     *proj.PJ
}

// NewRasterElevationService returns a new RasterElevationService reading from
// data, typically the payload returned by [Client.HiresRaster].
func NewRasterElevationService(data []byte, options ...GeoTIFFRasterOption) (*RasterElevationService, error) {
	raster, err := NewGeoTIFFRaster(data, options...)
	if err != nil {
		return nil, err
	}
	epsg, ok := raster.ProjectedEPSG()
	if !ok {
		return nil, errors.New("raster has no projected CRS")
	}
	pj, err := proj.NewCRSToCRS("epsg:4326", fmt.Sprintf("epsg:%d", epsg), nil)
	if err != nil {
		return nil, err
	}
	return &RasterElevationService{
		raster: raster,
		pj:     pj,
	}, nil
}

// Raster returns the underlying raster.
func (s *RasterElevationService) Raster() *GeoTIFFRaster {
	return s.raster
}

// Elevations returns the elevations at coords, bilinearly interpolated.
// Coordinates outside the raster yield NaN.
func (s *RasterElevationService) Elevations(ctx context.Context, coords []Coord) ([]float64, error) {
	projCoordsFlat := make([]float64, 2*len(coords))
	projCoords := make([][]float64, len(coords))
	for i, coord := range coords {
		projCoordsFlat[2*i] = coord.Lat
		projCoordsFlat[2*i+1] = coord.Lon
		projCoords[i] = projCoordsFlat[2*i : 2*i+2]
	}
	if err := s.pj.ForwardFloat64Slices(projCoords); err != nil {
		return nil, err
	}
	flipCoords(projCoords)
	return InterpolateBilinear(ctx, s.raster, projCoords)
}

func flipCoords(coords [][]float64) {
	for i, coord := range coords {
		coords[i][0], coords[i][1] = coord[1], coord[0]
	}
}
