package gpxz

import (
	"context"
	"math"
)

// A Raster samples elevations at coordinates given in its own CRS.
type Raster interface {
	Samples(ctx context.Context, coords [][]float64) ([]float64, error)
	Scale() (float64, float64)
}

// InterpolateBilinear returns the elevations at coords, bilinearly
// interpolated between the four surrounding samples of raster.
func InterpolateBilinear(ctx context.Context, raster Raster, coords [][]float64) ([]float64, error) {
	scaleX, scaleY := raster.Scale()
	rasterCoords := make([][]float64, 4*len(coords))
	for i, coord := range coords {
		x0 := scaleX * math.Floor(coord[0]/scaleX)
		y0 := scaleY * math.Floor(coord[1]/scaleY)
		x1 := x0 + scaleX
		y1 := y0 + scaleY
		rasterCoords[4*i+0] = []float64{x0, y0}
		rasterCoords[4*i+1] = []float64{x1, y0}
		rasterCoords[4*i+2] = []float64{x0, y1}
		rasterCoords[4*i+3] = []float64{x1, y1}
	}
	samples, err := raster.Samples(ctx, rasterCoords)
	if err != nil {
		return nil, err
	}
	result := make([]float64, len(coords))
	for i, coord := range coords {
		x0 := scaleX * math.Floor(coord[0]/scaleX)
		y0 := scaleY * math.Floor(coord[1]/scaleY)
		dx := (coord[0] - x0) / scaleX
		dy := (coord[1] - y0) / scaleY
		result[i] = 0 +
			samples[4*i+0]*(1-dx)*(1-dy) +
			samples[4*i+1]*dx*(1-dy) +
			samples[4*i+2]*(1-dx)*dy +
			samples[4*i+3]*dx*dy
	}
	return result, nil
}
