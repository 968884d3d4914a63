package gpxz

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-polyline"
)

// A Coord is a geographic coordinate.
type Coord struct {
	Lat float64
	Lon float64
}

// An InvalidCoordinateError is a coordinate with a latitude outside [-90, 90].
type InvalidCoordinateError struct {
	Coord Coord
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate: latitude %v out of range", e.Coord.Lat)
}

// Normalize returns c with its longitude normalized to [-180, 180]. It returns
// an *InvalidCoordinateError if c's latitude is outside [-90, 90].
func (c Coord) Normalize() (Coord, error) {
	if c.Lat < -90 || 90 < c.Lat || math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return Coord{}, &InvalidCoordinateError{Coord: c}
	}
	return Coord{
		Lat: c.Lat,
		Lon: NormalizeLongitude(c.Lon),
	}, nil
}

// NormalizeLongitude shifts lon into [-180, 180] by repeatedly adding or
// subtracting 360. Values already in range are returned unchanged, so the
// transform is idempotent.
func NormalizeLongitude(lon float64) float64 {
	for lon < -180 {
		lon += 360
	}
	for 180 < lon {
		lon -= 360
	}
	return lon
}

// normalizeCoords returns coords with every element normalized.
func normalizeCoords(coords []Coord) ([]Coord, error) {
	normalized := make([]Coord, len(coords))
	for i, coord := range coords {
		var err error
		if normalized[i], err = coord.Normalize(); err != nil {
			return nil, err
		}
	}
	return normalized, nil
}

// SerializeLatLons returns coords in the API's latlons wire format: latitude
// and longitude joined by a comma, pairs joined by a pipe. Floats are written
// with the shortest representation that round-trips, never truncated.
func SerializeLatLons(coords []Coord) string {
	pairs := make([]string, len(coords))
	for i, coord := range coords {
		pairs[i] = formatFloat(coord.Lat) + "," + formatFloat(coord.Lon)
	}
	return strings.Join(pairs, "|")
}

// SerializePolyline returns coords as a polyline-encoded path with the given
// number of decimal digits of precision.
func SerializePolyline(coords []Coord, digits int) string {
	codec := polyline.Codec{Dim: 2, Scale: math.Pow10(digits)}
	flatCoords := make([][]float64, len(coords))
	for i, coord := range coords {
		flatCoords[i] = []float64{coord.Lat, coord.Lon}
	}
	return string(codec.EncodeCoords(nil, flatCoords))
}

// formatFloat is locale-independent: always a period for the decimal
// separator, never exponent notation.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
