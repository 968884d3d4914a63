package gpxz

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// A Result is a single elevation result. Lat and Lon echo the queried
// coordinate. Elevation is NaN where the source has no data. Resolution is in
// metres.
type Result struct {
	Elevation  float64
	Lat        float64
	Lon        float64
	DataSource string
	Resolution float64
}

type resultJSON struct {
	Elevation  *float64 `json:"elevation"`
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	DataSource string   `json:"data_source"`
	Resolution float64  `json:"resolution"`
}

func (r resultJSON) result() Result {
	elevation := math.NaN()
	if r.Elevation != nil {
		elevation = *r.Elevation
	}
	return Result{
		Elevation:  elevation,
		Lat:        r.Lat,
		Lon:        r.Lon,
		DataSource: r.DataSource,
		Resolution: r.Resolution,
	}
}

type pointsResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Results *[]resultJSON `json:"results"`
}

// partitionCoords partitions coords into contiguous batches of at most
// maxBatchSize elements each, preserving order. The batches are subslices of
// coords, so concatenating them reconstructs coords exactly.
func partitionCoords(coords []Coord, maxBatchSize int) [][]Coord {
	batches := make([][]Coord, 0, (len(coords)+maxBatchSize-1)/maxBatchSize)
	for len(coords) > maxBatchSize {
		batches = append(batches, coords[:maxBatchSize:maxBatchSize])
		coords = coords[maxBatchSize:]
	}
	if len(coords) > 0 {
		batches = append(batches, coords)
	}
	return batches
}

// Points returns the elevations of coords, in order, issuing one request per
// batch of at most the client's maximum batch size. Requests are issued
// sequentially with one in flight at a time. The first failing batch aborts
// the whole operation with a *BatchError carrying the batch index; no partial
// results are returned.
func (c *Client) Points(ctx context.Context, coords []Coord) ([]Result, error) {
	coords, err := normalizeCoords(coords)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(coords))
	for i, batch := range partitionCoords(coords, c.maxBatchSize) {
		batchResults, err := c.PointsBatch(ctx, batch)
		if err != nil {
			return nil, &BatchError{Index: i, Err: err}
		}
		results = append(results, batchResults...)
	}
	return results, nil
}

// PointsBatch issues a single points request for coords, which must not
// exceed the API's batch size limit. Most callers want [Client.Points], which
// batches arbitrarily long inputs. The returned results match coords in order
// and count.
func (c *Client) PointsBatch(ctx context.Context, coords []Coord) ([]Result, error) {
	if len(coords) > c.maxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds maximum %d", len(coords), c.maxBatchSize)
	}
	batchesTotal.Inc()

	form := url.Values{}
	if c.polylineDigits > 0 {
		form.Set("polyline", SerializePolyline(coords, c.polylineDigits))
		form.Set("polyline_precision", strconv.Itoa(c.polylineDigits))
	} else {
		form.Set("latlons", SerializeLatLons(coords))
	}
	encodedForm := form.Encode()

	resp, err := c.doWithRetry(ctx, "points", func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, "/v1/elevation/points", nil, strings.NewReader(encodedForm))
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded pointsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &MalformedResponseError{Reason: err.Error()}
	}
	if decoded.Status != "OK" {
		return nil, &ResponseError{
			StatusCode: resp.StatusCode,
			Body:       statusMessage(decoded.Status, decoded.Message),
		}
	}
	if decoded.Results == nil {
		return nil, &MalformedResponseError{Reason: "missing results"}
	}
	if len(*decoded.Results) != len(coords) {
		return nil, &MalformedResponseError{
			Reason: fmt.Sprintf("got %d results, expected %d", len(*decoded.Results), len(coords)),
		}
	}

	results := make([]Result, len(coords))
	for i, r := range *decoded.Results {
		results[i] = r.result()
	}
	return results, nil
}

func statusMessage(status, message string) string {
	if message == "" {
		return status
	}
	return status + ": " + message
}
