package gpxz_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/twpayne/go-polyline"

	"github.com/twpayne/go-gpxz"
)

type serverResult struct {
	Elevation  float64 `json:"elevation"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	DataSource string  `json:"data_source"`
	Resolution float64 `json:"resolution"`
}

func parseLatLons(t *testing.T, latlons string) []gpxz.Coord {
	t.Helper()
	pairs := strings.Split(latlons, "|")
	coords := make([]gpxz.Coord, len(pairs))
	for i, pair := range pairs {
		_, err := fmt.Sscanf(pair, "%g,%g", &coords[i].Lat, &coords[i].Lon)
		assert.NoError(t, err)
	}
	return coords
}

func writeResults(t *testing.T, w http.ResponseWriter, coords []gpxz.Coord) {
	t.Helper()
	results := make([]serverResult, len(coords))
	for i, coord := range coords {
		results[i] = serverResult{
			Elevation:  100 + coord.Lat,
			Lat:        coord.Lat,
			Lon:        coord.Lon,
			DataSource: "srtm30m",
			Resolution: 30,
		}
	}
	assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"status":  "OK",
		"results": results,
	}))
}

func TestPoints(t *testing.T) {
	var batchSizes []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/elevation/points", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.NoError(t, r.ParseForm())
		coords := parseLatLons(t, r.FormValue("latlons"))
		batchSizes = append(batchSizes, len(coords))
		writeResults(t, w, coords)
	}))
	defer server.Close()

	client, err := gpxz.NewClient("test-api-key", gpxz.WithBaseURL(server.URL))
	assert.NoError(t, err)

	coords := make([]gpxz.Coord, 1025)
	for i := range coords {
		coords[i] = gpxz.Coord{
			Lat: float64(i)/100 - 5,
			Lon: float64(i)/10 - 50,
		}
	}

	results, err := client.Points(t.Context(), coords)
	assert.NoError(t, err)
	assert.Equal(t, []int{512, 512, 1}, batchSizes)
	assert.Equal(t, len(coords), len(results))

	expected := make([]gpxz.Result, len(coords))
	for i, coord := range coords {
		expected[i] = gpxz.Result{
			Elevation:  100 + coord.Lat,
			Lat:        coord.Lat,
			Lon:        coord.Lon,
			DataSource: "srtm30m",
			Resolution: 30,
		}
	}
	assert.Equal(t, expected, results)
}

func TestPoints_Empty(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client, err := gpxz.NewClient("test-api-key", gpxz.WithBaseURL(server.URL))
	assert.NoError(t, err)

	results, err := client.Points(t.Context(), nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(results))
	assert.Equal(t, 0, requests)
}

func TestPoints_BatchFailure(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 2 {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		assert.NoError(t, r.ParseForm())
		writeResults(t, w, parseLatLons(t, r.FormValue("latlons")))
	}))
	defer server.Close()

	client, err := gpxz.NewClient("test-api-key", gpxz.WithBaseURL(server.URL))
	assert.NoError(t, err)

	coords := make([]gpxz.Coord, 1025)
	for i := range coords {
		coords[i] = gpxz.Coord{Lat: float64(i) / 100, Lon: float64(i) / 100}
	}

	results, err := client.Points(t.Context(), coords)
	assert.Zero(t, results)

	var batchError *gpxz.BatchError
	assert.True(t, errors.As(err, &batchError))
	assert.Equal(t, 1, batchError.Index)

	var responseError *gpxz.ResponseError
	assert.True(t, errors.As(err, &responseError))
	assert.Equal(t, http.StatusInternalServerError, responseError.StatusCode)

	// The third batch must never have been issued.
	assert.Equal(t, 2, requests)
}

func TestPoints_InvalidLatitude(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client, err := gpxz.NewClient("test-api-key", gpxz.WithBaseURL(server.URL))
	assert.NoError(t, err)

	_, err = client.Points(t.Context(), []gpxz.Coord{{Lat: 91, Lon: 0}})
	var invalidCoordinateError *gpxz.InvalidCoordinateError
	assert.True(t, errors.As(err, &invalidCoordinateError))
	assert.Equal(t, 0, requests)
}

func TestPointsBatch_MalformedResponse(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
	}{
		{name: "not_json", body: "pardon?"},
		{name: "missing_results", body: `{"status": "OK"}`},
		{name: "wrong_count", body: `{"status": "OK", "results": []}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.body)
			}))
			defer server.Close()

			client, err := gpxz.NewClient("test-api-key", gpxz.WithBaseURL(server.URL))
			assert.NoError(t, err)

			_, err = client.PointsBatch(t.Context(), []gpxz.Coord{{Lat: 1, Lon: 2}})
			var malformedResponseError *gpxz.MalformedResponseError
			assert.True(t, errors.As(err, &malformedResponseError))
		})
	}
}

func TestPointsBatch_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "INVALID_REQUEST", "message": "bad latlons"}`)
	}))
	defer server.Close()

	client, err := gpxz.NewClient("test-api-key", gpxz.WithBaseURL(server.URL))
	assert.NoError(t, err)

	_, err = client.PointsBatch(t.Context(), []gpxz.Coord{{Lat: 1, Lon: 2}})
	var responseError *gpxz.ResponseError
	assert.True(t, errors.As(err, &responseError))
	assert.True(t, strings.Contains(responseError.Body, "INVALID_REQUEST"))
	assert.True(t, strings.Contains(responseError.Body, "bad latlons"))
}

func TestPoints_QueryAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "", r.Header.Get("x-api-key"))
		assert.NoError(t, r.ParseForm())
		writeResults(t, w, parseLatLons(t, r.FormValue("latlons")))
	}))
	defer server.Close()

	client, err := gpxz.NewClient("test-api-key",
		gpxz.WithBaseURL(server.URL),
		gpxz.WithQueryAPIKey(),
	)
	assert.NoError(t, err)

	results, err := client.Points(t.Context(), []gpxz.Coord{{Lat: 1, Lon: 2}})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(results))
}

func TestPoints_PolylineEncoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "5", r.FormValue("polyline_precision"))
		assert.Equal(t, "", r.FormValue("latlons"))
		codec := polyline.Codec{Dim: 2, Scale: 1e5}
		flatCoords, _, err := codec.DecodeCoords([]byte(r.FormValue("polyline")))
		assert.NoError(t, err)
		coords := make([]gpxz.Coord, len(flatCoords))
		for i, flatCoord := range flatCoords {
			coords[i] = gpxz.Coord{Lat: flatCoord[0], Lon: flatCoord[1]}
		}
		writeResults(t, w, coords)
	}))
	defer server.Close()

	client, err := gpxz.NewClient("test-api-key",
		gpxz.WithBaseURL(server.URL),
		gpxz.WithPolylineEncoding(5),
	)
	assert.NoError(t, err)

	coords := []gpxz.Coord{
		{Lat: 38.5, Lon: -120.2},
		{Lat: 40.7, Lon: -120.95},
	}
	results, err := client.Points(t.Context(), coords)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(results))
	for i, result := range results {
		// Polyline encoding quantizes to five decimal digits.
		assert.True(t, result.Lat-coords[i].Lat < 1e-5 && coords[i].Lat-result.Lat < 1e-5)
		assert.True(t, result.Lon-coords[i].Lon < 1e-5 && coords[i].Lon-result.Lon < 1e-5)
	}
}

func TestPoints_Retries(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		assert.NoError(t, r.ParseForm())
		writeResults(t, w, parseLatLons(t, r.FormValue("latlons")))
	}))
	defer server.Close()

	client, err := gpxz.NewClient("test-api-key",
		gpxz.WithBaseURL(server.URL),
		gpxz.WithRetries(2),
	)
	assert.NoError(t, err)

	results, err := client.Points(t.Context(), []gpxz.Coord{{Lat: 1, Lon: 2}})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(results))
	assert.Equal(t, 2, requests)
}

func TestPointsBatch_NullElevation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "OK", "results": [{"elevation": null, "lat": 0, "lon": 0, "data_source": "gebco2021", "resolution": 450}]}`)
	}))
	defer server.Close()

	client, err := gpxz.NewClient("test-api-key", gpxz.WithBaseURL(server.URL))
	assert.NoError(t, err)

	results, err := client.PointsBatch(t.Context(), []gpxz.Coord{{Lat: 0, Lon: 0}})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(results))
	assert.True(t, results[0].Elevation != results[0].Elevation) // NaN.
}
