package gpxz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// A GmapsResult is an elevation result in the Google Maps Elevation API
// shape.
type GmapsResult struct {
	Elevation  float64
	Location   Coord
	Resolution float64
}

// An OTDResult is an elevation result in the Open Topo Data shape.
type OTDResult struct {
	Elevation float64
	Location  Coord
	Dataset   string
}

type compatLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type gmapsResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Elevation  float64        `json:"elevation"`
		Location   compatLocation `json:"location"`
		Resolution float64        `json:"resolution"`
	} `json:"results"`
}

type otdResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Results []struct {
		Elevation float64        `json:"elevation"`
		Location  compatLocation `json:"location"`
		Dataset   string         `json:"dataset"`
	} `json:"results"`
}

// GmapsElevation queries the Google-Maps-compatible endpoint. It exists for
// callers migrating from the Google Maps Elevation API; new code should use
// [Client.Points].
func (c *Client) GmapsElevation(ctx context.Context, coords []Coord) ([]GmapsResult, error) {
	coords, err := normalizeCoords(coords)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("locations", SerializeLatLons(coords))
	resp, err := c.doWithRetry(ctx, "gmaps-compat", func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, "/v1/elevation/gmaps-compat", query, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded gmapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &MalformedResponseError{Reason: err.Error()}
	}
	// The Google shape reports errors as status values like OVER_QUERY_LIMIT.
	if decoded.Status != "OK" {
		return nil, &ResponseError{
			StatusCode: resp.StatusCode,
			Body:       decoded.Status,
		}
	}

	results := make([]GmapsResult, len(decoded.Results))
	for i, r := range decoded.Results {
		results[i] = GmapsResult{
			Elevation:  r.Elevation,
			Location:   Coord{Lat: r.Location.Lat, Lon: r.Location.Lng},
			Resolution: r.Resolution,
		}
	}
	return results, nil
}

// OTDElevation queries the Open-Topo-Data-compatible endpoint. It exists for
// callers migrating from Open Topo Data; new code should use [Client.Points].
func (c *Client) OTDElevation(ctx context.Context, coords []Coord) ([]OTDResult, error) {
	coords, err := normalizeCoords(coords)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("locations", SerializeLatLons(coords))
	resp, err := c.doWithRetry(ctx, "otd-compat", func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, "/v1/elevation/otd-compat", query, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded otdResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &MalformedResponseError{Reason: err.Error()}
	}
	if decoded.Status != "OK" {
		return nil, &ResponseError{
			StatusCode: resp.StatusCode,
			Body:       statusMessage(decoded.Status, decoded.Error),
		}
	}

	results := make([]OTDResult, len(decoded.Results))
	for i, r := range decoded.Results {
		results[i] = OTDResult{
			Elevation: r.Elevation,
			Location:  Coord{Lat: r.Location.Lat, Lon: r.Location.Lng},
			Dataset:   r.Dataset,
		}
	}
	return results, nil
}
