package gpxz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type pointResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Result  *resultJSON `json:"result"`
}

// A pointCache caches single-point results by coordinate. The mutex
// serializes fetches so concurrent callers do not request the same coordinate
// twice.
type pointCache struct {
	mutex sync.Mutex
	cache *lru.Cache[Coord, Result]
}

// Point returns the elevation of a single coordinate, using the client's
// point cache if possible.
func (c *Client) Point(ctx context.Context, coord Coord) (Result, error) {
	coord, err := coord.Normalize()
	if err != nil {
		return Result{}, err
	}

	if result, ok := c.pointCache.cache.Get(coord); ok {
		pointCacheHits.Inc()
		return result, nil
	}

	c.pointCache.mutex.Lock()
	defer c.pointCache.mutex.Unlock()

	if result, ok := c.pointCache.cache.Get(coord); ok {
		pointCacheHits.Inc()
		return result, nil
	}

	pointCacheMisses.Inc()

	result, err := c.fetchPoint(ctx, coord)
	if err != nil {
		return Result{}, err
	}
	c.pointCache.cache.Add(coord, result)
	return result, nil
}

func (c *Client) fetchPoint(ctx context.Context, coord Coord) (Result, error) {
	query := url.Values{}
	query.Set("lat", formatFloat(coord.Lat))
	query.Set("lon", formatFloat(coord.Lon))

	resp, err := c.doWithRetry(ctx, "point", func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, "/v1/elevation/point", query, nil)
	})
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	var decoded pointResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, &MalformedResponseError{Reason: err.Error()}
	}
	if decoded.Status != "OK" {
		return Result{}, &ResponseError{
			StatusCode: resp.StatusCode,
			Body:       statusMessage(decoded.Status, decoded.Message),
		}
	}
	if decoded.Result == nil {
		return Result{}, &MalformedResponseError{Reason: "missing result"}
	}
	return decoded.Result.result(), nil
}
