package gpxz

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
)

// A Source describes an elevation dataset. Resolution is in metres.
type Source struct {
	Name         string  `json:"name"`
	Resolution   float64 `json:"resolution"`
	URL          string  `json:"url"`
	Organization string  `json:"organization"`
	Attribution  string  `json:"attribution"`
	Licence      string  `json:"licence"`
	LicenceURL   string  `json:"licence_url"`
}

type sourcesResponse struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Sources *map[string]Source `json:"sources"`
}

// A sourcesCache memoizes the source metadata, which is static for the
// lifetime of a client.
type sourcesCache struct {
	mutex   sync.Mutex
	sources map[string]Source
}

// An EnrichedResult is a Result joined with the metadata of the source that
// produced it.
type EnrichedResult struct {
	Result
	Source *Source
}

// Sources returns the metadata of all elevation datasets, keyed by data
// source identifier. The result is fetched once and memoized.
func (c *Client) Sources(ctx context.Context) (map[string]Source, error) {
	c.sourcesCache.mutex.Lock()
	defer c.sourcesCache.mutex.Unlock()

	if c.sourcesCache.sources != nil {
		return c.sourcesCache.sources, nil
	}

	resp, err := c.doWithRetry(ctx, "sources", func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, "/v1/elevation/sources", nil, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded sourcesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &MalformedResponseError{Reason: err.Error()}
	}
	if decoded.Status != "OK" {
		return nil, &ResponseError{
			StatusCode: resp.StatusCode,
			Body:       statusMessage(decoded.Status, decoded.Message),
		}
	}
	if decoded.Sources == nil {
		return nil, &MalformedResponseError{Reason: "missing sources"}
	}

	c.sourcesCache.sources = *decoded.Sources
	return c.sourcesCache.sources, nil
}

// EnrichResults joins results with source metadata. Results whose data source
// is unknown get a nil Source.
func (c *Client) EnrichResults(ctx context.Context, results []Result) ([]EnrichedResult, error) {
	sources, err := c.Sources(ctx)
	if err != nil {
		return nil, err
	}
	enriched := make([]EnrichedResult, len(results))
	for i, result := range results {
		enriched[i] = EnrichedResult{Result: result}
		if source, ok := sources[result.DataSource]; ok {
			enriched[i].Source = &source
		}
	}
	return enriched, nil
}
