// Package arcgis speaks the map service's REST query protocol.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

type Client struct {
	http *http.Client
	log  *slog.Logger
}

func NewClient(httpClient *http.Client, log *slog.Logger) *Client {
	return &Client{http: httpClient, log: log}
}

// Query runs one feature query against queryURL and decodes the response.
// Failures come back as *RequestError so the fetcher can decide on retries.
func (c *Client) Query(ctx context.Context, queryURL string, params url.Values) (*QueryResponse, error) {
	body, err := c.get(ctx, queryURL, params)
	if err != nil {
		return nil, err
	}

	var resp QueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &RequestError{Kind: KindMalformed, Err: fmt.Errorf("decode query response: %w", err)}
	}
	if resp.Error != nil {
		kind := KindMalformed
		if resp.Error.Code >= 500 {
			kind = KindServer
		}
		return nil, &RequestError{Kind: kind, Err: fmt.Errorf("server fault %d: %s", resp.Error.Code, resp.Error.Message)}
	}
	c.log.DebugContext(ctx, "query done",
		"features", len(resp.Features),
		"exceeded_limit", resp.ExceededTransferLimit)
	return &resp, nil
}

// LayerMetadata fetches the layer metadata document used by the CRS probe.
func (c *Client) LayerMetadata(ctx context.Context, queryURL string) (*LayerMetadata, error) {
	body, err := c.get(ctx, MetadataURL(queryURL), nil)
	if err != nil {
		return nil, err
	}

	var md LayerMetadata
	if err := json.Unmarshal(body, &md); err != nil {
		return nil, &RequestError{Kind: KindMalformed, Err: fmt.Errorf("decode layer metadata: %w", err)}
	}
	if md.Error != nil {
		return nil, &RequestError{Kind: KindMalformed, Err: fmt.Errorf("server fault %d: %s", md.Error.Code, md.Error.Message)}
	}
	return &md, nil
}

func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &RequestError{Kind: KindMalformed, Err: fmt.Errorf("build request: %w", err)}
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Kind: KindNetwork, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, &RequestError{Kind: KindServer, Err: fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(b))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, &RequestError{Kind: KindMalformed, Err: fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(b))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Kind: KindNetwork, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}
