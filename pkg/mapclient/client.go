// Package mapclient is a Go client for the soil moisture map API.
//
// Every call returns the raw response alongside the decoded body so callers
// can read Link headers. Error statuses come back as *huma.ErrorModel.
package mapclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-moisture/internal/api"
	"github.com/joeblew999/plat-moisture/internal/humastar"
	"github.com/joeblew999/plat-moisture/internal/service"
)

// Client talks to one map server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL, e.g. http://localhost:8086.
func New(baseURL string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: http.DefaultClient}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// PickRequest is a pointer event for Pick.
type PickRequest struct {
	Mode      string  `json:"mode"`
	Cluster   string  `json:"cluster,omitempty"`
	StationID string  `json:"stationId,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
}

func do[T any](ctx context.Context, c *Client, method, path string, body any) (*http.Response, T, error) {
	var out T
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, out, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, out, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		em := &huma.ErrorModel{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
		_ = json.NewDecoder(resp.Body).Decode(em)
		return resp, out, em
	}
	if resp.StatusCode == http.StatusNoContent {
		return resp, out, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return resp, out, fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return resp, out, nil
}

func sessionPath(id string, rest ...string) string {
	return "/api/v1/map/sessions/" + url.PathEscape(id) + strings.Join(rest, "")
}

func (c *Client) Health(ctx context.Context) (*http.Response, api.HealthBody, error) {
	return do[api.HealthBody](ctx, c, http.MethodGet, "/health", nil)
}

func (c *Client) GetInfo(ctx context.Context) (*http.Response, api.InfoBody, error) {
	return do[api.InfoBody](ctx, c, http.MethodGet, "/api/v1/info", nil)
}

func (c *Client) SearchStations(ctx context.Context, q string, limit int) (*http.Response, []service.StationSummary, error) {
	v := url.Values{"q": {q}, "limit": {strconv.Itoa(limit)}}
	return do[[]service.StationSummary](ctx, c, http.MethodGet, "/api/v1/stations/search?"+v.Encode(), nil)
}

func (c *Client) GetStation(ctx context.Context, id string) (*http.Response, api.StationBody, error) {
	return do[api.StationBody](ctx, c, http.MethodGet, "/api/v1/stations/"+url.PathEscape(id), nil)
}

func (c *Client) ReloadStations(ctx context.Context) (*http.Response, api.ReloadBody, error) {
	return do[api.ReloadBody](ctx, c, http.MethodPost, "/api/v1/stations/reload", nil)
}

func (c *Client) GetSettings(ctx context.Context) (*http.Response, service.Settings, error) {
	return do[service.Settings](ctx, c, http.MethodGet, "/api/v1/map/settings", nil)
}

func (c *Client) UpdateSettings(ctx context.Context, s service.Settings) (*http.Response, service.Settings, error) {
	return do[service.Settings](ctx, c, http.MethodPut, "/api/v1/map/settings", s)
}

func (c *Client) CreateSession(ctx context.Context) (*http.Response, api.SessionBody, error) {
	return do[api.SessionBody](ctx, c, http.MethodPost, "/api/v1/map/sessions", nil)
}

func (c *Client) GetSession(ctx context.Context, id string) (*http.Response, api.SessionBody, error) {
	return do[api.SessionBody](ctx, c, http.MethodGet, sessionPath(id), nil)
}

func (c *Client) DeleteSession(ctx context.Context, id string) (*http.Response, api.MessageBody, error) {
	return do[api.MessageBody](ctx, c, http.MethodDelete, sessionPath(id), nil)
}

func (c *Client) GetFeatures(ctx context.Context, id string) (*http.Response, api.FeaturesBody, error) {
	return do[api.FeaturesBody](ctx, c, http.MethodGet, sessionPath(id, "/features"), nil)
}

func (c *Client) PutViewport(ctx context.Context, id string, vp api.ViewportBody) (*http.Response, api.ViewportResultBody, error) {
	return do[api.ViewportResultBody](ctx, c, http.MethodPut, sessionPath(id, "/viewport"), vp)
}

func (c *Client) Pick(ctx context.Context, id string, p PickRequest) (*http.Response, api.PickResultBody, error) {
	return do[api.PickResultBody](ctx, c, http.MethodPost, sessionPath(id, "/pick"), p)
}

// Select selects a station; an empty id clears the selection.
func (c *Client) Select(ctx context.Context, id, stationID string) (*http.Response, api.SessionBody, error) {
	return do[api.SessionBody](ctx, c, http.MethodPost, sessionPath(id, "/select"), map[string]string{"stationId": stationID})
}

func (c *Client) Leaves(ctx context.Context, id, handle string, limit, offset int) (*http.Response, humastar.Page[api.PointBody], error) {
	v := url.Values{"limit": {strconv.Itoa(limit)}, "offset": {strconv.Itoa(offset)}}
	return do[humastar.Page[api.PointBody]](ctx, c, http.MethodGet, sessionPath(id, "/clusters/", url.PathEscape(handle), "/leaves?", v.Encode()), nil)
}
