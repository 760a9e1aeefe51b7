package station

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ListPath is the upstream data API route serving the station collection.
const ListPath = "/api/data/observation/list"

// DefaultTimeout bounds one upstream fetch.
const DefaultTimeout = 10 * time.Second

// Fetch downloads the station collection from the data API at baseURL.
// A nil client uses one with DefaultTimeout.
func Fetch(ctx context.Context, client *http.Client, baseURL string) (*Collection, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	url := strings.TrimRight(baseURL, "/") + ListPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building station request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching stations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching stations: %s returned %s", url, resp.Status)
	}
	return Decode(resp.Body)
}
