package syncer

import (
	"context"
	"net/http"
	"time"
)

// HTTPConnectivity reports the server reachable when healthURL answers 2xx.
func HTTPConnectivity(healthURL string, client *http.Client) func(ctx context.Context) bool {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode >= 200 && resp.StatusCode < 300
	}
}
