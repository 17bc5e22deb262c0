package alert

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

const webhookTimeout = 10 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: webhookTimeout}
}

// post sends a JSON body and accepts any 2xx answer.
func post(ctx context.Context, client *http.Client, url string, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// place renders "City, State", collapsing states that share the city name.
func place(n *Notification) string {
	if n.State == "" || n.State == n.City {
		return n.City
	}
	return n.City + ", " + n.State
}
