package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultTimeout = 30 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// getJSON fetches rawURL and decodes a 200 response into out. For other
// statuses it asks errMessage to pull a human readable message out of the
// body. Query strings are stripped from transport errors so API keys do
// not end up in logs.
func getJSON(ctx context.Context, client *http.Client, src SourceType, rawURL string, out any, errMessage func([]byte) string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", src, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "aqiwatch/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", src, redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{Source: src, Status: resp.StatusCode}
		if errMessage != nil {
			apiErr.Message = errMessage(body)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", src, err)
	}
	return nil
}

func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if u, perr := url.Parse(ue.URL); perr == nil {
			u.RawQuery = ""
			ue.URL = u.String()
		}
	}
	return err
}

// messageField extracts {"message": "..."} from an error body.
func messageField(body []byte) string {
	var v struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &v) == nil {
		return v.Message
	}
	return ""
}
