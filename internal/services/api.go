// HTTP client for the JSON APIs queried by fallback providers
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/vidproxy/internal/shared"
)

// APIClient performs the raw HTTP requests made by providers.
type APIClient struct {
	httpClient *http.Client
	userAgent  string
}

// NewAPIClient creates a client. A nil http client uses [http.DefaultClient].
func NewAPIClient(client *http.Client, userAgent string) *APIClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &APIClient{httpClient: client, userAgent: userAgent}
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d", shared.ErrAPIRequest, e.URL, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return shared.ErrAPIRequest
}

func (a *APIClient) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, URL: url}
	}
	return resp, nil
}

// GetJSON fetches url and decodes the body into result.
func (a *APIClient) GetJSON(ctx context.Context, url string, result any) error {
	resp, err := a.do(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Stream copies the body at url into w and returns the number of bytes written.
func (a *APIClient) Stream(ctx context.Context, url string, w io.Writer) (int64, error) {
	resp, err := a.do(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read response: %w", err)
	}
	return n, nil
}
