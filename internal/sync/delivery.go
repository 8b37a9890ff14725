package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

//go:generate mockgen -destination=mocks/mock_delivery.go -package=mocks -source=delivery.go Client

// DefaultDeliveryTimeout bounds a single outbound request.
const DefaultDeliveryTimeout = 10 * time.Second

// Client delivers one payload to the remote endpoint. Implementations make
// at most one attempt per call; retry policy belongs to the caller (and the
// caller's policy is no retries).
type Client interface {
	Send(ctx context.Context, remoteURL string, payload *Payload) error
}

// HTTPError reports a delivery that reached the remote but came back with a
// status other than 200.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("remote returned status %d: %s", e.StatusCode, e.Body)
}

type httpClient struct {
	client *http.Client
}

// NewHTTPClient creates the default delivery client with the standard
// request timeout.
func NewHTTPClient() Client {
	return &httpClient{
		client: &http.Client{Timeout: DefaultDeliveryTimeout},
	}
}

// Send posts the payload as JSON. An empty remoteURL means the feature is
// not fully configured yet and the call is a silent no-op.
func (c *httpClient) Send(ctx context.Context, remoteURL string, payload *Payload) error {
	if remoteURL == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, remoteURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach remote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(respBody)),
		}
	}

	return nil
}
