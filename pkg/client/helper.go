package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/adgate/adgate/internal/api/middleware"
	"github.com/adgate/adgate/internal/api/presenter"
)

var ErrInvalidSession = fmt.Errorf("invalid session token")

// APIError is a structured error response from the server, carrying the
// correlation ID so the failing request can be found in server logs.
type APIError struct {
	CorrelationID string
	Message       string
}

func (e APIError) Error() string {
	return fmt.Sprintf("api error: '%s' (correlation: %s)", e.Message, e.CorrelationID)
}

func (c *Client) get(ctx context.Context, url string, result any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, url string, payload, result any) (string, error) {
	body, err := encodePayload(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func encodePayload(payload any) (io.Reader, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}
	return bytes.NewReader(raw), nil
}

// do executes the request and decodes the JSON response into result. It
// always returns the correlation ID echoed by the server, even on errors.
func (c *Client) do(req *http.Request, result any) (string, error) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connection failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	correlation := resp.Header.Get(middleware.CorrelationIDHeader)

	if resp.StatusCode >= 400 {
		return correlation, parseErrorResponse(resp)
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return correlation, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return correlation, nil
}

func parseErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("request failed with status %d and unreadable body: %w", resp.StatusCode, err)
	}

	var errResp presenter.ErrorResponse
	if json.Unmarshal(body, &errResp) != nil || errResp.Error == "" {
		return fmt.Errorf("api error: *unparsed '%s' (status %d)", string(body), resp.StatusCode)
	}
	if errResp.Error == "invalid session token" {
		return ErrInvalidSession
	}
	return APIError{
		CorrelationID: errResp.CorrelationID,
		Message:       errResp.Error,
	}
}
