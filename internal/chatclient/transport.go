package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// httpTransport performs JSON requests and maps failures onto the error
// taxonomy.
type httpTransport struct {
	baseURL string
	client  *http.Client
	token   string
}

func newHTTPTransport(baseURL string, client *http.Client, token string) *httpTransport {
	return &httpTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		token:   token,
	}
}

// do sends body as JSON and decodes a 2xx response into out when non-nil.
func (t *httpTransport) do(ctx context.Context, op, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &ServerError{Op: op, Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, &ServerError{
				Op:      op,
				Status:  resp.StatusCode,
				Message: "malformed response: " + err.Error(),
			}
		}
	}

	return resp.StatusCode, nil
}

// errorMessage extracts {"error": "..."} bodies, falling back to raw text.
func errorMessage(data []byte) string {
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Detail != "" {
			return body.Detail
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
