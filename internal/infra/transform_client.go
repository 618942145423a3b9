package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrTransformUnavailable = errors.New("transform service not configured")

// TransformResponse is the upstream reply, passed through to the caller as is.
type TransformResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type TransformClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTransformClient(baseURL string, timeout time.Duration) *TransformClient {
	return &TransformClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *TransformClient) Transform(ctx context.Context, contentType string, body []byte) (*TransformResponse, error) {
	if c.baseURL == "" {
		return nil, ErrTransformUnavailable
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transform request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read transform response: %w", err)
	}
	return &TransformResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}
