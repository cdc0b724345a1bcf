package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/utils"
)

const contentType = "application/json"

// StatusError reports a non-2xx answer from Pinecone.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status: %d %s", e.Code, e.Body)
}

func (c *Client) getJSON(ctx context.Context, u string, q url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}
	return c.do(req, target)
}

func (c *Client) postJSON(ctx context.Context, u string, body, target any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target any) error {
	c.setHeaders(req)

	c.logger.Debug("make request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: utils.TruncateForLog(string(data), 256)}
	}

	if target == nil {
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("X-Pinecone-Api-Version", c.APIVersion)
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
}

// dataURL builds a data plane URL. Hosts without a scheme are served over https.
func dataURL(host, path string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host + path
}
