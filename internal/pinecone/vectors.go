package pinecone

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type QueryRequest struct {
	Namespace       string         `json:"namespace,omitempty"`
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata"`
}

type QueryMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type QueryResponse struct {
	Matches   []QueryMatch `json:"matches"`
	Namespace string       `json:"namespace"`
}

func (c *Client) Query(ctx context.Context, host string, req QueryRequest) (*QueryResponse, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("host is required")
	}
	if len(req.Vector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}

	var out QueryResponse
	if err := c.postJSON(ctx, dataURL(host, "/query"), req, &out); err != nil {
		return nil, fmt.Errorf("query namespace %q: %w", req.Namespace, err)
	}
	return &out, nil
}

type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type FetchResponse struct {
	Vectors   map[string]Vector `json:"vectors"`
	Namespace string            `json:"namespace"`
}

func (c *Client) Fetch(ctx context.Context, host, namespace string, ids ...string) (*FetchResponse, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("host is required")
	}
	if len(ids) == 0 {
		return &FetchResponse{Vectors: map[string]Vector{}}, nil
	}

	q := url.Values{}
	for _, id := range ids {
		q.Add("ids", id)
	}
	if namespace != "" {
		q.Set("namespace", namespace)
	}

	var out FetchResponse
	if err := c.getJSON(ctx, dataURL(host, "/vectors/fetch"), q, &out); err != nil {
		return nil, fmt.Errorf("fetch vectors: %w", err)
	}
	if out.Vectors == nil {
		out.Vectors = map[string]Vector{}
	}
	return &out, nil
}
