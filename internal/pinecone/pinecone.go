// Package pinecone is a thin REST client for the Pinecone vector database.
package pinecone

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	controlURL = "https://api.pinecone.io"
	apiVersion = "2025-04"
	userAgent  = "erflog-strategist"
)

type Client struct {
	apiKey     string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	APIVersion string
}

func New(logger *zap.Logger, apiKey string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey: apiKey,
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		UserAgent:  userAgent,
		APIURL:     controlURL,
		APIVersion: apiVersion,
	}
}

// IndexDescription is the control plane view of an index.
type IndexDescription struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

func (c *Client) DescribeIndex(ctx context.Context, name string) (*IndexDescription, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("index name is required")
	}

	var out IndexDescription
	if err := c.getJSON(ctx, strings.TrimRight(c.APIURL, "/")+"/indexes/"+name, nil, &out); err != nil {
		return nil, fmt.Errorf("describe index %s: %w", name, err)
	}
	if strings.TrimSpace(out.Host) == "" {
		return nil, fmt.Errorf("describe index %s: empty host", name)
	}
	return &out, nil
}

// ResolveHost returns host when set, otherwise looks the index up by name.
func (c *Client) ResolveHost(ctx context.Context, host, index string) (string, error) {
	if host = strings.TrimSpace(host); host != "" {
		return host, nil
	}
	desc, err := c.DescribeIndex(ctx, index)
	if err != nil {
		return "", err
	}
	c.logger.Debug("resolved pinecone index host", zap.String("index", index), zap.String("host", desc.Host))
	return desc.Host, nil
}
