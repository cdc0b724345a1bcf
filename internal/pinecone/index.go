package pinecone

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/catalog"
)

// DefaultNamespaces maps catalog namespaces to Pinecone namespaces.
// Jobs live in the default (empty) namespace.
var DefaultNamespaces = map[catalog.Namespace]string{
	catalog.NamespaceJobs:     "",
	catalog.NamespaceContests: "hackathon",
	catalog.NamespaceNews:     "news",
}

// CatalogIndex serves similarity queries over the opportunity catalog.
type CatalogIndex struct {
	client     *Client
	host       string
	namespaces map[catalog.Namespace]string
}

func NewCatalogIndex(client *Client, host string, namespaces map[catalog.Namespace]string) *CatalogIndex {
	merged := make(map[catalog.Namespace]string, len(DefaultNamespaces))
	for ns, name := range DefaultNamespaces {
		merged[ns] = name
	}
	for ns, name := range namespaces {
		merged[ns] = name
	}
	return &CatalogIndex{client: client, host: host, namespaces: merged}
}

func (i *CatalogIndex) Query(ctx context.Context, vector []float32, ns catalog.Namespace, topK int) ([]catalog.Match, error) {
	name, ok := i.namespaces[ns]
	if !ok {
		return nil, fmt.Errorf("unknown namespace %q", ns)
	}

	resp, err := i.client.Query(ctx, i.host, QueryRequest{
		Namespace:       name,
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}

	matches := make([]catalog.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		item, err := decodeItem(m.ID, ns, m.Metadata)
		if err != nil {
			i.client.logger.Warn("skipping match with unreadable metadata",
				zap.String("item_id", m.ID),
				zap.String("namespace", ns.String()),
				zap.Error(err),
			)
			continue
		}
		matches = append(matches, catalog.Match{Item: item, Score: m.Score})
	}
	return matches, nil
}

type itemMetadata struct {
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Link        string    `json:"link"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	Platform    string    `json:"platform"`
	Location    string    `json:"location"`
	Skills      []string  `json:"skills"`
	PublishedAt time.Time `json:"published_at"`
}

func decodeItem(id string, ns catalog.Namespace, metadata map[string]any) (catalog.Item, error) {
	var meta itemMetadata
	cfg := &mapstructure.DecoderConfig{
		Result:           &meta,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			blankTimeHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToSliceHookFunc(","),
		),
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return catalog.Item{}, err
	}
	if err := decoder.Decode(metadata); err != nil {
		return catalog.Item{}, err
	}

	description := meta.Summary
	if description == "" {
		description = meta.Description
	}
	source := meta.Source
	if source == "" {
		source = meta.Platform
	}

	skills := make([]string, 0, len(meta.Skills))
	for _, s := range meta.Skills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}

	return catalog.Item{
		ID:          id,
		Namespace:   ns,
		Title:       strings.TrimSpace(meta.Title),
		Org:         strings.TrimSpace(meta.Company),
		Link:        strings.TrimSpace(meta.Link),
		Source:      source,
		Location:    meta.Location,
		Description: description,
		Skills:      skills,
		PublishedAt: meta.PublishedAt,
	}, nil
}

// blankTimeHook decodes an empty published_at as the zero time.
func blankTimeHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	if strings.TrimSpace(data.(string)) == "" {
		return time.Time{}, nil
	}
	return data, nil
}

// UserVectors reads stored profile embeddings from the user index.
type UserVectors struct {
	client    *Client
	host      string
	namespace string
}

func NewUserVectors(client *Client, host, namespace string) *UserVectors {
	return &UserVectors{client: client, host: host, namespace: namespace}
}

// FetchVector reports false when the user has no stored vector.
func (u *UserVectors) FetchVector(ctx context.Context, userID string) ([]float32, bool, error) {
	resp, err := u.client.Fetch(ctx, u.host, u.namespace, userID)
	if err != nil {
		return nil, false, err
	}
	v, ok := resp.Vectors[userID]
	if !ok || len(v.Values) == 0 {
		return nil, false, nil
	}
	return v.Values, true, nil
}
