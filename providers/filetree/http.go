package filetree

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/leofalp/devchat/core/parse"
	"github.com/leofalp/devchat/internal/utils"
	"github.com/leofalp/devchat/providers/observability"
)

// HTTPSource fetches the tree from a file service exposing
// GET <baseURL>/containers/<id>/files/tree.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource returns an HTTPSource using http.DefaultClient.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
}

// WithHttpClient sets the HTTP client used for requests.
func (s *HTTPSource) WithHttpClient(client *http.Client) *HTTPSource {
	s.client = client
	return s
}

var _ Source = (*HTTPSource)(nil)

// FileContentTree fetches and decodes the tree. Slightly malformed JSON is
// repaired rather than rejected.
func (s *HTTPSource) FileContentTree(ctx context.Context, containerID string) (any, error) {
	endpoint := fmt.Sprintf("%s/containers/%s/files/tree", s.baseURL, url.PathEscape(containerID))

	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Trace(ctx, "Fetching file tree",
			observability.String(observability.AttrHTTPMethod, http.MethodGet),
			observability.String(observability.AttrHTTPURL, endpoint),
		)
	}

	body, err := utils.DoGetSync(ctx, s.client, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch file tree for %s: %w", containerID, err)
	}

	tree, err := parse.ParseBytesAs[any](body)
	if err != nil {
		return nil, fmt.Errorf("decode file tree for %s: %w", containerID, err)
	}
	return tree, nil
}
