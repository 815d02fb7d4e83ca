package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Udit-takkar/safe-duckai-security-agent/pkg/models"
)

// HTTPSource reads the reputation lists from two JSON endpoints, each
// returning an ordered sequence of AddressEntry records.
type HTTPSource struct {
	DenylistURL  string
	AllowlistURL string
	Client       *http.Client
}

// NewHTTPSource builds a source with the default curated list endpoints and
// a bounded-timeout client.
func NewHTTPSource(denylistURL, allowlistURL string) *HTTPSource {
	if denylistURL == "" {
		denylistURL = models.DefaultDenylistURL
	}
	if allowlistURL == "" {
		allowlistURL = models.DefaultAllowlistURL
	}
	return &HTTPSource{
		DenylistURL:  denylistURL,
		AllowlistURL: allowlistURL,
		Client:       &http.Client{Timeout: models.HTTPClientTimeout},
	}
}

func (s *HTTPSource) FetchDenylist(ctx context.Context) ([]models.AddressEntry, error) {
	return s.fetch(ctx, s.DenylistURL)
}

func (s *HTTPSource) FetchAllowlist(ctx context.Context) ([]models.AddressEntry, error) {
	return s.fetch(ctx, s.AllowlistURL)
}

func (s *HTTPSource) fetch(ctx context.Context, url string) ([]models.AddressEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reputation endpoint %s returned HTTP %d", url, resp.StatusCode)
	}

	// Curated lists are a few MB at most; anything larger is hostile.
	limited := io.LimitReader(resp.Body, models.MaxAPIResponseSize)
	var entries []models.AddressEntry
	if err := json.NewDecoder(limited).Decode(&entries); err != nil {
		return nil, fmt.Errorf("reputation list decode: %w", err)
	}
	return entries, nil
}
