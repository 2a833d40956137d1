package stellar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"stellar-wallet-core/internal/domain"
)

// DefaultAssetListURL is the public stellar.expert API.
const DefaultAssetListURL = "https://api.stellar.expert"

const topAssetsPath = "/explorer/public/asset?sort=rating&order=desc&limit=50"

// AssetListPage is one page of the top-asset listing.
type AssetListPage struct {
	Assets []string // "native" or CODE:ISSUER, in listing order
	Next   string   // link to the next page, empty on the last one
}

// AssetListClient crawls the stellar.expert top-asset listing.
type AssetListClient struct {
	base *url.URL
	cfg  clientConfig
}

// NewAssetListClient creates a listing client. An empty baseURL uses DefaultAssetListURL.
func NewAssetListClient(baseURL string, opts ...ClientOption) (*AssetListClient, error) {
	if baseURL == "" {
		baseURL = DefaultAssetListURL
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse asset list url: %w", err)
	}
	return &AssetListClient{base: base, cfg: newClientConfig(opts)}, nil
}

type expertAssetPage struct {
	Embedded struct {
		Records []struct {
			Asset string `json:"asset"`
		} `json:"records"`
	} `json:"_embedded"`
	Links struct {
		Next struct {
			Href string `json:"href"`
		} `json:"next"`
	} `json:"_links"`
}

// TopAssets fetches a listing page. An empty next fetches the first page, otherwise
// next is the link returned with the previous page.
func (c *AssetListClient) TopAssets(ctx context.Context, next string) (*AssetListPage, error) {
	if next == "" {
		next = topAssetsPath
	}
	ref, err := url.Parse(next)
	if err != nil {
		return nil, fmt.Errorf("parse next link %q: %w", next, err)
	}
	u := c.base.ResolveReference(ref).String()

	body, err := c.cfg.do(ctx, SourceAssetList, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, true)
	if err != nil {
		return nil, err
	}

	var page expertAssetPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("unmarshal asset list: %w", err)
	}

	out := &AssetListPage{Next: page.Links.Next.Href}
	for _, r := range page.Embedded.Records {
		if key, ok := parseExpertAsset(r.Asset); ok {
			out.Assets = append(out.Assets, key)
		}
	}
	return out, nil
}

// parseExpertAsset converts "XLM" or "CODE-ISSUER-TYPE" into a balance key.
func parseExpertAsset(s string) (string, bool) {
	if s == "XLM" || s == domain.NativeKey {
		return domain.NativeKey, true
	}
	parts := strings.Split(s, "-")
	if len(parts) < 2 {
		return "", false
	}
	key := ClassicKey(parts[0], parts[1])
	if _, _, ok := ParseClassicKey(key); !ok {
		return "", false
	}
	return key, true
}
