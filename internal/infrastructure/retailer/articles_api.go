package retailer

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/agroprecios/backend/internal/domain"
)

const (
	defaultArticlesEndpoint = "https://api.app.biggie.com.py/api/articles"
	defaultPageSize         = 100
	defaultMaxPages         = 200
)

// DefaultClassifications are the catalog classifications crawled on the articles API
var DefaultClassifications = []string{"huevos", "lacteos", "frutas", "verduras", "cereales", "panificados"}

// ArticlesAPIConfig configures an ArticlesAPIFetcher
type ArticlesAPIConfig struct {
	Name            string
	Endpoint        string
	PageSize        int
	MaxPages        int
	Classifications []string
}

// ArticlesAPIFetcher implements domain.Fetcher for a paginated JSON catalog
// where categories are classification names
type ArticlesAPIFetcher struct {
	config ArticlesAPIConfig
	client *Client
	logger *zap.Logger
}

// NewArticlesAPIFetcher creates a fetcher, filling unset config with the biggie defaults
func NewArticlesAPIFetcher(config ArticlesAPIConfig, client *Client) *ArticlesAPIFetcher {
	if config.Name == "" {
		config.Name = "biggie"
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultArticlesEndpoint
	}
	if config.PageSize <= 0 {
		config.PageSize = defaultPageSize
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaultMaxPages
	}
	if len(config.Classifications) == 0 {
		config.Classifications = DefaultClassifications
	}
	return &ArticlesAPIFetcher{
		config: config,
		client: client,
		logger: client.logger.With(zap.String("retailer", config.Name)),
	}
}

// Retailer returns the site identifier
func (f *ArticlesAPIFetcher) Retailer() string {
	return f.config.Name
}

// ListCategories returns the configured classifications
func (f *ArticlesAPIFetcher) ListCategories(ctx context.Context) ([]string, error) {
	return append([]string(nil), f.config.Classifications...), nil
}

// FetchCategory pages through one classification until the reported count is reached
func (f *ArticlesAPIFetcher) FetchCategory(ctx context.Context, classification string) ([]domain.RawListing, error) {
	var listings []domain.RawListing

	skip := 0
	for page := 0; page < f.config.MaxPages; page++ {
		params := url.Values{}
		params.Set("take", strconv.Itoa(f.config.PageSize))
		params.Set("skip", strconv.Itoa(skip))
		params.Set("classificationName", classification)

		var resp ArticlesPage
		if err := f.client.GetJSON(ctx, f.config.Endpoint, params, &resp); err != nil {
			return nil, err
		}

		listings = append(listings, MapArticles(f.config.Name, classification, resp.Items)...)

		skip += f.config.PageSize
		if len(resp.Items) == 0 || skip >= resp.Count {
			return listings, nil
		}
	}

	f.logger.Warn("page limit reached",
		zap.String("category", classification),
		zap.Int("max_pages", f.config.MaxPages),
		zap.Int("count", len(listings)),
	)
	return listings, nil
}
