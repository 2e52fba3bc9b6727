package retailer

import (
	"slices"
	"strings"

	"github.com/agroprecios/backend/internal/domain"
)

// DefaultProfiles returns the storefronts crawled as HTML
func DefaultProfiles() []SiteProfile {
	arete := SiteProfile{
		Name:    "arete",
		BaseURL: "https://www.arete.com.py",
		CategoryLinkSelectors: []string{
			`#departments-menu a[href^="catalogo/"]`,
			`#menu-departments-menu-1 a[href^="catalogo/"]`,
		},
		StripQuery:      true,
		ProductSelector: "div.product",
		NameSelector:    "h2.ecommercepro-loop-product__title",
	}
	jardines := arete
	jardines.Name = "losjardines"
	jardines.BaseURL = "https://losjardinesonline.com.py"

	return []SiteProfile{
		{
			Name:                  "stock",
			BaseURL:               "https://www.stock.com.py",
			CategoryLinkSelectors: []string{`a[href*="/category/"]`},
			ProductSelector:       "div.product-item",
			NameSelector:          "h2.product-title",
			PriceSelectors:        []string{"span.price-label", "span.price"},
		},
		{
			Name:                  "superseis",
			BaseURL:               "https://www.superseis.com.py",
			CategoryLinkSelectors: []string{`a.collapsed[href*="/category/"]`},
			ProductSelector:       "a.product-title-link",
			PriceSelectors:        []string{"span.price-label", "span.price"},
			PriceContainer:        "div.product-item",
		},
		{
			Name:                  "salemma",
			BaseURL:               "https://www.salemmaonline.com.py",
			CategoryLinkSelectors: []string{"a[href]"},
			ProductSelector:       "form.productsListForm",
			NameInput:             "name",
			PriceInput:            "price",
		},
		arete,
		jardines,
	}
}

// BuildFetchers returns the fetchers for enabled retailers, or all of them
// when enabled is empty. Names that match no retailer are ignored.
func BuildFetchers(client *Client, keywords []string, enabled []string) []domain.Fetcher {
	want := func(name string) bool {
		if len(enabled) == 0 {
			return true
		}
		return slices.ContainsFunc(enabled, func(e string) bool {
			return strings.EqualFold(strings.TrimSpace(e), name)
		})
	}

	var fetchers []domain.Fetcher
	for _, profile := range DefaultProfiles() {
		if want(profile.Name) {
			fetchers = append(fetchers, NewHTMLSiteFetcher(profile, client, keywords))
		}
	}
	if want("biggie") {
		fetchers = append(fetchers, NewArticlesAPIFetcher(ArticlesAPIConfig{}, client))
	}
	return fetchers
}
