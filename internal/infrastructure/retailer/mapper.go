package retailer

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/agroprecios/backend/internal/domain"
)

// ArticlesPage is one page of the articles API
type ArticlesPage struct {
	Items []Article `json:"items"`
	Count int       `json:"count"`
}

// Article is a catalog entry. Price arrives as a number or a string
// depending on the endpoint version.
type Article struct {
	Name  string          `json:"name"`
	Price json.RawMessage `json:"price"`
}

// MapArticles converts API articles to raw listings, skipping nameless ones
func MapArticles(retailer, classification string, items []Article) []domain.RawListing {
	listings := make([]domain.RawListing, 0, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		listings = append(listings, domain.RawListing{
			Retailer:    retailer,
			CategoryRef: classification,
			Name:        name,
			RawPrice:    articlePrice(it.Price),
		})
	}
	return listings
}

// articlePrice keeps numbers as json.Number and strings as text
func articlePrice(raw json.RawMessage) any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num
	}
	return nil
}
