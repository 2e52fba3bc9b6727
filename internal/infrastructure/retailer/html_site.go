package retailer

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/agroprecios/backend/internal/domain"
)

// DefaultPriceSelectors are tried in order when a profile names none
var DefaultPriceSelectors = []string{
	"span.price ins span.amount",
	"span.price > span.amount",
	"span.woocommerce-Price-amount",
	"span.amount",
	"bdi",
	"[data-price]",
}

var nonZeroDigitRegex = regexp.MustCompile(`[1-9]`)

// SiteProfile describes how to crawl one HTML storefront
type SiteProfile struct {
	Name    string
	BaseURL string
	// CategoryLinkSelectors select the anchors that lead to category pages
	CategoryLinkSelectors []string
	// StripQuery drops the query string of category links
	StripQuery bool
	// ProductSelector selects one node per product on a category page
	ProductSelector string
	// NameSelector selects the name node inside a product; empty uses the product node
	NameSelector string
	// NameInput reads the name from the value of the named input instead
	NameInput      string
	PriceSelectors []string
	// PriceInput reads the price from the value of the named input instead
	PriceInput string
	// PriceContainer is the ancestor of the product node searched for prices
	PriceContainer string
}

// HTMLSiteFetcher implements domain.Fetcher for server-rendered storefronts
type HTMLSiteFetcher struct {
	profile  SiteProfile
	client   *Client
	keywords []string
	logger   *zap.Logger
}

// NewHTMLSiteFetcher creates a fetcher for profile. Category links are kept
// when their href contains one of keywords.
func NewHTMLSiteFetcher(profile SiteProfile, client *Client, keywords []string) *HTMLSiteFetcher {
	lower := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lower = append(lower, kw)
		}
	}
	return &HTMLSiteFetcher{
		profile:  profile,
		client:   client,
		keywords: lower,
		logger:   client.logger.With(zap.String("retailer", profile.Name)),
	}
}

// Retailer returns the site identifier
func (f *HTMLSiteFetcher) Retailer() string {
	return f.profile.Name
}

// ListCategories crawls the landing page for category links
func (f *HTMLSiteFetcher) ListCategories(ctx context.Context) ([]string, error) {
	base, err := url.Parse(strings.TrimRight(f.profile.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", f.profile.BaseURL, err)
	}

	doc, err := f.document(ctx, base.String())
	if err != nil {
		return nil, err
	}

	selectors := f.profile.CategoryLinkSelectors
	if len(selectors) == 0 {
		selectors = []string{"a[href]"}
	}

	seen := make(map[string]bool)
	var refs []string
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			href = strings.ToLower(strings.TrimSpace(href))
			if f.profile.StripQuery {
				href, _, _ = strings.Cut(href, "?")
			}
			if href == "" || !f.matchesKeyword(href) {
				return
			}
			ref, err := base.Parse(href)
			if err != nil {
				return
			}
			abs := ref.String()
			if !seen[abs] {
				seen[abs] = true
				refs = append(refs, abs)
			}
		})
	}

	slices.Sort(refs)
	f.logger.Debug("categories discovered", zap.Int("count", len(refs)))
	return refs, nil
}

// FetchCategory parses one category page into raw listings
func (f *HTMLSiteFetcher) FetchCategory(ctx context.Context, categoryRef string) ([]domain.RawListing, error) {
	doc, err := f.document(ctx, categoryRef)
	if err != nil {
		return nil, err
	}

	var listings []domain.RawListing
	doc.Find(f.profile.ProductSelector).Each(func(_ int, node *goquery.Selection) {
		name := f.productName(node)
		if name == "" {
			return
		}
		listings = append(listings, domain.RawListing{
			Retailer:    f.profile.Name,
			CategoryRef: categoryRef,
			Name:        name,
			RawPrice:    f.productPrice(node),
		})
	})
	return listings, nil
}

func (f *HTMLSiteFetcher) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := f.client.Get(ctx, pageURL, nil)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %s: %w", pageURL, err)
	}
	return doc, nil
}

func (f *HTMLSiteFetcher) matchesKeyword(href string) bool {
	for _, kw := range f.keywords {
		if strings.Contains(href, kw) {
			return true
		}
	}
	return false
}

func (f *HTMLSiteFetcher) productName(node *goquery.Selection) string {
	if f.profile.NameInput != "" {
		return inputValue(node, f.profile.NameInput)
	}
	if f.profile.NameSelector == "" {
		return nodeText(node)
	}
	return nodeText(node.Find(f.profile.NameSelector).First())
}

func (f *HTMLSiteFetcher) productPrice(node *goquery.Selection) string {
	if f.profile.PriceInput != "" {
		return inputValue(node, f.profile.PriceInput)
	}
	container := node
	if f.profile.PriceContainer != "" {
		if parent := node.Closest(f.profile.PriceContainer); parent.Length() > 0 {
			container = parent
		}
	}
	return FirstPrice(container, f.profile.PriceSelectors)
}

// FirstPrice returns the price text of the first selector match that holds a
// non-zero digit, or "" when none does. data-price attributes are read when
// the element has no text.
func FirstPrice(node *goquery.Selection, selectors []string) string {
	if len(selectors) == 0 {
		selectors = DefaultPriceSelectors
	}
	for _, sel := range selectors {
		el := node.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		text := nodeText(el)
		if text == "" {
			text = strings.TrimSpace(el.AttrOr("data-price", ""))
		}
		if nonZeroDigitRegex.MatchString(text) {
			return text
		}
	}
	return ""
}

func inputValue(node *goquery.Selection, name string) string {
	return strings.TrimSpace(node.Find(fmt.Sprintf(`input[name=%q]`, name)).First().AttrOr("value", ""))
}

// nodeText returns the whitespace-collapsed text of a selection
func nodeText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
