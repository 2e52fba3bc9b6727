package retailer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agroprecios/backend/internal/domain"
)

func TestArticlesAPIFetcher_Defaults(t *testing.T) {
	fetcher := NewArticlesAPIFetcher(ArticlesAPIConfig{}, newTestClient(fastRetry(0)))

	refs, err := fetcher.ListCategories(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "biggie", fetcher.Retailer())
	assert.Equal(t, DefaultClassifications, refs)
	assert.Equal(t, defaultArticlesEndpoint, fetcher.config.Endpoint)
	assert.Equal(t, 100, fetcher.config.PageSize)
}

func TestArticlesAPIFetcher_FetchCategory(t *testing.T) {
	t.Run("pages until count is reached", func(t *testing.T) {
		var requests atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			assert.Equal(t, "/api/articles", r.URL.Path)
			assert.Equal(t, "2", r.URL.Query().Get("take"))
			assert.Equal(t, "frutas", r.URL.Query().Get("classificationName"))

			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Query().Get("skip") {
			case "0":
				w.Write([]byte(`{"count": 3, "items": [{"name": "NARANJA X KG", "price": 5500}, {"name": "BANANA X KG", "price": "6.900"}]}`))
			case "2":
				w.Write([]byte(`{"count": 3, "items": [{"name": "MANZANA ROJA X KG", "price": 12500.5}]}`))
			default:
				t.Errorf("unexpected skip %q", r.URL.Query().Get("skip"))
			}
		}))
		defer server.Close()

		fetcher := NewArticlesAPIFetcher(ArticlesAPIConfig{Endpoint: server.URL + "/api/articles", PageSize: 2}, newTestClient(fastRetry(0)))

		listings, err := fetcher.FetchCategory(context.Background(), "frutas")

		require.NoError(t, err)
		assert.Equal(t, int32(2), requests.Load())
		require.Len(t, listings, 3)
		assert.Equal(t, domain.RawListing{Retailer: "biggie", CategoryRef: "frutas", Name: "NARANJA X KG", RawPrice: json.Number("5500")}, listings[0])
		assert.Equal(t, "6.900", listings[1].RawPrice)
		assert.Equal(t, "MANZANA ROJA X KG", listings[2].Name)
	})

	t.Run("empty page stops paging", func(t *testing.T) {
		var requests atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.Write([]byte(`{"count": 500, "items": []}`))
		}))
		defer server.Close()

		fetcher := NewArticlesAPIFetcher(ArticlesAPIConfig{Endpoint: server.URL}, newTestClient(fastRetry(0)))

		listings, err := fetcher.FetchCategory(context.Background(), "huevos")

		require.NoError(t, err)
		assert.Empty(t, listings)
		assert.Equal(t, int32(1), requests.Load())
	})

	t.Run("page limit bounds a lying count", func(t *testing.T) {
		var requests atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := requests.Add(1)
			fmt.Fprintf(w, `{"count": 100000, "items": [{"name": "PAN LACTAL %d", "price": 9000}]}`, n)
		}))
		defer server.Close()

		fetcher := NewArticlesAPIFetcher(ArticlesAPIConfig{Endpoint: server.URL, PageSize: 1, MaxPages: 3}, newTestClient(fastRetry(0)))

		listings, err := fetcher.FetchCategory(context.Background(), "panificados")

		require.NoError(t, err)
		assert.Len(t, listings, 3)
		assert.Equal(t, int32(3), requests.Load())
	})

	t.Run("failure is returned", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		fetcher := NewArticlesAPIFetcher(ArticlesAPIConfig{Endpoint: server.URL}, newTestClient(fastRetry(0)))

		_, err := fetcher.FetchCategory(context.Background(), "lacteos")

		assert.ErrorIs(t, err, domain.ErrFetchFailure)
	})
}
