package polymarket_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/alejandrodnm/polytrack/internal/adapters/polymarket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *polymarket.Client {
	return polymarket.NewClient(srv.URL)
}

// eventWithMarket construye un evento Gamma mínimo con un mercado binario.
func eventWithMarket(conditionID string) map[string]any {
	return map[string]any{
		"slug": "ev-" + conditionID,
		"markets": []map[string]any{{
			"conditionId":   conditionID,
			"question":      "Will " + conditionID + " resolve yes?",
			"outcomes":      []string{"Yes", "No"},
			"outcomePrices": []string{"0.5", "0.5"},
			"active":        true,
		}},
	}
}

func TestFetchMarkets_PaginatesUntilShortPage(t *testing.T) {
	var offsets []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "false", r.URL.Query().Get("closed"))
		assert.Equal(t, "politics", r.URL.Query().Get("tag_slug"))

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		offsets = append(offsets, offset)

		// Primera página llena (100 eventos), segunda corta (3)
		count := 100
		if offset > 0 {
			count = 3
		}
		page := make([]map[string]any, count)
		for i := range page {
			page[i] = eventWithMarket(fmt.Sprintf("0x%d-%d", offset, i))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	client := newTestClient(srv)
	markets, err := client.FetchMarkets(context.Background(), "politics")
	require.NoError(t, err)

	assert.Len(t, markets, 103)
	assert.Equal(t, []int{0, 100}, offsets)
}

func TestFetchMarkets_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.FetchMarkets(context.Background(), "politics")
	assert.Error(t, err)
}

func TestFetchSnapshots_BatchSplitting(t *testing.T) {
	callCount := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		assert.Equal(t, "/markets", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]any{})
	}))
	defer srv.Close()

	// 25 ids → debe hacer 2 requests batch (20 + 5)
	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("0x%03d", i)
	}

	client := newTestClient(srv)
	snaps, err := client.FetchSnapshots(context.Background(), ids)
	require.NoError(t, err)
	assert.Empty(t, snaps)
	assert.Equal(t, 2, callCount, "debe hacer 2 requests batch para 25 ids")
}

func TestFetchSnapshots_RetriesOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{
			"conditionId": "0xabc",
			"outcomes": ["Yes", "No"],
			"outcomePrices": ["0.7", "0.3"]
		}]`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	snaps, err := client.FetchSnapshots(context.Background(), []string{"0xabc"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 2, attempts)
	assert.InDelta(t, 0.7, snaps[0].Prices.Yes, 1e-9)
}
