package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"car-showroom/internal/catalog"
	"car-showroom/internal/domain"
	"car-showroom/internal/transform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-lang", "en", "-brand", "BMW", "-sort", "year-desc", "-format", "json"}, "http://proxy")
	require.NoError(t, err)

	assert.Equal(t, "http://proxy", opts.apiURL)
	assert.Equal(t, "en", opts.lang)
	assert.Equal(t, "BMW", opts.filters.Brand)
	assert.Equal(t, domain.SortYearDesc, opts.filters.SortBy)
	assert.Equal(t, "json", opts.format)

	opts, err = parseFlags(nil, "http://proxy")
	require.NoError(t, err)
	assert.Equal(t, domain.SortPriceDesc, opts.filters.SortBy)
	assert.Equal(t, "table", opts.format)

	_, err = parseFlags([]string{"-sort", "cheapest"}, "")
	assert.ErrorContains(t, err, "unknown sort order")

	_, err = parseFlags([]string{"-format", "xml"}, "")
	assert.ErrorContains(t, err, "unknown format")
}

func proxy(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":0,"data":[
			{"record_id":"a","fields":{"Model Name":"宝马X5","品牌/Brand":"BMW","售价":450000,"年份":2021}},
			{"record_id":"b","fields":{"Model Name":"奥迪A6L","品牌/Brand":"Audi","售价":320000,"年份":2019}},
			{"record_id":"c","fields":{"Model Name":"宝马3系","品牌/Brand":"BMW","售价":280000,"年份":2020}}
		]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newSession(baseURL string) *catalog.Session {
	fetcher := catalog.NewFetcher(baseURL, http.DefaultClient, transform.New(), zap.NewNop())
	return catalog.NewSession(fetcher, zap.NewNop())
}

func TestRun_JSON(t *testing.T) {
	srv := proxy(t)
	opts, err := parseFlags([]string{"-brand", "BMW", "-sort", "price-asc", "-format", "json"}, srv.URL)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), newSession(srv.URL), opts, &out))

	var view catalog.View
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	require.Equal(t, 2, view.Total)
	assert.Equal(t, "c", view.Items[0].ID)
	assert.Equal(t, "a", view.Items[1].ID)
	assert.Equal(t, []string{"BMW", "Audi"}, view.Facets.Brands)
}

func TestRun_TableWithFacets(t *testing.T) {
	srv := proxy(t)
	opts, err := parseFlags([]string{"-lang", "en", "-facets"}, srv.URL)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), newSession(srv.URL), opts, &out))

	assert.Contains(t, out.String(), "Audi")
	assert.Contains(t, out.String(), "3 cars")
}

func TestRun_UnreachableProxyStillRenders(t *testing.T) {
	opts, err := parseFlags(nil, "http://127.0.0.1:1")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), newSession("http://127.0.0.1:1"), opts, &out))
	assert.Contains(t, out.String(), "共 0 辆")
}
