package bitable

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeFeishu imitates the token and records endpoints
type fakeFeishu struct {
	mu            sync.Mutex
	tokenCalls    int
	recordCalls   int
	rejectFirst   bool
	recordsStatus int
	recordsBody   string
	lastAuth      string
	lastQuery     string
	lastPath      string
}

func (f *fakeFeishu) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/open-apis/auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req tokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		f.tokenCalls++
		n := f.tokenCalls
		f.mu.Unlock()

		if req.AppSecret != "secret" {
			json.NewEncoder(w).Encode(map[string]any{"code": 10014, "msg": "app secret invalid"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code":                0,
			"msg":                 "ok",
			"tenant_access_token": "tok-" + string(rune('0'+n)),
			"expire":              7200,
		})
	})

	mux.HandleFunc("/open-apis/bitable/v1/apps/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.recordCalls++
		call := f.recordCalls
		f.lastAuth = r.Header.Get("Authorization")
		f.lastQuery = r.URL.RawQuery
		f.lastPath = r.URL.Path
		f.mu.Unlock()

		if f.rejectFirst && call == 1 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":99991663,"msg":"Invalid access token for authorization."}`))
			return
		}
		if f.recordsStatus != 0 {
			w.WriteHeader(f.recordsStatus)
		}
		w.Write([]byte(f.recordsBody))
	})

	return mux
}

func newTestClient(t *testing.T, fake *fakeFeishu, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	return NewClient(cfg, zap.NewNop(), WithClock(func() time.Time { return epoch }))
}

var testConfig = Config{AppID: "cli_app", AppSecret: "secret", AppToken: "bascnApp", TableID: "tblCars"}

func TestListRecords_Success(t *testing.T) {
	fake := &fakeFeishu{recordsBody: `{"code":0,"msg":"success","data":{"has_more":false,"total":2,"items":[
		{"record_id":"rec1","fields":{"Model Name":"X5"}},
		{"record_id":"rec2","fields":{"Model Name":"A6L"}}
	]}}`}
	client := newTestClient(t, fake, testConfig)

	records, err := client.ListRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec1", records[0].RecordID)
	assert.Equal(t, "X5", records[0].Fields["Model Name"])

	assert.Equal(t, "Bearer tok-1", fake.lastAuth)
	assert.Equal(t, "page_size=100", fake.lastQuery)
	assert.Equal(t, "/open-apis/bitable/v1/apps/bascnApp/tables/tblCars/records", fake.lastPath)

	// token is cached between calls
	_, err = client.ListRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.tokenCalls)
}

func TestListRecords_EmptyTableIsEmptySlice(t *testing.T) {
	fake := &fakeFeishu{recordsBody: `{"code":0,"msg":"success","data":{"has_more":false,"total":0}}`}
	client := newTestClient(t, fake, testConfig)

	records, err := client.ListRecords(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestListRecords_TokenRejectedIsRetriedOnce(t *testing.T) {
	fake := &fakeFeishu{rejectFirst: true, recordsBody: `{"code":0,"data":{"items":[{"record_id":"rec1","fields":{}}]}}`}
	client := newTestClient(t, fake, testConfig)

	records, err := client.ListRecords(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 2, fake.tokenCalls)
	assert.Equal(t, "Bearer tok-2", fake.lastAuth)
}

func TestListRecords_ProviderError(t *testing.T) {
	fake := &fakeFeishu{recordsBody: `{"code":91402,"msg":"NOTEXIST"}`}
	client := newTestClient(t, fake, testConfig)

	_, err := client.ListRecords(context.Background())

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 91402, perr.Code)
	assert.Equal(t, "Feishu Error 91402: NOTEXIST", err.Error())
}

func TestListRecords_UndecodableErrorStatus(t *testing.T) {
	fake := &fakeFeishu{recordsStatus: http.StatusBadGateway, recordsBody: `<html>bad gateway</html>`}
	client := newTestClient(t, fake, testConfig)

	_, err := client.ListRecords(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestListRecords_BadCredentials(t *testing.T) {
	cfg := testConfig
	cfg.AppSecret = "wrong"
	client := newTestClient(t, &fakeFeishu{}, cfg)

	_, err := client.ListRecords(context.Background())
	assert.ErrorContains(t, err, "app secret invalid")
}

func TestListRecords_NotConfigured(t *testing.T) {
	for _, cfg := range []Config{
		{},
		{AppID: "a", AppSecret: "s", AppToken: "t"},
		{AppID: "a", AppToken: "t", TableID: "x"},
	} {
		fake := &fakeFeishu{}
		client := newTestClient(t, fake, cfg)

		_, err := client.ListRecords(context.Background())
		assert.ErrorIs(t, err, ErrNotConfigured)
		assert.Zero(t, fake.tokenCalls, "no network call when unconfigured")
	}
}

func TestNewClient_PageSizeIsCapped(t *testing.T) {
	cfg := testConfig
	cfg.PageSize = 500
	fake := &fakeFeishu{recordsBody: `{"code":0,"data":{"items":[]}}`}
	client := newTestClient(t, fake, cfg)

	_, err := client.ListRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "page_size=100", fake.lastQuery)
}

func TestOpenImage(t *testing.T) {
	fake := &fakeFeishu{}
	api := httptest.NewServer(fake.handler(t))
	t.Cleanup(api.Close)

	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img.jpg":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			assert.Equal(t, imageUserAgent, r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpeg-bytes"))
		case "/moved":
			http.Redirect(w, r, "https://cdn.example.com/final.jpg", http.StatusFound)
		}
	}))
	t.Cleanup(media.Close)

	cfg := testConfig
	cfg.BaseURL = api.URL
	client := NewClient(cfg, zap.NewNop(), WithClock(func() time.Time { return epoch }))

	resp, err := client.OpenImage(context.Background(), media.URL+"/img.jpg")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "jpeg-bytes", string(body))

	resp, err = client.OpenImage(context.Background(), media.URL+"/moved")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode, "redirects are not followed")
	assert.Equal(t, "https://cdn.example.com/final.jpg", resp.Header.Get("Location"))
}

func TestOpenImage_RequiresCredentials(t *testing.T) {
	client := NewClient(Config{}, zap.NewNop())
	_, err := client.OpenImage(context.Background(), "https://open.feishu.cn/x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestOpenImage_UnauthorizedIsRetriedWithFreshToken(t *testing.T) {
	fake := &fakeFeishu{}
	api := httptest.NewServer(fake.handler(t))
	t.Cleanup(api.Close)

	var seen []string
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		if len(seen) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("ok"))
	}))
	t.Cleanup(media.Close)

	cfg := testConfig
	cfg.BaseURL = api.URL
	client := NewClient(cfg, zap.NewNop(), WithClock(func() time.Time { return epoch }))

	resp, err := client.OpenImage(context.Background(), media.URL+"/img.png")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Bearer tok-1", "Bearer tok-2"}, seen)
}

type recordingMedia struct {
	requests []*http.Request
}

func (m *recordingMedia) Do(req *http.Request) (*http.Response, error) {
	m.requests = append(m.requests, req)
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"image/webp"}},
		Body:       io.NopCloser(strings.NewReader("webp")),
	}, nil
}

func TestOpenImage_UsesMediaClient(t *testing.T) {
	fake := &fakeFeishu{}
	api := httptest.NewServer(fake.handler(t))
	t.Cleanup(api.Close)

	media := &recordingMedia{}
	cfg := testConfig
	cfg.BaseURL = api.URL
	client := NewClient(cfg, zap.NewNop(), WithMediaClient(media))

	resp, err := client.OpenImage(context.Background(), "https://open.feishu.cn/open-apis/drive/v1/medias/box/download")
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, media.requests, 1)
	assert.Equal(t, "Bearer tok-1", media.requests[0].Header.Get("Authorization"))
	assert.Equal(t, imageUserAgent, media.requests[0].Header.Get("User-Agent"))
	assert.Equal(t, 1, fake.tokenCalls, "token endpoint still goes through the API client")
}

func TestNilLoggerDefaultsToNop(t *testing.T) {
	assert.NotPanics(t, func() {
		client := NewClient(Config{}, nil)
		_, err := client.ListRecords(context.Background())
		assert.ErrorIs(t, err, ErrNotConfigured)

		r := &countingRefresher{ttl: time.Hour}
		cache := NewTokenCache(nil, r.refresh, DefaultRefreshMargin, nil)
		_, err = cache.GetOrRefresh(context.Background(), epoch)
		assert.NoError(t, err)
	})
}
