package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func limitedHandler(t *testing.T, limit int) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	config := RateLimitConfig{RequestsPerWindow: limit, Window: time.Minute, KeyPrefix: "test"}
	return RateLimitMiddleware(rdb, config, zap.NewNop())(okHandler()), mr
}

func hit(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/image?url=x", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// Feature: car-showroom, Property: the limiter admits exactly the window quota
func TestProperty_RateLimitingBlocksExcessiveRequests(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests beyond the quota get 429", prop.ForAll(
		func(limit int, excess int) bool {
			h, mr := limitedHandler(t, limit)
			defer mr.FlushAll()

			ok, blocked := 0, 0
			for i := 0; i < limit+excess; i++ {
				switch hit(h, "192.168.1.100:5000").Code {
				case http.StatusOK:
					ok++
				case http.StatusTooManyRequests:
					blocked++
				}
			}
			return ok == limit && blocked == excess
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRateLimit_KeyedByIPNotPort(t *testing.T) {
	h, mr := limitedHandler(t, 1)

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1111").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:2222").Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1111").Code)

	assert.True(t, mr.Exists("test:10.0.0.1"))
	assert.Equal(t, time.Minute, mr.TTL("test:10.0.0.1"))
}

func TestRateLimit_Headers(t *testing.T) {
	h, _ := limitedHandler(t, 2)

	w := hit(h, "10.0.0.3:1")
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	hit(h, "10.0.0.3:1")
	w = hit(h, "10.0.0.3:1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_WindowResets(t *testing.T) {
	h, mr := limitedHandler(t, 1)

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.4:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.4:1").Code)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.4:1").Code)
}

func TestRateLimit_RedisDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	h := RateLimitMiddleware(rdb, RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute}, zap.NewNop())(okHandler())

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(h, "10.0.0.5:1").Code)
	}
}

func TestRateLimit_ZeroQuotaDisables(t *testing.T) {
	h, mr := limitedHandler(t, 0)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(h, "10.0.0.6:1").Code)
	}
	assert.Empty(t, mr.Keys())
}
