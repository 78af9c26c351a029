package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"car-showroom/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ImageSource opens provider-hosted media with server-side credentials.
// Redirect responses must be returned, not followed.
type ImageSource interface {
	OpenImage(ctx context.Context, target string) (*http.Response, error)
}

// DefaultCacheMaxAge is the browser cache lifetime of proxied images
const DefaultCacheMaxAge = time.Hour

// upstream error bodies are echoed back, bounded
const maxErrorBody = 64 << 10

var errHostNotAllowed = errors.New("image host not allowed")

type imageQuery struct {
	URL string `validate:"required,http_url"`
}

// ImageConfig controls which hosts may be proxied and for how long
// browsers cache the result
type ImageConfig struct {
	// AllowedHosts lists exact hosts, or ".suffix" entries matching any
	// subdomain. Empty allows every host.
	AllowedHosts []string
	CacheMaxAge  time.Duration
}

// ImageHandler proxies provider images so the bearer token stays on the
// server
type ImageHandler struct {
	source ImageSource
	config ImageConfig
	logger *zap.Logger
}

// NewImageHandler creates a new ImageHandler
func NewImageHandler(source ImageSource, config ImageConfig, logger *zap.Logger) *ImageHandler {
	if config.CacheMaxAge <= 0 {
		config.CacheMaxAge = DefaultCacheMaxAge
	}
	return &ImageHandler{
		source: source,
		config: config,
		logger: logger,
	}
}

// RegisterRoutes registers the image route
func (h *ImageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/image", h.ProxyImage)
}

// ProxyImage streams the image at ?url= to the client
func (h *ImageHandler) ProxyImage(w http.ResponseWriter, r *http.Request) {
	q := imageQuery{URL: r.URL.Query().Get("url")}
	if err := middleware.ValidateRequest(q); err != nil {
		h.logger.Debug("Image request validation failed", zap.Error(err))
		middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
		return
	}

	target, err := url.Parse(q.URL)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid url")
		return
	}
	if err := h.checkHost(target.Hostname()); err != nil {
		h.logger.Warn("Refused image host", zap.String("host", target.Hostname()))
		middleware.RespondWithErrorDetails(w, http.StatusForbidden, err.Error(), map[string]any{
			"host": target.Hostname(),
		})
		return
	}

	resp, err := h.source.OpenImage(r.Context(), target.String())
	if err != nil {
		h.logger.Error("Image proxy failed", zap.String("url", target.String()), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to fetch image")
		return
	}
	defer resp.Body.Close()

	switch {
	case isRedirect(resp.StatusCode) && resp.Header.Get("Location") != "":
		http.Redirect(w, r, resp.Header.Get("Location"), http.StatusFound)

	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		h.logger.Warn("Upstream image error",
			zap.Int("status", resp.StatusCode),
			zap.String("url", target.String()),
		)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		fmt.Fprintf(w, "Feishu Error: %s", body)

	default:
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			w.Header().Set("Content-Length", cl)
		}
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(h.config.CacheMaxAge.Seconds())))
		w.WriteHeader(http.StatusOK)

		if _, err := io.Copy(w, resp.Body); err != nil {
			// headers are gone, nothing left to report to the client
			h.logger.Warn("Image stream interrupted", zap.Error(err))
		}
	}
}

func (h *ImageHandler) checkHost(host string) error {
	if len(h.config.AllowedHosts) == 0 {
		return nil
	}
	host = strings.ToLower(host)
	for _, allowed := range h.config.AllowedHosts {
		allowed = strings.ToLower(allowed)
		if strings.HasPrefix(allowed, ".") {
			if strings.HasSuffix(host, allowed) || host == allowed[1:] {
				return nil
			}
			continue
		}
		if host == allowed {
			return nil
		}
	}
	return errHostNotAllowed
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}
