// Package catalog loads the showroom inventory through the internal proxy and
// answers filter and sort queries over it.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"car-showroom/internal/domain"
	"car-showroom/internal/transform"

	"go.uber.org/zap"
)

// CarsPath is the proxy endpoint serving raw records
const CarsPath = "/api/cars"

// maxEnvelopeBytes bounds the proxy response body the fetcher will read
const maxEnvelopeBytes = 16 << 20

var (
	ErrUnexpectedStatus = errors.New("unexpected status from catalog endpoint")
	ErrAPI              = errors.New("catalog endpoint reported an error")
)

// HTTPClient performs HTTP requests. *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Envelope is the response shape of the cars endpoint
type Envelope struct {
	Code int                `json:"code"`
	Data []domain.RawRecord `json:"data,omitempty"`
	Msg  string             `json:"msg,omitempty"`
}

// Fetcher retrieves raw records from the proxy and turns them into cars
type Fetcher struct {
	endpoint    string
	client      HTTPClient
	transformer *transform.Transformer
	logger      *zap.Logger
}

// NewFetcher creates a Fetcher for the service at baseURL
func NewFetcher(baseURL string, client HTTPClient, transformer *transform.Transformer, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if transformer == nil {
		transformer = transform.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		endpoint:    strings.TrimRight(baseURL, "/") + CarsPath,
		client:      client,
		transformer: transformer,
		logger:      logger.With(zap.String("component", "catalog_fetcher")),
	}
}

// FetchAll returns every car in source order. Failures are logged and yield
// an empty slice; it never returns an error.
func (f *Fetcher) FetchAll(ctx context.Context) []domain.Car {
	cars, err := f.Fetch(ctx)
	if err != nil {
		return []domain.Car{}
	}
	return cars
}

// Fetch is FetchAll that also reports why a fetch came back empty
func (f *Fetcher) Fetch(ctx context.Context) ([]domain.Car, error) {
	records, err := f.fetchRecords(ctx)
	if err != nil {
		f.logger.Error("Error fetching cars",
			zap.String("endpoint", f.endpoint),
			zap.Error(err),
		)
		return []domain.Car{}, err
	}

	cars := f.transformer.TransformAll(records)
	f.logger.Debug("Fetched cars", zap.Int("count", len(cars)))
	return cars, nil
}

func (f *Fetcher) fetchRecords(ctx context.Context) ([]domain.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// the proxy still answers with an envelope on failure
		var env Envelope
		if json.Unmarshal(body, &env) == nil && env.Msg != "" {
			return nil, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, env.Msg)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("%w: code %d: %s", ErrAPI, env.Code, env.Msg)
	}

	return env.Data, nil
}
