package transport

import (
	"context"
	"net/http"

	"car-showroom/internal/domain"
	"car-showroom/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RecordSource lists the raw catalog records
type RecordSource interface {
	ListRecords(ctx context.Context) ([]domain.RawRecord, error)
}

type carsResponse struct {
	Code int                `json:"code"`
	Data []domain.RawRecord `json:"data"`
}

type carsErrorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// CarsHandler serves the raw record list
type CarsHandler struct {
	source RecordSource
	logger *zap.Logger
}

// NewCarsHandler creates a new CarsHandler
func NewCarsHandler(source RecordSource, logger *zap.Logger) *CarsHandler {
	return &CarsHandler{
		source: source,
		logger: logger,
	}
}

// RegisterRoutes registers the cars route
func (h *CarsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/cars", h.ListCars)
}

// ListCars answers {code:0,data:[...]} or, on any failure, 500 {code:500,msg}
func (h *CarsHandler) ListCars(w http.ResponseWriter, r *http.Request) {
	records, err := h.source.ListRecords(r.Context())
	if err != nil {
		h.logger.Error("Failed to list records", zap.Error(err))
		middleware.RespondWithJSON(w, http.StatusInternalServerError, carsErrorResponse{
			Code: http.StatusInternalServerError,
			Msg:  err.Error(),
		})
		return
	}

	if records == nil {
		records = []domain.RawRecord{}
	}

	h.logger.Debug("Served records", zap.Int("count", len(records)))
	middleware.RespondWithJSON(w, http.StatusOK, carsResponse{Code: 0, Data: records})
}
