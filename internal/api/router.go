package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/erazemk/integration-api/internal/model"
)

// ItemStore is the persistence capability the handlers depend on. Get and
// Update return a nil item when the id does not exist.
type ItemStore interface {
	Create(ctx context.Context, in model.NewItem) (*model.Item, error)
	Get(ctx context.Context, id int64) (*model.Item, error)
	List(ctx context.Context) ([]model.Item, error)
	Update(ctx context.Context, id int64, patch model.ItemPatch) (*model.Item, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// NewRouter creates the HTTP handler with all endpoints and middleware.
func NewRouter(items ItemStore, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(reg)

	itemsHandler := &ItemsHandler{Store: items, Logger: logger}

	mux.HandleFunc("GET /{$}", Root)
	mux.HandleFunc("GET /health", Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /items", itemsHandler.List)
	mux.HandleFunc("POST /items", itemsHandler.Create)
	mux.HandleFunc("GET /items/{id}", itemsHandler.Get)
	mux.HandleFunc("PUT /items/{id}", itemsHandler.Update)
	mux.HandleFunc("DELETE /items/{id}", itemsHandler.Delete)

	// Everything else, for any method.
	mux.HandleFunc("/", NotFound)

	// RequestIDMiddleware replaces the request, so it sits outside the
	// middleware that reads r.Pattern after the mux has run.
	var handler http.Handler = mux
	handler = RecoverMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)
	handler = LoggingMiddleware(logger)(handler)
	handler = RequestIDMiddleware(handler)
	return handler
}
