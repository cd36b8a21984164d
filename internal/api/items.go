package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erazemk/integration-api/internal/model"
	"github.com/erazemk/integration-api/internal/validate"
)

var tracer = otel.Tracer("integration-api/api")

// ItemsHandler handles item CRUD endpoints.
type ItemsHandler struct {
	Store  ItemStore
	Logger *zap.Logger
}

// List handles GET /items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "ListItems")
	defer span.End()

	items, err := h.Store.List(ctx)
	if err != nil {
		h.internalError(w, r, span, err, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	span.SetAttributes(attribute.Int("items.count", len(items)))
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "CreateItem")
	defer span.End()

	body, err := readBody(w, r)
	if err != nil {
		bodyError(w, err)
		return
	}

	req, err := validate.ParseCreate(body)
	if err != nil {
		h.rejectBody(w, err)
		return
	}

	item, err := h.Store.Create(ctx, req.NewItem())
	if err != nil {
		h.internalError(w, r, span, err, "failed to create item")
		return
	}

	span.SetAttributes(attribute.Int64("item.id", item.ID))
	h.Logger.Info("item created", zap.Int64("item_id", item.ID))
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "GetItem")
	defer span.End()

	id, ok := itemID(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("item.id", id))

	item, err := h.Store.Get(ctx, id)
	if err != nil {
		h.internalError(w, r, span, err, "failed to get item")
		return
	}
	if item == nil {
		notFound(w, id)
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /items/{id}. A missing item is reported before any
// problem with the body.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "UpdateItem")
	defer span.End()

	id, ok := itemID(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("item.id", id))

	existing, err := h.Store.Get(ctx, id)
	if err != nil {
		h.internalError(w, r, span, err, "failed to get item")
		return
	}
	if existing == nil {
		notFound(w, id)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		bodyError(w, err)
		return
	}

	req, err := validate.ParseUpdate(body)
	if err != nil {
		h.rejectBody(w, err)
		return
	}

	item, err := h.Store.Update(ctx, id, req.Patch)
	if err != nil {
		h.internalError(w, r, span, err, "failed to update item")
		return
	}
	if item == nil {
		// Deleted between the existence check and the write.
		notFound(w, id)
		return
	}

	h.Logger.Info("item updated", zap.Int64("item_id", id))
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "DeleteItem")
	defer span.End()

	id, ok := itemID(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("item.id", id))

	existing, err := h.Store.Get(ctx, id)
	if err != nil {
		h.internalError(w, r, span, err, "failed to get item")
		return
	}
	if existing == nil {
		notFound(w, id)
		return
	}

	removed, err := h.Store.Delete(ctx, id)
	if err != nil {
		h.internalError(w, r, span, err, "failed to delete item")
		return
	}
	if !removed {
		notFound(w, id)
		return
	}

	h.Logger.Info("item deleted", zap.Int64("item_id", id))
	jsonResponse(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("item %d deleted", id)})
}

// itemID parses the {id} path value, answering 422 when it is not a
// non-negative integer.
func itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 0 {
		validationError(w, validate.Errors{{Field: "id", Reason: "must be a non-negative integer"}})
		return 0, false
	}
	return id, true
}

func notFound(w http.ResponseWriter, id int64) {
	jsonError(w, http.StatusNotFound, fmt.Sprintf("item %d not found", id))
}

// rejectBody answers a failed Parse call.
func (h *ItemsHandler) rejectBody(w http.ResponseWriter, err error) {
	var errs validate.Errors
	if errors.As(err, &errs) {
		validationError(w, errs)
		return
	}
	validationError(w, validate.Errors{{Field: "body", Reason: err.Error()}})
}

// internalError logs err and answers with an opaque 500.
func (h *ItemsHandler) internalError(w http.ResponseWriter, r *http.Request, span trace.Span, err error, msg string) {
	span.RecordError(err)
	h.Logger.Error(msg,
		zap.String("request_id", RequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	jsonError(w, http.StatusInternalServerError, "internal server error")
}
