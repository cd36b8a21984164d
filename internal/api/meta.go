package api

import (
	"net/http"
	"time"
)

// ServiceName identifies the service in health responses.
const ServiceName = "integration-api"

// Version is the API version reported by the root endpoint.
const Version = "1.0.0"

var endpoints = map[string]string{
	"GET /items":         "list all items",
	"GET /items/{id}":    "get an item by id",
	"POST /items":        "create an item",
	"PUT /items/{id}":    "update an item",
	"DELETE /items/{id}": "delete an item",
}

// Root handles GET /.
func Root(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"message":   "Integration API for item records",
		"version":   Version,
		"endpoints": endpoints,
	})
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// NotFound answers any request that matched no route.
func NotFound(w http.ResponseWriter, r *http.Request) {
	jsonError(w, http.StatusNotFound, "route not found")
}
