package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmkeith/dungeonmaster/internal/storage"
)

func TestHealthHandler(t *testing.T) {
	store := storage.NewMockStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHealthHandler(map[string]Pinger{"sqlite": store}, logger)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Service != "dungeonmaster" {
		t.Errorf("service = %q, want dungeonmaster", resp.Service)
	}
	if resp.Components["sqlite"] != "healthy" {
		t.Errorf("components = %v", resp.Components)
	}
}

func TestHealthHandlerDegraded(t *testing.T) {
	store := storage.NewMockStore()
	store.PingErr = errors.New("disk on fire")
	healthy := storage.NewMockStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHealthHandler(map[string]Pinger{"sqlite": store, "redis": healthy}, logger)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if resp.Components["sqlite"] != "unhealthy" || resp.Components["redis"] != "healthy" {
		t.Errorf("components = %v", resp.Components)
	}
}
