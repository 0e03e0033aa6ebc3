package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestReadiness_AllHealthy(t *testing.T) {
	h := NewHealthDependenciesHandler(map[string]DependencyCheck{
		"store": func(context.Context) error { return nil },
	})

	c, rec := newJSONContext(http.MethodGet, "/health/ready", "")
	if err := h.Readiness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decodeBody(t, rec); resp["status"] != "ok" {
		t.Fatalf("unexpected status: %v", resp["status"])
	}
}

func TestReadiness_Degraded(t *testing.T) {
	h := NewHealthDependenciesHandler(map[string]DependencyCheck{
		"store": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})

	c, rec := newJSONContext(http.MethodGet, "/health/ready", "")
	_ = h.Readiness(c)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	resp := decodeBody(t, rec)
	deps := resp["dependencies"].(map[string]any)
	redis := deps["redis"].(map[string]any)
	if resp["status"] != "degraded" || redis["error"] != "connection refused" {
		t.Fatalf("unexpected readiness payload: %+v", resp)
	}
}
