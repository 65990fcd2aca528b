package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		ping   pingFunc
		status int
		want   string
	}{
		{"database up", func(context.Context) error { return nil }, http.StatusOK, "ok"},
		{"database down", func(context.Context) error { return errors.New("connection refused") }, http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", NewHealthHandler(tt.ping).Health)

			rec := doRequest(r, http.MethodGet, "/health", "")

			assertStatus(t, rec, tt.status)
			if body := parseJSON(t, rec); body["status"] != tt.want {
				t.Errorf("expected status %q, got %v", tt.want, body["status"])
			}
		})
	}
}
