package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCorsMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		origin     string
		method     string
		status     int
		wantOrigin string
		wantCode   int
		wantVary   bool
	}{
		{"success any origin", "", http.MethodGet, http.StatusOK, "*", http.StatusOK, false},
		{"error keeps headers", "", http.MethodGet, http.StatusNotFound, "*", http.StatusNotFound, false},
		{"preflight", "", http.MethodOptions, http.StatusOK, "*", http.StatusNoContent, false},
		{"fixed origin", "http://ui.local:8080", http.MethodGet, http.StatusOK, "http://ui.local:8080", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := corsMiddleware(tt.origin, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(tt.status)
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, "/health", nil))

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := rec.Header().Get("Vary") == "Origin"; got != tt.wantVary {
				t.Errorf("Vary: Origin = %v, want %v", got, tt.wantVary)
			}
			if tt.method == http.MethodOptions && called {
				t.Error("handler should not be called for preflight")
			}
		})
	}
}
