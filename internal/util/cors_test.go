package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name    string
		allowed []string
		method  string
		origin  string
		want    string
		status  int
	}{
		{name: "empty allowlist is wildcard", method: http.MethodGet, origin: "http://a.test", want: "*", status: http.StatusOK},
		{name: "allowed origin echoed", allowed: []string{"http://a.test/"}, method: http.MethodGet, origin: "http://a.test", want: "http://a.test", status: http.StatusOK},
		{name: "unknown origin gets no header", allowed: []string{"http://a.test"}, method: http.MethodGet, origin: "http://evil.test", want: "", status: http.StatusOK},
		{name: "preflight short-circuits", method: http.MethodOptions, origin: "http://a.test", want: "*", status: http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/product/list", nil)
			req.Header.Set("Origin", tc.origin)
			rec := httptest.NewRecorder()
			WithCORS(tc.allowed, next).ServeHTTP(rec, req)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.want {
				t.Fatalf("allow-origin = %q, want %q", got, tc.want)
			}
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
}
