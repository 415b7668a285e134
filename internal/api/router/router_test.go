package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/innovar-labs/wavebox-widget/internal/embed"
)

func newTestRouter() http.Handler {
	return New(&Config{
		EmbedHandler:       embed.NewHandler("https://cdn.example/wavebox.js", "", nil),
		CORSAllowedOrigins: []string{"https://shop.example.com"},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})
}

func TestRoutes(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/widget.js", http.StatusOK, "data-slug"},
		{"/embed?slug=acme", http.StatusOK, `data-slug="acme"`},
		{"/healthz", http.StatusOK, `"ok"`},
		{"/metrics", http.StatusOK, ""},
		{"/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.wantStatus)
		}
		if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
			t.Errorf("%s: body missing %q", tt.path, tt.wantBody)
		}
	}
}

func TestCORSAppliedToEmbedPage(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/embed?slug=acme", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Fatalf("allow origin = %q", got)
	}
}
