package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSetMaxBodyBytes_DefaultOnNonPositive(t *testing.T) {
	SetMaxBodyBytes(10)
	if maxBodyBytes != 10 {
		t.Fatalf("got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("got %d", maxBodyBytes)
	}
}

func TestSetPromptTimeout_ClampsNegative(t *testing.T) {
	defer SetPromptTimeout(0)
	SetPromptTimeout(-time.Second)
	if promptTimeout != 0 {
		t.Fatalf("got %v", promptTimeout)
	}
	SetPromptTimeout(time.Second)
	if promptTimeout != time.Second {
		t.Fatalf("got %v", promptTimeout)
	}
}

func TestCORS_Preflight(t *testing.T) {
	SetCORSOptions(true, []string{"https://app.example"}, []string{"GET", "POST"}, []string{"Content-Type"})
	defer SetCORSOptions(false, nil, nil, nil)
	h := NewMux(&mockService{}, &mockHost{})

	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := serve(h, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("allow-origin=%q status=%d", got, w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	if got := serve(h, req).Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

func TestCORS_DisabledAddsNoHeaders(t *testing.T) {
	h := NewMux(&mockService{}, &mockHost{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example")
	if got := serve(h, req).Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

func TestSwaggerDisabledByDefault(t *testing.T) {
	h := NewMux(&mockService{}, &mockHost{})
	if w := serve(h, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}
