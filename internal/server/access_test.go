package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		referer string
		strict  bool
		want    bool
	}{
		{"exact origin", "https://example.ge", "", false, true},
		{"subdomain", "https://www.example.ge", "", false, true},
		{"referer fallback", "", "https://example.ge/careers", false, true},
		{"missing headers", "", "", false, false},
		{"other origin", "https://evil.test", "", false, false},
		{"substring smuggled", "https://evil.test/?x=example.ge", "", false, true},
		{"suffix lookalike", "https://notexample.ge", "", false, true},
		{"strict exact", "https://example.ge", "", true, true},
		{"strict subdomain", "https://jobs.example.ge:8443", "", true, true},
		{"strict smuggled", "https://evil.test/?x=example.ge", "", true, false},
		{"strict lookalike", "https://notexample.ge", "", true, false},
		{"strict referer", "", "https://example.ge/form", true, true},
		{"strict garbage", "::not a url", "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AccessConfig{AllowedDomain: "example.ge", Strict: tt.strict}
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if tt.referer != "" {
				r.Header.Set("Referer", tt.referer)
			}
			if got := a.originAllowed(r); got != tt.want {
				t.Fatalf("originAllowed(origin=%q, referer=%q, strict=%v) = %v, want %v",
					tt.origin, tt.referer, tt.strict, got, tt.want)
			}
		})
	}
}

func TestOriginGuard_RejectsBeforeHandler(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"submit", multipartRequest(t, "/submit", applicantFields, "cv", []formFile{{"cv.pdf", "x"}})},
		{"upload", multipartRequest(t, "/upload", serviceFields(), "file", []formFile{{"a.txt", "a"}})},
		{"create vacancy", func() *http.Request {
			r := newRequest(http.MethodPost, "/api/vacancies", strings.NewReader(`{"title":"x"}`))
			r.Header.Set("Content-Type", "application/json")
			return r
		}()},
		{"login", newRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"admin","password":"s3cret"}`))},
		{"allowed ips", newRequest(http.MethodGet, "/api/allowed-ips", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Header.Set("Origin", "https://evil.test")
			rr := env.do(tt.req)
			if rr.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), "Access denied") {
				t.Fatalf("unexpected body: %s", rr.Body.String())
			}
		})
	}

	for _, collection := range []string{"applicants", "form_data", "vacancies"} {
		if n := countAll(t, env.store, collection); n != 0 {
			t.Errorf("%s: expected no records, got %d", collection, n)
		}
	}
	if len(env.mail.sent()) != 0 {
		t.Error("expected no mail for rejected requests")
	}
	entries, err := os.ReadDir(env.area.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no stored files, got %d", len(entries))
	}
}

func TestOriginGuard_StrictMode(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Access.Strict = true })

	req := newRequest(http.MethodGet, "/api/vacancies", nil)
	req.Header.Set("Origin", "https://evil.test/?x=example.ge")
	if rr := env.do(req); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 in strict mode, got %d", rr.Code)
	}

	req = newRequest(http.MethodGet, "/api/vacancies", nil)
	if rr := env.do(req); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for allowed origin, got %d", rr.Code)
	}
}

func TestUnguardedRoutes(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/", "/health", "/ready", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if rr := env.do(req); rr.Code != http.StatusOK {
			t.Errorf("GET %s without origin: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := env.do(req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected preflight 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "https://evil.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr = env.do(req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin must not be allowed, got %q", got)
	}
}

func TestCORSOriginOverride(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Access.CORSOrigin = "https://www.example.ge" })

	req := newRequest(http.MethodGet, "/api/allowed-ips", nil)
	req.Header.Set("Origin", "https://www.example.ge")
	rr := env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://www.example.ge" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestAllowedIPs(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(newRequest(http.MethodGet, "/api/allowed-ips", nil))
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != `{"allowedIPs":["10.0.0.1"]}` {
		t.Fatalf("allowed-ips: %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(newRequest(http.MethodGet, "/api/allowed-ips2", nil))
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != `{"allowedIPs2":["10.0.0.2","10.0.0.3"]}` {
		t.Fatalf("allowed-ips2: %d %s", rr.Code, rr.Body.String())
	}

	empty := newTestEnv(t, func(c *Config) { c.AllowedIPs = nil })
	rr = empty.do(newRequest(http.MethodGet, "/api/allowed-ips", nil))
	if strings.TrimSpace(rr.Body.String()) != `{"allowedIPs":[]}` {
		t.Fatalf("empty list should encode as [], got %s", rr.Body.String())
	}
}
