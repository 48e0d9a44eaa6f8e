package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testBoundary(appOrigin string, production bool) *Boundary {
	return &Boundary{
		AppOrigin:  appOrigin,
		Production: production,
		Throttle:   NewIPThrottle(1000, time.Minute, time.Hour),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

var passHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestBoundary_ReadsPassUntouched(t *testing.T) {
	b := testBoundary("https://campfire.example", true)
	h := b.Wrap(passHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET with foreign Origin got %d, want 200", rec.Code)
	}
}

func TestBoundary_CrossOriginMutationBlocked(t *testing.T) {
	b := testBoundary("https://campfire.example", true)
	h := b.Wrap(passHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("cross-origin POST got %d, want 403", rec.Code)
	}
}

func TestBoundary_MatchingOriginPasses(t *testing.T) {
	b := testBoundary("https://campfire.example", true)
	h := b.Wrap(passHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
	req.Header.Set("Origin", "https://campfire.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("same-origin POST got %d, want 200", rec.Code)
	}
}

func TestBoundary_AbsentOriginPasses(t *testing.T) {
	b := testBoundary("https://campfire.example", true)
	h := b.Wrap(passHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("POST without Origin got %d, want 200", rec.Code)
	}
}

func TestBoundary_BearerSkipsOriginCheck(t *testing.T) {
	b := testBoundary("https://campfire.example", true)
	h := b.Wrap(passHandler)

	// Scheme matching is case-insensitive, like the credential resolver's.
	for _, scheme := range []string{"Bearer", "bearer", "BEARER"} {
		req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
		req.Header.Set("Origin", "https://evil.example")
		req.Header.Set("Authorization", scheme+" campfire_whatever")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s POST with foreign Origin got %d, want 200", scheme, rec.Code)
		}
	}
}

func TestBoundary_AuthRoutesSkipOriginCheck(t *testing.T) {
	b := testBoundary("https://campfire.example", true)
	h := b.Wrap(passHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/magic-link", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("auth route POST with foreign Origin got %d, want 200", rec.Code)
	}
}

func TestBoundary_UnconfiguredOrigin(t *testing.T) {
	cases := []struct {
		name       string
		production bool
		want       int
	}{
		{"production fails closed", true, http.StatusInternalServerError},
		{"development passes", false, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := testBoundary("", tc.production)
			h := b.Wrap(passHandler)

			req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
			req.Header.Set("Origin", "https://somewhere.example")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Errorf("got %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestBoundary_GlobalThrottle(t *testing.T) {
	b := testBoundary("https://campfire.example", true)
	b.Throttle = NewIPThrottle(2, time.Minute, time.Hour)
	h := b.Wrap(passHandler)

	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
		req.RemoteAddr = "10.0.0.7:1234"
		req.Header.Set("Origin", "https://campfire.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do(); code != http.StatusOK {
		t.Fatalf("first mutation got %d", code)
	}
	if code := do(); code != http.StatusOK {
		t.Fatalf("second mutation got %d", code)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
	req.RemoteAddr = "10.0.0.7:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third mutation got %d, want 429", rec.Code)
	}
	if ra := rec.Header().Get("Retry-After"); ra == "" {
		t.Error("429 without Retry-After header")
	}

	// A different IP has its own budget.
	req = httptest.NewRequest(http.MethodPost, "/api/posts", nil)
	req.RemoteAddr = "10.0.0.8:1234"
	req.Header.Set("Origin", "https://campfire.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other IP got %d, want 200", rec.Code)
	}
}

func TestIPThrottle_EvictsIdleEntries(t *testing.T) {
	tt := NewIPThrottle(10, time.Minute, time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tt.now = func() time.Time { return now }

	tt.Allow("a")
	now = now.Add(2 * time.Minute)
	tt.Allow("b")

	tt.mu.Lock()
	_, aKept := tt.visitors["a"]
	_, bKept := tt.visitors["b"]
	tt.mu.Unlock()

	if aKept {
		t.Error("idle entry survived eviction")
	}
	if !bKept {
		t.Error("active entry was evicted")
	}
}
