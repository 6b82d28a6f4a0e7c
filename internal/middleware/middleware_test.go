package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	apperrors "filer-api/internal/errors"
	"filer-api/internal/models"
)

type userMap map[string]*models.User

func (m userMap) GetUserByAPIKey(_ context.Context, key string) (*models.User, error) {
	if key == "broken" {
		return nil, errors.New("firestore down")
	}
	u, ok := m[key]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

func TestAuthenticate(t *testing.T) {
	users := userMap{"k1": {ID: "alice", IsStaff: true}}

	var seen *models.User
	h := Authenticate(users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
	}))

	tests := []struct {
		name       string
		key        string
		wantStatus int
		wantUser   string
	}{
		{name: "no key", wantStatus: http.StatusOK, wantUser: ""},
		{name: "valid key", key: "k1", wantStatus: http.StatusOK, wantUser: "alice"},
		{name: "unknown key", key: "nope", wantStatus: http.StatusUnauthorized},
		{name: "lookup error", key: "broken", wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/image", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && seen.ID != tt.wantUser {
				t.Errorf("user = %q, want %q", seen.ID, tt.wantUser)
			}
		})
	}
}

func TestLookupUser(t *testing.T) {
	users := userMap{"k1": {ID: "alice"}}
	ctx := context.Background()

	if u, err := lookupUser(ctx, users, "k1"); err != nil || u.ID != "alice" {
		t.Errorf("lookupUser(k1) = %v, %v", u, err)
	}
	if _, err := lookupUser(ctx, users, "nope"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("unknown key error = %v, want unauthorized", err)
	}
	if _, err := lookupUser(ctx, users, "broken"); err == nil || errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("lookup failure error = %v, want non-auth error", err)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("other client got %d", rr.Code)
	}
}

func TestRateLimiterForgetsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	start := time.Now()
	rl.getVisitor("a", start)
	rl.getVisitor("b", start.Add(visitorTTL+time.Second))

	if _, ok := rl.visitors["a"]; ok {
		t.Error("idle visitor not removed")
	}
}

func TestRateLimiterSweepsOncePerInterval(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	start := time.Now()
	rl.getVisitor("a", start)
	rl.visitors["stale"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: start.Add(-time.Hour)}

	rl.getVisitor("b", start.Add(time.Second))
	if _, ok := rl.visitors["stale"]; !ok {
		t.Error("swept again before visitorTTL elapsed")
	}

	rl.getVisitor("c", start.Add(visitorTTL))
	if _, ok := rl.visitors["stale"]; ok {
		t.Error("stale visitor kept after visitorTTL")
	}
	if _, ok := rl.visitors["a"]; !ok {
		t.Error("recent visitor dropped")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	if got := clientIP(req); got != "192.0.2.1" {
		t.Errorf("clientIP = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("clientIP with forwarded = %q", got)
	}
}

func TestCORS(t *testing.T) {
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), []string{"https://a.example"})

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://a.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Header().Get("Access-Control-Allow-Origin") != "https://a.example" {
		t.Errorf("preflight: code=%d origin=%q", rr.Code, rr.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusTeapot || rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("disallowed origin: code=%d origin=%q", rr.Code, rr.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRequestIDAndLogger(t *testing.T) {
	var id string
	h := RequestID(Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if id == "" || rr.Header().Get("X-Request-ID") != id {
		t.Errorf("request id %q, header %q", id, rr.Header().Get("X-Request-ID"))
	}
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d", rr.Code)
	}
}
