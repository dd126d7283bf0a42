package ratelim

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
)

func TestLimitThrottlesBurst(t *testing.T) {
	rl := NewRateLimiter()
	handler := rl.Limit(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
	})

	var ok, throttled int
	var lastThrottled *httptest.ResponseRecorder
	for i := 0; i < 30; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/reservations", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler(rec, req, nil)
		switch rec.Code {
		case http.StatusOK:
			ok++
		case http.StatusTooManyRequests:
			throttled++
			lastThrottled = rec
		}
	}

	if ok == 0 {
		t.Fatal("expected the burst allowance to let some requests through")
	}
	if throttled == 0 {
		t.Fatal("expected requests past the burst to be throttled")
	}

	// throttled responses use the JSON error shape
	var body map[string]string
	if err := json.Unmarshal(lastThrottled.Body.Bytes(), &body); err != nil {
		t.Fatalf("throttled body is not JSON: %v", err)
	}
	if body["error"] == "" {
		t.Fatal("expected an error field in the throttled response")
	}
}

func TestLimitIsPerIP(t *testing.T) {
	rl := NewRateLimiter()
	handler := rl.Limit(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
	})

	// exhaust one IP's bucket
	for i := 0; i < 30; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/reservations", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler(httptest.NewRecorder(), req, nil)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/reservations", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	handler(rec, req, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected a fresh IP to pass, got %d", rec.Code)
	}
}
