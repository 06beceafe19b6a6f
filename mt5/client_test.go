package mt5

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradege/marketedgepros-sub001/config"
	"github.com/tradege/marketedgepros-sub001/logging"
)

func TestMain(m *testing.M) {
	if err := logging.InitLogger(false); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testClient(baseURL string) *Client {
	return NewClient(&config.Config{
		MT5APIBase:         baseURL,
		MT5APIUser:         "bridge",
		MT5APIPassword:     "secret",
		MT5MaxRetries:      2,
		MT5Timeout:         2 * time.Second,
		MT5RateLimitPerSec: 1000,
	})
}

// loginHandler answers the auth endpoint and delegates everything else.
func loginHandler(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/login" {
			var creds map[string]string
			_ = json.NewDecoder(r.Body).Decode(&creds)
			if creds["username"] != "bridge" || creds["password"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"token": "tok-1", "expires_in": 3600,
			})
			return
		}
		next(w, r)
	}
}

func TestClientAuthenticatesAndSendsBearer(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(loginHandler(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"equity": "100123.45"})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	eq, err := c.GetEquity(context.Background(), 5001)
	if err != nil {
		t.Fatalf("GetEquity: %v", err)
	}
	if !eq.Equal(decimal.RequireFromString("100123.45")) {
		t.Errorf("equity = %s", eq)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestClientCachesToken(t *testing.T) {
	var logins int32
	srv := httptest.NewServer(func() http.HandlerFunc {
		inner := func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"equity": "1"})
		}
		return func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/auth/login" {
				atomic.AddInt32(&logins, 1)
			}
			loginHandler(inner)(w, r)
		}
	}())
	defer srv.Close()

	c := testClient(srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := c.GetEquity(context.Background(), 1); err != nil {
			t.Fatal(err)
		}
	}
	if n := atomic.LoadInt32(&logins); n != 1 {
		t.Errorf("expected a single login, got %d", n)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(loginHandler(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"equity": "7"})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	eq, err := c.GetEquity(context.Background(), 1)
	if err != nil {
		t.Fatalf("should succeed on the third attempt: %v", err)
	}
	if !eq.Equal(decimal.NewFromInt(7)) {
		t.Errorf("equity = %s", eq)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestClientDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(loginHandler(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.GetAccount(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("404 must not be retried, calls = %d", calls)
	}
}

func TestClientReauthenticatesOn401(t *testing.T) {
	var logins, calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/login" {
			n := atomic.AddInt32(&logins, 1)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"token": "tok-" + string(rune('0'+n)), "expires_in": 3600,
			})
			return
		}
		// the first token is treated as revoked by the bridge
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"equity": "3"})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if _, err := c.GetEquity(context.Background(), 1); err != nil {
		t.Fatalf("should recover after re-auth: %v", err)
	}
	if atomic.LoadInt32(&logins) != 2 {
		t.Errorf("logins = %d, want 2", logins)
	}
}

func TestClientErrorCategories(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, ErrUnavailable},
		{http.StatusUnprocessableEntity, ErrBadRequest},
	}
	for _, tc := range cases {
		err := &APIError{StatusCode: tc.status, Endpoint: "/x"}
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d should map to %v", tc.status, tc.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(&APIError{StatusCode: 400}) || Retryable(&APIError{StatusCode: 404}) {
		t.Error("client errors are not retryable")
	}
	if !Retryable(&APIError{StatusCode: 429}) || !Retryable(&APIError{StatusCode: 503}) {
		t.Error("429 and 5xx are retryable")
	}
	if !Retryable(errors.New("connection refused")) {
		t.Error("network errors are retryable")
	}
	if Retryable(nil) {
		t.Error("nil is not retryable")
	}
}
