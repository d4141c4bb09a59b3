package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestDoWithRetry(t *testing.T) {
	cases := []struct {
		name      string
		failures  int32
		status    int
		wantErr   bool
		wantCalls int32
	}{
		{"recovers after rate limit", 2, http.StatusTooManyRequests, false, 3},
		{"recovers after 503", 1, http.StatusServiceUnavailable, false, 2},
		{"exhausts retries", 100, http.StatusBadGateway, true, maxRetries + 1},
		{"client error is final", 100, http.StatusBadRequest, false, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if atomic.AddInt32(&calls, 1) <= tc.failures {
					w.WriteHeader(tc.status)
					_, _ = w.Write([]byte("try later"))
					return
				}
				_, _ = w.Write([]byte("ok"))
			}))
			defer srv.Close()

			resp, err := doWithRetry(context.Background(), srv.Client(), func() (*http.Request, error) {
				return http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("{}"))
			})
			if tc.wantErr {
				if err == nil || !strings.Contains(err.Error(), "try later") {
					t.Fatalf("expected exhausted error carrying body, got %v", err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				resp.Body.Close()
			}
			if got := atomic.LoadInt32(&calls); got != tc.wantCalls {
				t.Fatalf("expected %d calls, got %d", tc.wantCalls, got)
			}
		})
	}
}

func TestDoWithRetryBuildErrorIsNotRetried(t *testing.T) {
	var builds int
	boom := errors.New("bad url")
	_, err := doWithRetry(context.Background(), http.DefaultClient, func() (*http.Request, error) {
		builds++
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected build error, got %v", err)
	}
	if builds != 1 {
		t.Fatalf("expected a single build, got %d", builds)
	}
}

func TestDoWithRetryCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := doWithRetry(ctx, srv.Client(), func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestDoWithRetryExhaustedReportsProviderBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"overloaded"}`))
	}))
	defer srv.Close()

	_, err := doWithRetry(context.Background(), srv.Client(), func() (*http.Request, error) {
		return http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("{}"))
	})
	if err == nil {
		t.Fatal("expected exhausted error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "overloaded") || !strings.Contains(msg, "503") {
		t.Fatalf("expected status and provider body in error, got %q", msg)
	}
	if strings.Contains(msg, "&{") {
		t.Fatalf("error leaks a response dump: %q", msg)
	}
}
