package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const testMint = "6x5SYnLroiN7WYq8NQYU9KHcH4YjpBbwpUfVu3EB7ieH"

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tokens/"+testMint {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"mint": "` + testMint + `",
			"symbol": "TST",
			"name": "Test Token",
			"creator": "creator1",
			"bondingCurve": "curve1",
			"associatedBondingCurve": "assoc1"
		}`))
	}))
	defer srv.Close()

	p := NewProvider(srv.URL)
	info, err := p.Fetch(context.Background(), testMint)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if info.Mint != testMint {
		t.Errorf("Mint = %s", info.Mint)
	}
	if info.Symbol != "TST" || info.Name != "Test Token" {
		t.Errorf("got %q %q", info.Symbol, info.Name)
	}
	if info.BondingCurve != "curve1" || info.AssociatedBondingCurve != "assoc1" {
		t.Errorf("curve accounts %q %q", info.BondingCurve, info.AssociatedBondingCurve)
	}
}

func TestFetch_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"mint": "` + testMint + `", "symbol": "TST"}`))
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, WithMaxRetries(3), WithRetryDelay(time.Millisecond))
	info, err := p.Fetch(context.Background(), testMint)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if info.Symbol != "TST" {
		t.Errorf("Symbol = %s", info.Symbol)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, WithMaxRetries(2), WithRetryDelay(time.Millisecond))
	if _, err := p.Fetch(context.Background(), testMint); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestFetch_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, WithRetryDelay(time.Millisecond))
	_, err := p.Fetch(context.Background(), testMint)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestFetch_ContextCancelDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	p := NewProvider(srv.URL, WithMaxRetries(5), WithRetryDelay(time.Second))
	_, err := p.Fetch(ctx, testMint)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context deadline", err)
	}
}
