package netprobe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestProber_Online(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(srv.URL, time.Second, zap.NewNop())
	if !p.Online(context.Background()) {
		t.Error("Online() = false against a live server")
	}
}

func TestProber_Online_StatusIrrelevant(t *testing.T) {
	// A 500 still proves the network answered.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New(srv.URL, time.Second, zap.NewNop())
	if !p.Online(context.Background()) {
		t.Error("Online() = false on a 500 response, want true")
	}
}

func TestProber_Offline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	p := New(srv.URL, time.Second, zap.NewNop())
	if p.Online(context.Background()) {
		t.Error("Online() = true against a closed server")
	}
}

func TestProber_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	p := New(srv.URL, 20*time.Millisecond, zap.NewNop())
	if p.Online(context.Background()) {
		t.Error("Online() = true despite timeout")
	}
}
