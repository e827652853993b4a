package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ostrel/batchget/internal/adapter/filesystem"
	"github.com/ostrel/batchget/internal/domain"
)

// fakeProber returns a scripted sequence of answers, then stays online
// unless offlineWhenDrained flips the fallback.
type fakeProber struct {
	mu                 sync.Mutex
	answers            []bool
	offlineWhenDrained bool
	calls              int
}

func (p *fakeProber) Online(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.answers) == 0 {
		return !p.offlineWhenDrained
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a
}

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestSupervisor(m *filesystem.Manager, prober *fakeProber, sink *recordingSink, maxRetries int) *Supervisor {
	tr := newTestTransfer(m)
	return NewSupervisor(tr, m, prober, sink, zap.NewNop(), maxRetries, 5*time.Millisecond)
}

func TestSupervisor_ExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := newTestEnv(t)
	task := taskFor(t, m, srv.URL+"/file.bin")
	prober := &fakeProber{}
	sink := newRecordingSink()
	sup := newTestSupervisor(m, prober, sink, 3)

	res := sup.Run(context.Background(), task)
	if res.Status != domain.StatusFailedExhausted {
		t.Errorf("Status = %q, want %q", res.Status, domain.StatusFailedExhausted)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hits = %d, want 3", got)
	}
	// One connectivity check before each of the two retries.
	if got := prober.callCount(); got != 2 {
		t.Errorf("prober calls = %d, want 2", got)
	}
	if sink.doneStatus(task.Name) != domain.StatusFailedExhausted {
		t.Errorf("Done status = %q, want %q", sink.doneStatus(task.Name), domain.StatusFailedExhausted)
	}
}

func TestSupervisor_FatalShortCircuits(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m := newTestEnv(t)
	task := taskFor(t, m, srv.URL+"/file.bin")
	prober := &fakeProber{}
	sup := newTestSupervisor(m, prober, newRecordingSink(), 5)

	res := sup.Run(context.Background(), task)
	if res.Status != domain.StatusFailedFatal {
		t.Errorf("Status = %q, want %q", res.Status, domain.StatusFailedFatal)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
	if got := prober.callCount(); got != 0 {
		t.Errorf("prober calls = %d, want 0", got)
	}
}

func TestSupervisor_RecoversAndPromotes(t *testing.T) {
	const content = "recovered content after transient failures"
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, content)
	}))
	defer srv.Close()

	m := newTestEnv(t)
	task := taskFor(t, m, srv.URL+"/file.bin")
	sink := newRecordingSink()
	sup := newTestSupervisor(m, &fakeProber{}, sink, 5)

	res := sup.Run(context.Background(), task)
	if res.Status != domain.StatusCompleted {
		t.Fatalf("Status = %q, want %q (err: %v)", res.Status, domain.StatusCompleted, res.Err)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}

	data, err := os.ReadFile(task.DestPath)
	if err != nil {
		t.Fatalf("destination missing after completion: %v", err)
	}
	if string(data) != content {
		t.Error("destination content mismatch")
	}
	if _, err := os.Stat(task.PartialPath); !os.IsNotExist(err) {
		t.Error("partial file still present after promotion")
	}
	if sink.doneStatus(task.Name) != domain.StatusCompleted {
		t.Errorf("Done status = %q, want %q", sink.doneStatus(task.Name), domain.StatusCompleted)
	}
}

func TestSupervisor_WaitsForNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "back online")
	}))
	defer srv.Close()

	m := newTestEnv(t)
	task := taskFor(t, m, srv.URL+"/file.bin")
	// Offline twice, then reachable: the single retry polls three times.
	prober := &fakeProber{answers: []bool{false, false, true}}
	sup := newTestSupervisor(m, prober, newRecordingSink(), 5)

	res := sup.Run(context.Background(), task)
	if res.Status != domain.StatusCompleted {
		t.Fatalf("Status = %q, want %q (err: %v)", res.Status, domain.StatusCompleted, res.Err)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	if got := prober.callCount(); got != 3 {
		t.Errorf("prober calls = %d, want 3", got)
	}
}

func TestSupervisor_NoWaitAfterFinalAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := newTestEnv(t)
	task := taskFor(t, m, srv.URL+"/file.bin")
	// Online for the one real retry, then the network goes away for good.
	// Exhaustion must still be reported without waiting for it to return.
	prober := &fakeProber{answers: []bool{true}, offlineWhenDrained: true}
	sup := newTestSupervisor(m, prober, newRecordingSink(), 2)

	done := make(chan domain.TaskResult, 1)
	go func() { done <- sup.Run(context.Background(), task) }()

	select {
	case res := <-done:
		if res.Status != domain.StatusFailedExhausted {
			t.Errorf("Status = %q, want %q", res.Status, domain.StatusFailedExhausted)
		}
		if res.Attempts != 2 {
			t.Errorf("Attempts = %d, want 2", res.Attempts)
		}
		if got := prober.callCount(); got != 1 {
			t.Errorf("prober calls = %d, want 1", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run still blocked after the retry budget was spent")
	}
}

// fatalCancelTransport serves a 404 while cancelling the run context, so the
// fatal classification and the shutdown race on the same attempt.
type fatalCancelTransport struct {
	cancel context.CancelFunc
}

func (t *fatalCancelTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.cancel()
	return &http.Response{
		Status:     "404 Not Found",
		StatusCode: http.StatusNotFound,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Body:       http.NoBody,
		Request:    req,
	}, nil
}

func TestSupervisor_FatalOutranksCancel(t *testing.T) {
	m := newTestEnv(t)
	task := taskFor(t, m, "http://example.com/file.bin")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &http.Client{Transport: &fatalCancelTransport{cancel: cancel}}
	tr := NewTransfer(client, m, zap.NewNop(), 1024, time.Second, time.Millisecond)
	sup := NewSupervisor(tr, m, &fakeProber{}, newRecordingSink(), zap.NewNop(), 5, 5*time.Millisecond)

	res := sup.Run(ctx, task)
	if res.Status != domain.StatusFailedFatal {
		t.Errorf("Status = %q, want %q", res.Status, domain.StatusFailedFatal)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if !domain.IsFatal(res.Err) {
		t.Errorf("Err = %v, want fatal classification", res.Err)
	}
}

func TestSupervisor_AbortDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := newTestEnv(t)
	task := taskFor(t, m, srv.URL+"/file.bin")
	tr := newTestTransfer(m)
	// Long retry delay so cancellation lands inside the backoff wait.
	sup := NewSupervisor(tr, m, &fakeProber{}, newRecordingSink(), zap.NewNop(), 5, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	done := make(chan domain.TaskResult, 1)
	go func() { done <- sup.Run(ctx, task) }()

	select {
	case res := <-done:
		if res.Status != domain.StatusAborted {
			t.Errorf("Status = %q, want %q", res.Status, domain.StatusAborted)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
