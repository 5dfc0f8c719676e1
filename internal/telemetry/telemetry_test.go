package telemetry

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func clearOptOut(t *testing.T) {
	t.Helper()
	t.Setenv("GRANULEDB_NO_TELEMETRY", "")
	t.Setenv("DO_NOT_TRACK", "")
}

func TestNilReporterIsSafe(t *testing.T) {
	var r *Reporter
	if r.Enabled() {
		t.Fatal("nil reporter should be disabled")
	}
	r.TrackCommand("skip")
	r.TrackRun("skip", 3, 1)
	r.TrackError("duplicate")
	r.Close()
}

func TestNewDisabledWithoutKey(t *testing.T) {
	clearOptOut(t)

	if New(Settings{Enabled: true}).Enabled() {
		t.Fatal("expected reporter without api key to be disabled")
	}
	if New(Settings{APIKey: "phc_test"}).Enabled() {
		t.Fatal("expected reporter to stay disabled unless enabled")
	}
}

func TestOptOutEnvironmentWins(t *testing.T) {
	clearOptOut(t)
	t.Setenv("DO_NOT_TRACK", "1")

	if New(Settings{Enabled: true, APIKey: "phc_test", Endpoint: "http://127.0.0.1:1"}).Enabled() {
		t.Fatal("expected DO_NOT_TRACK to disable telemetry")
	}

	t.Setenv("DO_NOT_TRACK", "")
	t.Setenv("GRANULEDB_NO_TELEMETRY", "yes")
	if New(Settings{Enabled: true, APIKey: "phc_test", Endpoint: "http://127.0.0.1:1"}).Enabled() {
		t.Fatal("expected GRANULEDB_NO_TELEMETRY to disable telemetry")
	}
}

func TestEnabledReporterFlushesOnClose(t *testing.T) {
	clearOptOut(t)

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":1}`))
	}))
	defer server.Close()

	r := New(Settings{Enabled: true, APIKey: "phc_test", Endpoint: server.URL, Version: "1.2.3", RunID: "run-1"})
	if !r.Enabled() {
		t.Fatal("expected reporter to be enabled")
	}
	r.TrackRun("skip", 10, 2)
	r.Close()
	r.Close()

	if requests.Load() == 0 {
		t.Fatal("expected queued events to be flushed on close")
	}
}

func TestAnonIDIsStable(t *testing.T) {
	first := generateAnonID()
	if len(first) != 32 {
		t.Fatalf("expected 32 hex chars, got %q", first)
	}
	if first != generateAnonID() {
		t.Fatal("expected anonymous id to be stable")
	}
}
