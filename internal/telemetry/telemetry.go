// Package telemetry sends anonymous, opt-in usage events to PostHog.
//
// Nothing is sent unless the configuration enables telemetry and supplies a
// project API key. GRANULEDB_NO_TELEMETRY and DO_NOT_TRACK=1 always win.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/posthog/posthog-go"
)

const flushInterval = 5 * time.Second

// Settings selects the PostHog project and endpoint.
type Settings struct {
	Enabled  bool
	APIKey   string
	Endpoint string
	Version  string
	// RunID groups the events of one CLI invocation.
	RunID string
}

// Reporter enqueues events. A nil or disabled Reporter drops everything.
type Reporter struct {
	client  posthog.Client
	anonID  string
	version string
	runID   string
	once    sync.Once
}

// New returns a reporter for the settings. It never fails: a client that
// cannot be built yields a disabled reporter.
func New(settings Settings) *Reporter {
	r := &Reporter{version: settings.Version, runID: settings.RunID}
	if r.version == "" {
		r.version = "dev"
	}
	if !settings.Enabled || settings.APIKey == "" || optedOut() {
		return r
	}

	client, err := posthog.NewWithConfig(settings.APIKey, posthog.Config{
		Endpoint: settings.Endpoint,
		Interval: flushInterval,
	})
	if err != nil {
		return r
	}
	r.client = client
	r.anonID = generateAnonID()
	return r
}

// Enabled reports whether events are being sent.
func (r *Reporter) Enabled() bool {
	return r != nil && r.client != nil
}

// Close flushes and closes the telemetry client.
func (r *Reporter) Close() {
	if !r.Enabled() {
		return
	}
	r.once.Do(func() {
		_ = r.client.Close()
	})
}

// Track sends an event to PostHog.
func (r *Reporter) Track(event string, properties map[string]any) {
	if !r.Enabled() {
		return
	}

	props := posthog.NewProperties()
	props.Set("os", runtime.GOOS)
	props.Set("arch", runtime.GOARCH)
	props.Set("version", r.version)
	if r.runID != "" {
		props.Set("run_id", r.runID)
	}
	for k, v := range properties {
		props.Set(k, v)
	}

	_ = r.client.Enqueue(posthog.Capture{
		DistinctId: r.anonID,
		Event:      event,
		Properties: props,
	})
}

// TrackCommand tracks a CLI command usage.
func (r *Reporter) TrackCommand(command string) {
	r.Track("command", map[string]any{
		"command": command,
	})
}

// TrackRun records the size and outcome of a dedup run. Granule names are
// never sent.
func (r *Reporter) TrackRun(mode string, batch, actionable int) {
	r.Track("dedup_run", map[string]any{
		"mode":       mode,
		"batch":      batch,
		"actionable": actionable,
	})
}

// TrackMCPTool tracks an MCP tool usage.
func (r *Reporter) TrackMCPTool(tool string) {
	r.Track("mcp_tool", map[string]any{
		"tool": tool,
	})
}

// TrackError tracks an error event by kind only.
func (r *Reporter) TrackError(kind string) {
	r.Track("error", map[string]any{
		"kind": kind,
	})
}

func optedOut() bool {
	return os.Getenv("GRANULEDB_NO_TELEMETRY") != "" || os.Getenv("DO_NOT_TRACK") == "1"
}

// generateAnonID creates a stable anonymous ID for this machine.
func generateAnonID() string {
	home, _ := os.UserHomeDir()
	hostname, _ := os.Hostname()

	data := home + hostname + "granuledb-salt-v1"
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
