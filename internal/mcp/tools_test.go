package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ghrcdaac/granuledb/internal/granule"
	"github.com/ghrcdaac/granuledb/internal/store"
)

func setupTestServer(t *testing.T) (*Server, *store.SQLiteStore, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "granules.db")
	s, err := store.Open(context.Background(), store.Config{Path: dbPath})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	server := NewServer(s, "test", nil, nil)
	cleanup := func() {
		_ = s.Close()
	}
	return server, s, cleanup
}

func batchArgs(entries map[string][2]string) map[string]any {
	granules := map[string]any{}
	for name, fp := range entries {
		granules[name] = map[string]any{"ETag": fp[0], "Last-Modified": fp[1]}
	}
	return map[string]any{"granules": granules}
}

func decodeResult(t *testing.T, result ToolResult, v any) {
	t.Helper()
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content[0].Text)
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), v); err != nil {
		t.Fatalf("result is not json: %v\n%s", err, result.Content[0].Text)
	}
}

// Classify tool tests

func TestToolClassify_RecordsNewAndChanged(t *testing.T) {
	server, _, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	first := server.toolClassify(ctx, batchArgs(map[string][2]string{
		"a": {"e1", "m1"},
		"b": {"e2", "m2"},
	}))
	var got struct {
		Actionable int      `json:"actionable"`
		New        []string `json:"new"`
		Changed    []string `json:"changed"`
		Unchanged  int      `json:"unchanged"`
	}
	decodeResult(t, first, &got)
	if got.Actionable != 2 || len(got.New) != 2 {
		t.Fatalf("expected two new granules, got %+v", got)
	}

	second := server.toolClassify(ctx, batchArgs(map[string][2]string{
		"a": {"e1", "m1"},
		"b": {"e2-new", "m2"},
	}))
	got.New, got.Changed = nil, nil
	decodeResult(t, second, &got)
	if got.Actionable != 1 || len(got.Changed) != 1 || got.Changed[0] != "b" || got.Unchanged != 1 {
		t.Fatalf("expected b changed and a unchanged, got %+v", got)
	}
	if len(got.New) != 0 {
		t.Fatalf("expected no new granules, got %v", got.New)
	}
}

func TestToolClassify_MissingGranules(t *testing.T) {
	server, _, cleanup := setupTestServer(t)
	defer cleanup()

	result := server.toolClassify(context.Background(), map[string]any{})
	if !result.IsError {
		t.Fatal("expected error for missing granules")
	}
	if !strings.Contains(result.Content[0].Text, "'granules' is required") {
		t.Errorf("unexpected error message: %s", result.Content[0].Text)
	}
}

func TestToolClassify_RejectsWrongShape(t *testing.T) {
	server, _, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	result := server.toolClassify(ctx, map[string]any{"granules": []any{"a"}})
	if !result.IsError {
		t.Error("expected error for array granules")
	}

	result = server.toolClassify(ctx, map[string]any{"granules": map[string]any{
		"a": map[string]any{"ETag": "x", "Size": 10},
	}})
	if !result.IsError {
		t.Error("expected error for unknown fingerprint field")
	}

	result = server.toolClassify(ctx, map[string]any{"granules": map[string]any{
		"": map[string]any{"ETag": "x"},
	}})
	if !result.IsError {
		t.Error("expected error for empty granule name")
	}
}

// Strict insert tool tests

func TestToolInsertStrict_Duplicate(t *testing.T) {
	server, s, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := s.Replace(ctx, granule.Batch{"a": {ETag: "e"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	result := server.toolInsertStrict(ctx, batchArgs(map[string][2]string{
		"a": {"other", "other"},
		"b": {"e", "m"},
	}))
	if !result.IsError {
		t.Fatal("expected duplicate error")
	}
	if !strings.Contains(result.Content[0].Text, "A duplicate granule was found: a") {
		t.Errorf("unexpected error message: %s", result.Content[0].Text)
	}

	names, err := s.SelectMatching(ctx, granule.Batch{"b": {}})
	if err != nil {
		t.Fatalf("SelectMatching: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected b not to be recorded, got %v", names)
	}
}

func TestToolInsertStrict_Valid(t *testing.T) {
	server, _, cleanup := setupTestServer(t)
	defer cleanup()

	result := server.toolInsertStrict(context.Background(), batchArgs(map[string][2]string{
		"a": {"e", "m"},
		"b": {"e", "m"},
	}))
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content[0].Text)
	}
	if result.Content[0].Text != "Recorded 2 granule(s)" {
		t.Errorf("unexpected result: %s", result.Content[0].Text)
	}
}

// Replace, delete and match tool tests

func TestToolReplaceDeleteMatch(t *testing.T) {
	server, _, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	result := server.toolReplace(ctx, batchArgs(map[string][2]string{
		"a": {"e", "m"},
		"b": {"e", "m"},
		"c": {"e", "m"},
	}))
	if result.IsError || result.Content[0].Text != "Replaced 3 granule(s)" {
		t.Fatalf("unexpected replace result: %+v", result)
	}

	result = server.toolDelete(ctx, map[string]any{"names": []any{"a", "missing"}})
	if result.IsError || result.Content[0].Text != "Deleted 1 granule(s)" {
		t.Fatalf("unexpected delete result: %+v", result)
	}

	var matched struct {
		Recorded []string `json:"recorded"`
	}
	decodeResult(t, server.toolMatch(ctx, batchArgs(map[string][2]string{
		"a": {}, "b": {}, "c": {"different", ""}, "z": {},
	})), &matched)
	if strings.Join(matched.Recorded, ",") != "b,c" {
		t.Fatalf("expected b,c recorded, got %v", matched.Recorded)
	}
}

func TestToolDelete_InvalidNames(t *testing.T) {
	server, _, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	if result := server.toolDelete(ctx, map[string]any{}); !result.IsError {
		t.Error("expected error for missing names")
	}
	if result := server.toolDelete(ctx, map[string]any{"names": []any{"a", 3.0}}); !result.IsError {
		t.Error("expected error for non-string name")
	}
}

func TestToolStatus(t *testing.T) {
	server, s, cleanup := setupTestServer(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := s.Replace(ctx, granule.Batch{"a": {}, "b": {}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var status struct {
		Location string `json:"location"`
		Granules int    `json:"granules"`
	}
	decodeResult(t, server.toolStatus(ctx), &status)
	if status.Granules != 2 {
		t.Errorf("expected 2 granules, got %d", status.Granules)
	}
	if status.Location != s.Location() {
		t.Errorf("unexpected location %q", status.Location)
	}
}

func TestToolStatus_Unbound(t *testing.T) {
	server := NewServer(&store.SQLiteStore{}, "test", nil, nil)

	result := server.toolStatus(context.Background())
	if !result.IsError {
		t.Fatal("expected error from unbound store")
	}
	if !strings.Contains(result.Content[0].Text, "not initialized") {
		t.Errorf("unexpected error message: %s", result.Content[0].Text)
	}
}

// Protocol tests

func TestRun_Protocol(t *testing.T) {
	server, _, cleanup := setupTestServer(t)
	defer cleanup()

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"replace","arguments":{"granules":{"a":{"ETag":"e","Last-Modified":"m"}}}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"bogus","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":5,"method":"nope"}`,
		`not json`,
	}, "\n") + "\n"

	var out bytes.Buffer
	server.SetIO(strings.NewReader(input), &out)
	if err := server.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 responses, got %d:\n%s", len(lines), out.String())
	}

	var responses []Response
	for _, line := range lines {
		var resp Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("bad response %q: %v", line, err)
		}
		responses = append(responses, resp)
	}

	if !strings.Contains(lines[0], `"name":"granuledb"`) {
		t.Errorf("unexpected initialize response: %s", lines[0])
	}
	for _, tool := range []string{"classify", "insert_strict", "replace", "delete", "match", "status"} {
		if !strings.Contains(lines[1], `"name":"`+tool+`"`) {
			t.Errorf("tools/list missing %s", tool)
		}
	}
	if !strings.Contains(lines[2], "Replaced 1 granule(s)") {
		t.Errorf("unexpected tool response: %s", lines[2])
	}
	if !strings.Contains(lines[3], `"isError":true`) {
		t.Errorf("expected unknown tool to be an error result: %s", lines[3])
	}
	if responses[4].Error == nil || responses[4].Error.Code != codeMethodNotFound {
		t.Errorf("expected method not found, got %s", lines[4])
	}
	if responses[5].Error == nil || responses[5].Error.Code != codeParseError {
		t.Errorf("expected parse error, got %s", lines[5])
	}
}

func TestRun_CancelledContext(t *testing.T) {
	server, _, cleanup := setupTestServer(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	server.SetIO(strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), &bytes.Buffer{})
	if err := server.Run(ctx); err == nil {
		t.Fatal("expected cancelled context error")
	}
}
