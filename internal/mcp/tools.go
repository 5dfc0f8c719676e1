package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ghrcdaac/granuledb/internal/granule"
	"github.com/ghrcdaac/granuledb/internal/logging"
	"github.com/ghrcdaac/granuledb/internal/store"
)

// MaxBatchSize bounds the granules accepted in one tool call.
const MaxBatchSize = 50000

var granulesProperty = Property{
	Type:        "object",
	Description: `Discovery batch keyed by granule name: {"<name>": {"ETag": "...", "Last-Modified": "..."}}`,
}

func toolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "classify",
			Description: "Split a discovery batch into new, changed and unchanged granules, recording the new and changed ones.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"granules": granulesProperty},
				Required:   []string{"granules"},
			},
		},
		{
			Name:        "insert_strict",
			Description: "Record every granule in the batch, failing without changes if any name was already recorded.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"granules": granulesProperty},
				Required:   []string{"granules"},
			},
		},
		{
			Name:        "replace",
			Description: "Record every granule in the batch, overwriting stored fingerprints.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"granules": granulesProperty},
				Required:   []string{"granules"},
			},
		},
		{
			Name:        "delete",
			Description: "Forget recorded granules by name.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"names": {
						Type:        "array",
						Description: "Granule names to delete",
						Items:       &Items{Type: "string"},
					},
				},
				Required: []string{"names"},
			},
		},
		{
			Name:        "match",
			Description: "List which names of the batch are already recorded, ignoring fingerprints.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"granules": granulesProperty},
				Required:   []string{"granules"},
			},
		},
		{
			Name:        "status",
			Description: "Show the database location and how many granules it holds.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{},
			},
		},
	}
}

func (s *Server) toolClassify(ctx context.Context, args map[string]any) ToolResult {
	batch, err := batchArg(args)
	if err != nil {
		return errorResult(err.Error())
	}

	classification, err := s.store.Classify(ctx, batch)
	if err != nil {
		return s.storeError("classify", err)
	}

	return jsonResult(map[string]any{
		"actionable": classification.Count(),
		"new":        nonNil(classification.New),
		"changed":    nonNil(classification.Changed),
		"unchanged":  len(classification.Unchanged),
	})
}

func (s *Server) toolInsertStrict(ctx context.Context, args map[string]any) ToolResult {
	batch, err := batchArg(args)
	if err != nil {
		return errorResult(err.Error())
	}

	n, err := s.store.InsertOrFail(ctx, batch)
	if err != nil {
		return s.storeError("insert_strict", err)
	}
	return textResult(fmt.Sprintf("Recorded %d granule(s)", n))
}

func (s *Server) toolReplace(ctx context.Context, args map[string]any) ToolResult {
	batch, err := batchArg(args)
	if err != nil {
		return errorResult(err.Error())
	}

	n, err := s.store.Replace(ctx, batch)
	if err != nil {
		return s.storeError("replace", err)
	}
	return textResult(fmt.Sprintf("Replaced %d granule(s)", n))
}

func (s *Server) toolDelete(ctx context.Context, args map[string]any) ToolResult {
	raw, ok := args["names"].([]any)
	if !ok {
		return errorResult("'names' must be an array of strings")
	}
	names := make([]string, 0, len(raw))
	for _, v := range raw {
		name, ok := v.(string)
		if !ok || name == "" {
			return errorResult("'names' must contain non-empty strings")
		}
		names = append(names, name)
	}

	n, err := s.store.DeleteByNames(ctx, names)
	if err != nil {
		return s.storeError("delete", err)
	}
	return textResult(fmt.Sprintf("Deleted %d granule(s)", n))
}

func (s *Server) toolMatch(ctx context.Context, args map[string]any) ToolResult {
	batch, err := batchArg(args)
	if err != nil {
		return errorResult(err.Error())
	}

	names, err := s.store.SelectMatching(ctx, batch)
	if err != nil {
		return s.storeError("match", err)
	}
	return jsonResult(map[string]any{"recorded": nonNil(names)})
}

func (s *Server) toolStatus(ctx context.Context) ToolResult {
	count, err := s.store.Count(ctx)
	if err != nil {
		return s.storeError("status", err)
	}
	return jsonResult(map[string]any{
		"location": s.store.Location(),
		"granules": count,
	})
}

func (s *Server) storeError(tool string, err error) ToolResult {
	var dup *store.DuplicateGranuleError
	if errors.As(err, &dup) {
		s.reporter.TrackError(dup.ErrorKind())
		return errorResult(dup.Error())
	}
	logging.ErrorWithContext(s.logger, "tool failed", "tool_failed",
		logging.String("tool", tool),
		logging.Error(err),
	)
	s.reporter.TrackError("store")
	return errorResult(fmt.Sprintf("%s failed: %v", tool, err))
}

// batchArg re-encodes the granules argument and decodes it with the batch
// wire rules so unknown fields and empty names are rejected the same way as
// batch files.
func batchArg(args map[string]any) (granule.Batch, error) {
	raw, ok := args["granules"]
	if !ok || raw == nil {
		return nil, errors.New("'granules' is required")
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, errors.New("'granules' must be an object keyed by granule name")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid granules: %w", err)
	}
	batch, err := granule.DecodeBatch(bytes.NewReader(data), granule.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("invalid granules: %w", err)
	}
	if len(batch) > MaxBatchSize {
		return nil, fmt.Errorf("too many granules: %d (max %d)", len(batch), MaxBatchSize)
	}
	return batch, nil
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}

// Helpers

func textResult(text string) ToolResult {
	return ToolResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(msg string) ToolResult {
	return ToolResult{
		Content: []ContentBlock{{Type: "text", Text: msg}},
		IsError: true,
	}
}

func jsonResult(v any) ToolResult {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errorResult(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return textResult(strings.TrimSpace(buf.String()))
}
