package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// 数据文件新鲜度检查
//
// Operator tooling: verifies the live data files are still being refreshed.
// Each check is a path with a maximum age; required files failing the check
// fail the whole report, optional ones only get flagged.

// FileCheck is one freshness rule.
type FileCheck struct {
	Path      string
	MaxAgeSec int
	Required  bool
}

// ParseFileCheck parses "path:max_age_sec[:required|optional]".
func ParseFileCheck(raw string) (FileCheck, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 {
		return FileCheck{}, fmt.Errorf("expected path:max_age_sec[:required|optional], got %q", raw)
	}

	path := strings.TrimSpace(parts[0])
	if path == "" {
		return FileCheck{}, fmt.Errorf("empty path in %q", raw)
	}

	maxAge, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return FileCheck{}, fmt.Errorf("max_age_sec must be an integer in %q", raw)
	}
	if maxAge < 0 {
		return FileCheck{}, fmt.Errorf("max_age_sec must be >= 0 in %q", raw)
	}

	required := true
	if len(parts) >= 3 && parts[2] != "" {
		switch strings.ToLower(strings.TrimSpace(parts[2])) {
		case "required", "req", "true", "1", "yes":
			required = true
		case "optional", "opt", "false", "0", "no":
			required = false
		default:
			return FileCheck{}, fmt.Errorf("third field must be required|optional in %q", raw)
		}
	}

	return FileCheck{Path: path, MaxAgeSec: maxAge, Required: required}, nil
}

// DefaultChecks covers the files the collector and converter maintain.
func DefaultChecks() []FileCheck {
	return []FileCheck{
		{Path: "data/live/frames.1m.json", MaxAgeSec: 180, Required: true},
		{Path: "data/live/raw_quotes.json", MaxAgeSec: 180, Required: true},
		{Path: "data/live/checkpoint.json", MaxAgeSec: 180, Required: true},
		{Path: "data/live/raw_minute.jsonl", MaxAgeSec: 600, Required: false},
	}
}

// Result is one file's check outcome.
type Result struct {
	Path        string `json:"path"`
	Required    bool   `json:"required"`
	MaxAgeSec   int    `json:"max_age_sec"`
	Exists      bool   `json:"exists"`
	OK          bool   `json:"ok"`
	Stale       bool   `json:"stale"`
	AgeSec      int64  `json:"age_sec"`
	SizeBytes   int64  `json:"size_bytes"`
	Schema      string `json:"payload_schema,omitempty"`
	GeneratedAt string `json:"payload_generated_at,omitempty"`
	LatestTsMs  int64  `json:"payload_latest_ts_ms,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Report aggregates all check results.
type Report struct {
	OK          bool     `json:"ok"`
	CheckedAt   string   `json:"checked_at"`
	Results     []Result `json:"results"`
	FailedPaths []string `json:"failed_paths"`
}

// CheckAll evaluates every rule against root at the given instant.
func CheckAll(root string, checks []FileCheck, now time.Time) *Report {
	report := &Report{
		OK:          true,
		CheckedAt:   now.Format(time.RFC3339),
		Results:     make([]Result, 0, len(checks)),
		FailedPaths: []string{},
	}

	for _, check := range checks {
		result := checkOne(root, check, now)
		if !result.OK && check.Required {
			report.OK = false
			report.FailedPaths = append(report.FailedPaths, check.Path)
		}
		report.Results = append(report.Results, result)
	}
	return report
}

func checkOne(root string, check FileCheck, now time.Time) Result {
	result := Result{
		Path:      check.Path,
		Required:  check.Required,
		MaxAgeSec: check.MaxAgeSec,
		Stale:     true,
	}

	fullPath := check.Path
	if !filepath.IsAbs(fullPath) {
		fullPath = filepath.Join(root, fullPath)
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		result.Error = "missing"
		return result
	}
	result.Exists = true
	result.SizeBytes = info.Size()
	result.AgeSec = int64(now.Sub(info.ModTime()).Seconds())

	if result.AgeSec <= int64(check.MaxAgeSec) {
		result.Stale = false
		result.OK = true
	} else {
		result.Error = fmt.Sprintf("stale: age %ds > max %ds", result.AgeSec, check.MaxAgeSec)
	}

	probePayload(fullPath, &result)
	return result
}

// probePayload pulls freshness hints out of JSON documents that carry them.
// Best effort only; jsonl logs and foreign payloads are left alone.
func probePayload(path string, result *Result) {
	if strings.HasSuffix(path, ".jsonl") {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var payload struct {
		SchemaVersion string `json:"schema_version"`
		GeneratedAt   string `json:"generated_at"`
		UpdatedAt     string `json:"updated_at"`
		Frames        []struct {
			EventTsMs int64 `json:"event_ts_ms"`
		} `json:"frames"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	result.Schema = payload.SchemaVersion
	result.GeneratedAt = payload.GeneratedAt
	if result.GeneratedAt == "" {
		result.GeneratedAt = payload.UpdatedAt
	}
	if len(payload.Frames) > 0 {
		result.LatestTsMs = payload.Frames[len(payload.Frames)-1].EventTsMs
	}
}
