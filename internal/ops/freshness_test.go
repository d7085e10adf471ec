package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseFileCheck(t *testing.T) {
	cases := []struct {
		raw     string
		want    FileCheck
		wantErr bool
	}{
		{raw: "data/live/frames.1m.json:180", want: FileCheck{Path: "data/live/frames.1m.json", MaxAgeSec: 180, Required: true}},
		{raw: "data/live/raw_minute.jsonl:600:optional", want: FileCheck{Path: "data/live/raw_minute.jsonl", MaxAgeSec: 600, Required: false}},
		{raw: "a.json:30:required", want: FileCheck{Path: "a.json", MaxAgeSec: 30, Required: true}},
		{raw: "a.json", wantErr: true},
		{raw: "a.json:soon", wantErr: true},
		{raw: "a.json:-5", wantErr: true},
		{raw: ":180", wantErr: true},
		{raw: "a.json:180:maybe", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseFileCheck(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseFileCheck(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFileCheck(%q) failed: %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseFileCheck(%q) = %+v, want %+v", tc.raw, got, tc.want)
		}
	}
}

func TestCheckAllFreshAndStale(t *testing.T) {
	root := t.TempDir()
	fresh := filepath.Join(root, "fresh.json")
	if err := os.WriteFile(fresh, []byte(`{"schema_version":"market.frames.v1","frames":[{"event_ts_ms":1770000000000}]}`), 0644); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(root, "stale.json")
	if err := os.WriteFile(stale, []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-10 * time.Minute)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	checks := []FileCheck{
		{Path: "fresh.json", MaxAgeSec: 180, Required: true},
		{Path: "stale.json", MaxAgeSec: 180, Required: false},
	}
	report := CheckAll(root, checks, time.Now())

	if !report.OK {
		t.Errorf("report should pass: only the optional file is stale: %+v", report)
	}
	if len(report.Results) != 2 {
		t.Fatalf("got %d results", len(report.Results))
	}
	if !report.Results[0].OK || report.Results[0].Stale {
		t.Errorf("fresh file flagged: %+v", report.Results[0])
	}
	if report.Results[0].Schema != "market.frames.v1" {
		t.Errorf("payload schema not probed: %+v", report.Results[0])
	}
	if report.Results[0].LatestTsMs != 1770000000000 {
		t.Errorf("latest frame ts not probed: %+v", report.Results[0])
	}
	if report.Results[1].OK || !report.Results[1].Stale {
		t.Errorf("stale file not flagged: %+v", report.Results[1])
	}
}

func TestCheckAllMissingRequiredFailsReport(t *testing.T) {
	root := t.TempDir()
	checks := []FileCheck{
		{Path: "gone.json", MaxAgeSec: 180, Required: true},
		{Path: "also-gone.json", MaxAgeSec: 180, Required: false},
	}
	report := CheckAll(root, checks, time.Now())

	if report.OK {
		t.Error("missing required file must fail the report")
	}
	if len(report.FailedPaths) != 1 || report.FailedPaths[0] != "gone.json" {
		t.Errorf("failed paths = %v, want [gone.json]", report.FailedPaths)
	}
	if report.Results[0].Exists {
		t.Error("missing file reported as existing")
	}
}
