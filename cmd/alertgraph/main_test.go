package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"alertgraph/pkg/models"
)

const sampleLog = `01/10/2024-08:00:00.000000  [**] [1:2001219:20] ET SCAN Potential SSH Scan [**] [Classification: Attempted Information Leak] [Priority: 2] {TCP} 192.168.1.50:40222 -> 10.0.0.5:22
01/10/2024-08:00:10.000000  [**] [1:2001219:20] ET SCAN Potential SSH Scan [**] [Classification: Attempted Information Leak] [Priority: 2] {TCP} 192.168.1.50:40223 -> 10.0.0.5:22
not an alert line
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fast.log")
	if err := os.WriteFile(path, []byte(sampleLog), 0644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestAnalyzePrintsSnapshot(t *testing.T) {
	path := writeSample(t)
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"analyze", "--input", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(out.Bytes(), &snap); err != nil {
		t.Fatalf("decode output: %v (%s)", err, out.String())
	}
	if snap.Status != models.StatusOK || snap.Stats.Parsed != 2 || snap.Stats.Skipped != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if len(snap.Result.Timeline) != 1 || snap.Result.Timeline[0].Count != 2 {
		t.Fatalf("expected one burst of two alerts, got %+v", snap.Result.Timeline)
	}
}

func TestAnalyzeWritesOutputFile(t *testing.T) {
	path := writeSample(t)
	outPath := filepath.Join(t.TempDir(), "result.json")
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"analyze", "--input", path, "--output", outPath})

	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "events=2") {
		t.Fatalf("unexpected summary: %s", out.String())
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
}

func TestAnalyzeMissingInput(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"analyze", "--input", filepath.Join(t.TempDir(), "absent.log")})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "log file not found") {
		t.Fatalf("expected missing file error, got %v", err)
	}
}
