package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func simulateDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if _, err := run(t, "simulate", dir, "--per-action", "3", "--files", "2", "--seed", "7"); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	return dir
}

func TestSimulate_WritesStreams(t *testing.T) {
	dir := simulateDir(t)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 stream files, got %d", len(entries))
	}
}

func TestLabel_MergedOutput(t *testing.T) {
	dir := simulateDir(t)
	output := filepath.Join(t.TempDir(), "merged.csv")

	out, err := run(t, "label", dir, "-o", output, "--workers", "2")
	if err != nil {
		t.Fatalf("label: %v", err)
	}
	if !strings.Contains(out, "wrote 24 windows") {
		t.Errorf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "Left Click") {
		t.Errorf("expected per-class counts, got %q", out)
	}

	b, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	// Header plus 100 rows per window
	if lines := strings.Count(string(b), "\n"); lines != 1+24*100 {
		t.Errorf("expected %d lines, got %d", 1+24*100, lines)
	}
}

func TestSplit_ReportsPartition(t *testing.T) {
	dir := simulateDir(t)

	out, err := run(t, "split", dir, "--test-size", "4", "--seed", "1")
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	for _, want := range []string{"windows: 24", "train: 20", "eval: 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestCondition_ReportsShape(t *testing.T) {
	dir := simulateDir(t)

	out, err := run(t, "condition", dir)
	if err != nil {
		t.Fatalf("condition: %v", err)
	}
	if !strings.Contains(out, "shape: (24, 100, 6)") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestCommands_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"label missing dir", []string{"label", filepath.Join(t.TempDir(), "missing")}},
		{"condition empty dir", []string{"condition", t.TempDir()}},
		{"split without args", []string{"split"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}
