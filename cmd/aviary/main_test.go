package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aviarysim/aviary/internal/store"
)

func TestRunVersion_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := runVersion(&buf, "text"); err != nil {
		t.Fatalf("runVersion: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Aviary") {
		t.Errorf("output = %q, want it to mention Aviary", out)
	}
	for _, key := range []string{"version:", "go_version:", "os:", "arch:"} {
		if !strings.Contains(out, key) {
			t.Errorf("output missing %q", key)
		}
	}
}

func TestRunVersion_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := runVersion(&buf, "json"); err != nil {
		t.Fatalf("runVersion: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	for _, key := range []string{"version", "git_commit", "go_version", "os", "arch"} {
		if _, ok := info[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
}

func TestRun_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown flag", []string{"-bogus"}, "unknown flag"},
		{"unknown command", []string{"frobnicate"}, "unknown command"},
		{"bad output format", []string{"-o", "yaml", "version"}, "unknown output format"},
		{"bad steps value", []string{"-steps", "many", "run"}, "invalid -steps"},
		{"bad steps assignment", []string{"-steps=ten", "run"}, "invalid -steps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			err := run(context.Background(), &out, &errOut, tt.args)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), &out, &errOut, nil); err != nil {
		t.Fatalf("run with no args: %v", err)
	}
	if !strings.Contains(out.String(), "Usage: aviary") {
		t.Errorf("output = %q, want it to mention 'Usage: aviary'", out.String())
	}
}

func TestRun_HelpFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), &out, &errOut, []string{"-h"}); err != nil {
		t.Fatalf("run -h: %v", err)
	}
	if !strings.Contains(out.String(), "Commands:") {
		t.Errorf("help output = %q, want a command list", out.String())
	}
}

func TestRun_VersionCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), &out, &errOut, []string{"-o", "json", "version"}); err != nil {
		t.Fatalf("run version: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("version output is not valid JSON: %v", err)
	}
}

func TestRunSim_MissingConfig(t *testing.T) {
	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, []string{"-config", filepath.Join(t.TempDir(), "absent.yaml"), "run"})
	if err == nil {
		t.Fatal("expected error for missing config, got nil")
	}
}

func TestRunSim_RejectsBadMode(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "aviary.yaml")
	cfgYAML := "profiles:\n  path: roster.csv\n  mode: myspace\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, []string{"-config", cfgPath, "run"})
	if err == nil {
		t.Fatal("expected error for bad mode, got nil")
	}
	if !strings.Contains(err.Error(), "profiles.mode") {
		t.Errorf("error = %q, want it to mention profiles.mode", err)
	}
}

// TestRun_SimulationSmoke drives a whole run end to end with the model
// backend pointed at a dead port. Turns fail and are tolerated, so the
// run still seeds the population, steps, and shuts down cleanly.
func TestRun_SimulationSmoke(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sim.db")
	rosterPath := filepath.Join(dir, "roster.csv")

	roster := strings.Join([]string{
		"username,name,description,user_char,following_agentid_list,previous_tweets",
		"ada,Ada,first poster,curious and brief,[],['hello world']",
		"ben,Ben,mostly reads,quiet,[0],[]",
		"",
	}, "\n")
	if err := os.WriteFile(rosterPath, []byte(roster), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}

	cfgYAML := strings.Join([]string{
		"database: " + dbPath,
		"models:",
		"  default: qwen3:4b",
		// Port 1 refuses connections immediately, so agent turns fail
		// fast instead of waiting on timeouts.
		"  ollama_url: http://127.0.0.1:1",
		"profiles:",
		"  path: " + rosterPath,
		"  mode: twitter",
		"log_level: error",
		"",
	}, "\n")
	cfgPath := filepath.Join(dir, "aviary.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, []string{"-config", cfgPath, "-steps", "1", "run"})
	if err != nil {
		t.Fatalf("run: %v\nstdout:\n%s", err, out.String())
	}

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("reopen database: %v", err)
	}
	defer st.Close()

	users, err := st.AllUsers()
	if err != nil {
		t.Fatalf("AllUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("seeded users = %d, want 2", len(users))
	}
	if got := users[0].UserName; got != "ada" {
		t.Errorf("first user = %q, want ada", got)
	}

	// No model backend means no traced actions, but the seeded post and
	// follow must be present.
	posts, err := st.AllPosts()
	if err != nil {
		t.Fatalf("AllPosts: %v", err)
	}
	if len(posts) != 1 {
		t.Errorf("seeded posts = %d, want 1", len(posts))
	}
	followees, err := st.FolloweeIDs(1)
	if err != nil {
		t.Fatalf("FolloweeIDs: %v", err)
	}
	if len(followees) != 1 || followees[0] != 0 {
		t.Errorf("ben's followees = %v, want [0]", followees)
	}
}
