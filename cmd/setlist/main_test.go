package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"setlist/internal/testsupport"
)

func writeCLIConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[logging]
format = "json"
level = "error"
`, filepath.Join(base, "data"), filepath.Join(base, "logs"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestLocationAddListAndRemove(t *testing.T) {
	configPath := writeCLIConfig(t)
	root := t.TempDir()

	out, _, err := runCLI(t, configPath, "location", "add", root)
	if err != nil {
		t.Fatalf("location add: %v", err)
	}
	requireContains(t, out, "Registered location 1")

	out, _, err = runCLI(t, configPath, "location", "list")
	if err != nil {
		t.Fatalf("location list: %v", err)
	}
	requireContains(t, out, root)
	requireContains(t, out, "active")

	out, _, err = runCLI(t, configPath, "location", "deactivate", "1")
	if err != nil {
		t.Fatalf("location deactivate: %v", err)
	}
	requireContains(t, out, "Deactivated location 1")

	if _, _, err := runCLI(t, configPath, "location", "remove", "1"); err != nil {
		t.Fatalf("location remove: %v", err)
	}

	out, _, err = runCLI(t, configPath, "location", "list")
	if err != nil {
		t.Fatalf("location list after remove: %v", err)
	}
	requireContains(t, out, "No locations registered")
}

func TestLocationAddRejectsUnknownType(t *testing.T) {
	configPath := writeCLIConfig(t)
	_, _, err := runCLI(t, configPath, "location", "add", t.TempDir(), "--type", "floppy")
	if err == nil || !strings.Contains(err.Error(), "unknown location type") {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestScanCommandIndexesLocation(t *testing.T) {
	configPath := writeCLIConfig(t)
	root := t.TempDir()
	testsupport.WriteLiveSet(t, filepath.Join(root, "sunrise.als"), testsupport.BasicLiveSet())
	testsupport.WriteWAV(t, filepath.Join(root, "sunrise.wav"), 44100, 16, 2, 0.2)

	if _, _, err := runCLI(t, configPath, "location", "add", root); err != nil {
		t.Fatalf("location add: %v", err)
	}

	out, _, err := runCLI(t, configPath, "scan", "--location", "1")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "complete")
	requireContains(t, out, "inserted 1")

	out, _, err = runCLI(t, configPath, "exports", "scan")
	if err != nil {
		t.Fatalf("exports scan: %v", err)
	}
	requireContains(t, out, "linked 1")

	out, _, err = runCLI(t, configPath, "exports", "list")
	if err != nil {
		t.Fatalf("exports list: %v", err)
	}
	requireContains(t, out, "sunrise")
}

func TestStatusShowsIndexCounts(t *testing.T) {
	configPath := writeCLIConfig(t)
	out, _, err := runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Locations")
	requireContains(t, out, "Projects")
}

func TestConfigInitAndValidate(t *testing.T) {
	configPath := writeCLIConfig(t)

	out, _, err := runCLI(t, configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, configPath, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
}
