package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/flok/internal/config"
)

const sampleProject = `flocks:
  - display_name: api
    processes:
      - display_name: server
        command: sleep 1
`

// executeCommand runs a cobra command with args and returns captured output.
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func writeProject(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func withTTY(t *testing.T, tty bool) {
	t.Helper()
	old := stdinIsTerminal
	stdinIsTerminal = func() bool { return tty }
	t.Cleanup(func() { stdinIsTerminal = old })
}

func TestRootCommand(t *testing.T) {
	root := NewRootCommand()
	if root.Use != "flok" {
		t.Errorf("Use = %q, want flok", root.Use)
	}
	for _, name := range []string{"config", "log-level", "log-file", "grace"} {
		if root.Flags().Lookup(name) == nil {
			t.Errorf("missing --%s flag", name)
		}
	}
	if root.Flags().ShorthandLookup("c") == nil {
		t.Error("missing -c shorthand")
	}
	found := false
	for _, c := range root.Commands() {
		if c.Name() == "version" {
			found = true
		}
	}
	if !found {
		t.Error("missing version subcommand")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(NewRootCommand(), "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "flok "+Version) {
		t.Errorf("version output = %q", out)
	}
}

func TestRunRefusesNonTerminal(t *testing.T) {
	withTTY(t, false)
	dir := t.TempDir()
	writeProject(t, dir, "flok.yaml", sampleProject)
	chdir(t, dir)

	_, err := executeCommand(NewRootCommand())
	if !errors.Is(err, ErrNotTerminal) {
		t.Errorf("error = %v, want ErrNotTerminal", err)
	}
}

func TestRunMissingProject(t *testing.T) {
	withTTY(t, true)
	chdir(t, t.TempDir())

	_, err := executeCommand(NewRootCommand())
	if !errors.Is(err, config.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRunInvalidProject(t *testing.T) {
	withTTY(t, true)
	dir := t.TempDir()
	path := writeProject(t, dir, "custom.toml", "flocks = []\n")

	_, err := executeCommand(NewRootCommand(), "--config", path)
	var verrs config.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Errorf("error = %v, want ValidationErrors", err)
	}
}

func TestRunRejectsArgs(t *testing.T) {
	if _, err := executeCommand(NewRootCommand(), "extra"); err == nil {
		t.Error("positional argument accepted")
	}
}

func TestResolveSettings(t *testing.T) {
	env := map[string]string{
		"FLOK_LOG_LEVEL":     "debug",
		"FLOK_GRACE_TIMEOUT": "3s",
		"FLOK_CONFIG":        "from-env.yaml",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	root := NewRootCommand()
	if err := root.ParseFlags([]string{"--grace", "7s", "--log-file", "/tmp/x.log"}); err != nil {
		t.Fatal(err)
	}
	f := flags{grace: 7 * time.Second, logFile: "/tmp/x.log"}

	s, err := resolveSettings(root, f, lookup)
	if err != nil {
		t.Fatalf("resolveSettings() error = %v", err)
	}
	if s.GraceTimeout != 7*time.Second {
		t.Errorf("GraceTimeout = %v, want flag value 7s", s.GraceTimeout)
	}
	if s.LogLevel != "debug" || s.ConfigPath != "from-env.yaml" {
		t.Errorf("env values not applied: %+v", s)
	}
	if s.LogFile != "/tmp/x.log" {
		t.Errorf("LogFile = %q", s.LogFile)
	}
	if s.RedrawInterval != config.DefaultRedrawInterval {
		t.Errorf("RedrawInterval = %v, want default", s.RedrawInterval)
	}
}

func TestResolveSettingsErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"bad env duration", map[string]string{"FLOK_GRACE_TIMEOUT": "soon"}, nil},
		{"bad level", map[string]string{"FLOK_LOG_LEVEL": "loud"}, nil},
		{"zero grace flag", nil, []string{"--grace", "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := NewRootCommand()
			if err := root.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			lookup := func(k string) (string, bool) {
				v, ok := tt.env[k]
				return v, ok
			}
			if _, err := resolveSettings(root, flags{}, lookup); err == nil {
				t.Error("resolveSettings() succeeded")
			}
		})
	}
}

func TestLoadProjectDiscovers(t *testing.T) {
	dir := t.TempDir()
	want := writeProject(t, dir, "flok.yml", sampleProject)

	set, path, err := loadProject(config.DefaultSettings(), dir)
	if err != nil {
		t.Fatalf("loadProject() error = %v", err)
	}
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if len(set.Flocks) != 1 || set.Flocks[0].Processes[0].Command != "sleep 1" {
		t.Errorf("set = %+v", set)
	}
}

func TestExecuteExitCode(t *testing.T) {
	var stderr bytes.Buffer
	if code := Execute([]string{"version"}, &stderr); code != 0 {
		t.Errorf("Execute(version) = %d, want 0", code)
	}
	if code := Execute([]string{"--log-level", "loud"}, &stderr); code != 1 {
		t.Errorf("Execute(bad level) = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "log-level") {
		t.Errorf("stderr = %q", stderr.String())
	}
}
