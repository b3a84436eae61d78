package process

import (
	"fmt"
	"os"
	"strings"
)

// FallbackShell is used when $SHELL is unset.
const FallbackShell = "sh"

// ResolveShell returns $SHELL as reported by getenv, or FallbackShell.
func ResolveShell(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if sh := strings.TrimSpace(getenv("SHELL")); sh != "" {
		return sh
	}
	return FallbackShell
}

// writeScript stores command in a temporary file so arbitrary shell syntax
// runs unchanged. The file lives in the OS temp directory, never under
// the watched tree.
func writeScript(command string) (string, error) {
	f, err := os.CreateTemp("", "flok-*.sh")
	if err != nil {
		return "", fmt.Errorf("create script: %w", err)
	}
	path := f.Name()

	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	if _, err := f.WriteString(command); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write script: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close script: %w", err)
	}
	if err := os.Chmod(path, 0o700); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("chmod script: %w", err)
	}
	return path, nil
}
