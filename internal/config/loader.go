package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the project file looked up when none is given.
const DefaultFile = "flok.yaml"

// Candidates are probed in order by Discover.
var Candidates = []string{"flok.yaml", "flok.yml", "flok.toml"}

// document mirrors the file layout. watch stays untyped because it may be
// a bool or a mapping.
type document struct {
	Flocks []struct {
		DisplayName string `yaml:"display_name" toml:"display_name"`
		Processes   []struct {
			DisplayName string `yaml:"display_name" toml:"display_name"`
			Command     string `yaml:"command" toml:"command"`
			Watch       any    `yaml:"watch" toml:"watch"`
		} `yaml:"processes" toml:"processes"`
	} `yaml:"flocks" toml:"flocks"`
}

// Discover returns the first candidate file present in dir.
func Discover(dir string) (string, error) {
	for _, name := range Candidates {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s (tried %s)", ErrNotFound, dir, strings.Join(Candidates, ", "))
}

// Load reads, decodes and validates the file at path.
func Load(path string) (*FlockSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes data, choosing the format from the path's extension.
// Unknown extensions are treated as YAML.
func Parse(path string, data []byte) (*FlockSet, error) {
	var doc document
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = decodeTOML(data, &doc)
	default:
		err = decodeYAML(data, &doc)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Message: err.Error(), Err: err}
	}

	set, verrs := convert(&doc)
	if len(verrs) > 0 {
		return nil, verrs
	}
	return set, nil
}

func decodeYAML(data []byte, doc *document) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeTOML(data []byte, doc *document) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(doc)
}

func convert(doc *document) (*FlockSet, ValidationErrors) {
	var errs ValidationErrors
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if len(doc.Flocks) == 0 {
		fail("flocks", "at least one flock is required")
	}

	set := &FlockSet{Flocks: make([]Flock, 0, len(doc.Flocks))}
	for i, df := range doc.Flocks {
		field := fmt.Sprintf("flocks[%d]", i)
		if strings.TrimSpace(df.DisplayName) == "" {
			fail(field+".display_name", "must not be empty")
		}
		if len(df.Processes) == 0 {
			fail(field+".processes", "at least one process is required")
		}

		flock := Flock{DisplayName: df.DisplayName, Processes: make([]Process, 0, len(df.Processes))}
		for j, dp := range df.Processes {
			pfield := fmt.Sprintf("%s.processes[%d]", field, j)
			if strings.TrimSpace(dp.DisplayName) == "" {
				fail(pfield+".display_name", "must not be empty")
			}
			if strings.TrimSpace(dp.Command) == "" {
				fail(pfield+".command", "must not be empty")
			}
			watch, err := parseWatch(dp.Watch)
			if err != nil {
				fail(pfield+".watch", "%v", err)
			}
			flock.Processes = append(flock.Processes, Process{
				DisplayName: dp.DisplayName,
				Command:     dp.Command,
				Watch:       watch,
			})
		}
		set.Flocks = append(set.Flocks, flock)
	}
	return set, errs
}

// parseWatch accepts a bool, or a mapping with an optional
// debounce_seconds number.
func parseWatch(raw any) (Watch, error) {
	switch v := raw.(type) {
	case nil:
		return Watch{}, nil
	case bool:
		if !v {
			return Watch{}, nil
		}
		return Watch{Enabled: true, Debounce: DefaultDebounce}, nil
	case map[string]any:
		w := Watch{Enabled: true, Debounce: DefaultMappingDebounce}
		for key, val := range v {
			if key != "debounce_seconds" {
				return Watch{}, fmt.Errorf("unknown key %q", key)
			}
			if val == nil {
				continue
			}
			secs, ok := toSeconds(val)
			if !ok {
				return Watch{}, fmt.Errorf("debounce_seconds must be a number, got %T", val)
			}
			if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
				return Watch{}, fmt.Errorf("debounce_seconds must be a non-negative number, got %v", secs)
			}
			w.Debounce = time.Duration(secs * float64(time.Second))
		}
		return w, nil
	default:
		return Watch{}, fmt.Errorf("must be a bool or a mapping, got %T", raw)
	}
}

func toSeconds(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
