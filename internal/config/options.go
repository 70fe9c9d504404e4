package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Options is the top-level watc.yaml configuration.
type Options struct {
	Optimize OptimizeOptions `yaml:"optimize"`
	Codegen  CodegenOptions  `yaml:"codegen"`
	Cache    CacheOptions    `yaml:"cache"`
	Server   ServerOptions   `yaml:"server"`
}

// OptimizeOptions switches the optimizer's rewrites individually.
type OptimizeOptions struct {
	FoldConstants     bool `yaml:"fold_constants"`
	EliminateDeadCode bool `yaml:"eliminate_dead_code"`
}

type CodegenOptions struct {
	// TailCalls emits return_call for recursive calls in tail position.
	TailCalls bool `yaml:"tail_calls"`

	// LineComments emits `;; line N` before each statement.
	LineComments bool `yaml:"line_comments"`

	// Entry is the exported name of the function holding the top-level code.
	Entry string `yaml:"entry,omitempty"`
}

type CacheOptions struct {
	// Path is the sqlite database file. Empty disables the cache.
	Path string `yaml:"path,omitempty"`
}

type ServerOptions struct {
	Addr string `yaml:"addr,omitempty"`
}

// Defaults returns the options used when no watc.yaml is present.
func Defaults() Options {
	return Options{
		Optimize: OptimizeOptions{FoldConstants: true, EliminateDeadCode: true},
		Codegen:  CodegenOptions{TailCalls: true, LineComments: true, Entry: DefaultEntryName},
		Server:   ServerOptions{Addr: DefaultAddr},
	}
}

// LoadOptions reads and parses a watc.yaml file.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseOptions(data, path)
}

// ParseOptions parses watc.yaml content. Keys missing from the file keep
// their default values. The path argument is used only for error messages.
func ParseOptions(data []byte, path string) (Options, error) {
	opts := Defaults()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	opts.setDefaults()
	if err := opts.validate(path); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// FindConfig searches for watc.yaml starting from dir and walking up to
// parent directories. It returns "" and a nil error when nothing is found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// LoadForSource finds and loads the configuration governing sourcePath,
// falling back to Defaults.
func LoadForSource(sourcePath string) (Options, string, error) {
	path, err := FindConfig(filepath.Dir(sourcePath))
	if err != nil || path == "" {
		return Defaults(), "", err
	}
	opts, err := LoadOptions(path)
	return opts, path, err
}

var wasmIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.$]*$`)

func (o *Options) validate(path string) error {
	if !wasmIdent.MatchString(o.Codegen.Entry) {
		return fmt.Errorf("%s: codegen.entry %q is not a valid function name", path, o.Codegen.Entry)
	}
	return nil
}

func (o *Options) setDefaults() {
	if o.Codegen.Entry == "" {
		o.Codegen.Entry = DefaultEntryName
	}
	if o.Server.Addr == "" {
		o.Server.Addr = DefaultAddr
	}
}
