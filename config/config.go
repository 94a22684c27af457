// Package config handles ssaeval.toml interpreter configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "ssaeval.toml"

// Config represents an ssaeval.toml configuration.
type Config struct {
	Interpreter Interpreter `toml:"interpreter"`
	FFI         FFI         `toml:"ffi"`
	Log         Log         `toml:"log"`

	// Dir is the directory containing the ssaeval.toml file (set at load time).
	Dir string `toml:"-"`
}

// Interpreter configures the evaluator.
type Interpreter struct {
	// DebugTypeAsserts enables the type check on Pi nodes.
	DebugTypeAsserts bool `toml:"debug-type-asserts"`
}

// FFI configures the foreign-call bridge.
type FFI struct {
	// InternalLibrary is the runtime's own shared library, searched first.
	// Empty means the running process.
	InternalLibrary string `toml:"internal-library"`
	// InternalPrefix is prepended to a symbol name for the first lookup.
	InternalPrefix string `toml:"internal-prefix"`
	// WarnOpaque logs every opaque-pointer fallback.
	WarnOpaque bool `toml:"warn-opaque"`
	// Libraries maps logical library names to sonames or paths.
	Libraries map[string]string `toml:"libraries"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		FFI: FFI{
			InternalPrefix: "i",
			WarnOpaque:     true,
			Libraries:      map[string]string{},
		},
	}
}

// Parse decodes TOML data over the defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	if c.FFI.Libraries == nil {
		c.FFI.Libraries = map[string]string{}
	}
	return c, nil
}

// Load parses an ssaeval.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find an ssaeval.toml file and loads
// it. Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// ResolveLibrary maps a logical library name through the alias table.
func (c *Config) ResolveLibrary(name string) string {
	if alias, ok := c.FFI.Libraries[name]; ok {
		return alias
	}
	return name
}

// ConfigureLogging applies the [log] section to commonlog.
func ConfigureLogging(c *Config) {
	var path *string
	if c.Log.Path != "" {
		p := c.Log.Path
		path = &p
	}
	commonlog.Configure(c.Log.Verbosity, path)
}
