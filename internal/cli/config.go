package cli

import (
	"encoding/json"
	"fmt"
	"os"

	semver "github.com/Masterminds/semver/v3"

	dluaerrors "github.com/dlua-lang/dlua/internal/errors"
	"github.com/dlua-lang/dlua/internal/position"
)

// ConfigFileName is looked up in the working directory when no explicit
// config path is given.
const ConfigFileName = "dlua.json"

// DefaultLevel is the compile level used when neither config nor flags set one.
const DefaultLevel = "info"

// DefaultLevels returns the built-in compile level table.
func DefaultLevels() map[string]int {
	return map[string]int{
		"debug":   0,
		"info":    1,
		"release": 2,
	}
}

// Config represents the dlua.json project configuration
type Config struct {
	// RequirePaths lists require search paths, each either a directory
	// prefix or a template containing a single '?'.
	RequirePaths []string `json:"require_paths,omitempty"`
	// Level is the active compile level name.
	Level string `json:"level,omitempty"`
	// Levels maps level names to their ordering.
	Levels map[string]int `json:"levels,omitempty"`
	// CompoundAssign enables the += / -= / *= / /= rewrite pass.
	CompoundAssign bool `json:"compound_assign,omitempty"`
	// Requires is a semver constraint the running dlua must satisfy.
	Requires string `json:"dlua,omitempty"`
	Verbose  bool   `json:"verbose,omitempty"`
	Debug    bool   `json:"debug,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		RequirePaths: []string{"."},
		Level:        DefaultLevel,
		Levels:       DefaultLevels(),
	}
}

// LoadConfig loads configuration from file. A missing file yields the
// defaults; a file that cannot be parsed is an error.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Default config if file doesn't exist
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if len(config.RequirePaths) == 0 {
		config.RequirePaths = []string{"."}
	}
	if len(config.Levels) == 0 {
		config.Levels = DefaultLevels()
	}
	if config.Level == "" {
		config.Level = DefaultLevel
	}

	if err := config.CheckVersion(Version); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig(configPath string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CheckVersion verifies the running tool version against the "dlua"
// constraint, if one is set.
func (c *Config) CheckVersion(version string) error {
	if c.Requires == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(c.Requires)
	if err != nil {
		return fmt.Errorf("invalid dlua version constraint %q: %w", c.Requires, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid tool version %q: %w", version, err)
	}
	if !constraint.Check(v) {
		return dluaerrors.NewStandardError(dluaerrors.CategoryConfig, dluaerrors.CodeVersionConstraint,
			fmt.Sprintf("project requires dlua %s, running %s", c.Requires, version),
			position.Position{}, map[string]interface{}{"constraint": c.Requires, "version": version})
	}
	return nil
}

// LevelValue returns the numeric value of the active level.
func (c *Config) LevelValue() (int, error) {
	v, ok := c.Levels[c.Level]
	if !ok {
		return 0, dluaerrors.NewStandardError(dluaerrors.CategoryConfig, dluaerrors.CodeUnknownLevel,
			fmt.Sprintf("unknown compile level %q", c.Level), position.Position{}, nil)
	}
	return v, nil
}
