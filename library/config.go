package library

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// ConfigFileName is the project config file looked up in the working directory.
const ConfigFileName = ".library.json"

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigInvalid      = errors.New("invalid config file")
)

// Config holds the resolved settings of a library session.
type Config struct {
	DataDir       string `json:"data_dir"`
	BooksFile     string `json:"books_file"`
	UsersFile     string `json:"users_file"`
	ActivityFile  string `json:"activity_file"`
	Seed          bool   `json:"seed"`
	MaxLoans      int    `json:"max_loans"`
	ActivityLimit int    `json:"activity_limit"`
	LogLevel      string `json:"log_level"`

	// Sources tracks which config files were loaded
	Sources ConfigSources `json:"-"`
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string
	Project string
}

// ConfigLayer is one source of settings. Nil fields leave the value below
// them untouched.
type ConfigLayer struct {
	DataDir       *string `json:"data_dir"`
	BooksFile     *string `json:"books_file"`
	UsersFile     *string `json:"users_file"`
	ActivityFile  *string `json:"activity_file"`
	Seed          *bool   `json:"seed"`
	MaxLoans      *int    `json:"max_loans"`
	ActivityLimit *int    `json:"activity_limit"`
	LogLevel      *string `json:"log_level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DataDir:       "data",
		BooksFile:     "books.json",
		UsersFile:     "users.json",
		ActivityFile:  "activity.json",
		Seed:          true,
		ActivityLimit: 1000,
		LogLevel:      "warn",
	}
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDir    string            // if empty, os.Getwd() is used
	ConfigPath string            // --config flag value; the file must exist
	Overrides  ConfigLayer       // CLI flags
	Env        map[string]string // environment variables
}

// LoadConfig resolves configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/library/config.json or ~/.config/library/config.json)
// 3. Project config (.library.json, if it exists) or the explicit config file
// 4. CLI overrides.
//
// DataDir is returned as an absolute path.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDir
	if workDir == "" {
		var err error
		if workDir, err = os.Getwd(); err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
	}

	cfg := DefaultConfig()

	if path := globalConfigPath(input.Env); path != "" {
		layer, loaded, err := loadConfigLayer(path, false)
		if err != nil {
			return Config{}, err
		}
		if loaded {
			cfg.Sources.Global = path
			cfg = cfg.merge(layer)
		}
	}

	projectPath, mustExist := filepath.Join(workDir, ConfigFileName), false
	if input.ConfigPath != "" {
		projectPath, mustExist = input.ConfigPath, true
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}
	}
	layer, loaded, err := loadConfigLayer(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}
	if loaded {
		cfg.Sources.Project = projectPath
		cfg = cfg.merge(layer)
	}

	cfg = cfg.merge(input.Overrides)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	if !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(workDir, cfg.DataDir)
	}
	return cfg, nil
}

func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "library", "config.json")
	}
	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "library", "config.json")
	}
	return ""
}

// loadConfigLayer reads a JSONC config file. Missing files are only an
// error when mustExist is set.
func loadConfigLayer(path string, mustExist bool) (ConfigLayer, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if mustExist {
				return ConfigLayer{}, false, fmt.Errorf("%w: %s", errConfigFileNotFound, path)
			}
			return ConfigLayer{}, false, nil
		}
		return ConfigLayer{}, false, fmt.Errorf("read config %s: %w", path, err)
	}

	layer, err := parseConfigLayer(data)
	if err != nil {
		return ConfigLayer{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}
	return layer, true, nil
}

func parseConfigLayer(data []byte) (ConfigLayer, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return ConfigLayer{}, fmt.Errorf("invalid JSONC: %w", err)
	}
	var layer ConfigLayer
	if err := recordJSON.Unmarshal(standardized, &layer); err != nil {
		return ConfigLayer{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return layer, nil
}

func (c Config) merge(l ConfigLayer) Config {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setString(&c.DataDir, l.DataDir)
	setString(&c.BooksFile, l.BooksFile)
	setString(&c.UsersFile, l.UsersFile)
	setString(&c.ActivityFile, l.ActivityFile)
	setString(&c.LogLevel, l.LogLevel)
	if l.Seed != nil {
		c.Seed = *l.Seed
	}
	if l.MaxLoans != nil {
		c.MaxLoans = *l.MaxLoans
	}
	if l.ActivityLimit != nil {
		c.ActivityLimit = *l.ActivityLimit
	}
	return c
}

func (c Config) validate() error {
	for name, v := range map[string]string{
		"data_dir":      c.DataDir,
		"books_file":    c.BooksFile,
		"users_file":    c.UsersFile,
		"activity_file": c.ActivityFile,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s cannot be empty", errConfigInvalid, name)
		}
	}
	if c.MaxLoans < 0 {
		return fmt.Errorf("%w: max_loans cannot be negative", errConfigInvalid)
	}
	if c.ActivityLimit < 0 {
		return fmt.Errorf("%w: activity_limit cannot be negative", errConfigInvalid)
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("%w: log_level: %w", errConfigInvalid, err)
	}
	return nil
}

// Level returns the configured slog level.
func (c Config) Level() slog.Level {
	var lvl slog.Level
	_ = lvl.UnmarshalText([]byte(c.LogLevel))
	return lvl
}

// BooksPath returns the catalog file location.
func (c Config) BooksPath() string { return c.resolve(c.BooksFile) }

// UsersPath returns the user file location.
func (c Config) UsersPath() string { return c.resolve(c.UsersFile) }

// ActivityPath returns the activity log location.
func (c Config) ActivityPath() string { return c.resolve(c.ActivityFile) }

func (c Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// FormatConfig returns the config as formatted JSON.
func FormatConfig(cfg Config) (string, error) {
	data, err := recordJSON.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}
	return string(data), nil
}
