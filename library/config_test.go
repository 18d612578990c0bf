package library

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	work := t.TempDir()
	cfg, err := LoadConfig(LoadConfigInput{WorkDir: work, Env: map[string]string{}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != filepath.Join(work, "data") {
		t.Fatalf("data dir = %q", cfg.DataDir)
	}
	if cfg.BooksPath() != filepath.Join(work, "data", "books.json") {
		t.Fatalf("books path = %q", cfg.BooksPath())
	}
	if !cfg.Seed || cfg.MaxLoans != 0 || cfg.Level() != slog.LevelWarn {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Sources.Global != "" || cfg.Sources.Project != "" {
		t.Fatalf("no config files expected, got %+v", cfg.Sources)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	work, xdg := t.TempDir(), t.TempDir()
	globalPath := filepath.Join(xdg, "library", "config.json")
	writeConfig(t, globalPath, `{
		// shared across projects
		"max_loans": 5,
		"log_level": "info",
		"activity_limit": 50,
	}`)
	writeConfig(t, filepath.Join(work, ConfigFileName), `{"max_loans": 3, "users_file": "/srv/users.json"}`)

	maxLoans := 2
	cfg, err := LoadConfig(LoadConfigInput{
		WorkDir:   work,
		Env:       map[string]string{"XDG_CONFIG_HOME": xdg},
		Overrides: ConfigLayer{MaxLoans: &maxLoans},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxLoans != 2 {
		t.Fatalf("max loans = %d, want the flag value 2", cfg.MaxLoans)
	}
	if cfg.ActivityLimit != 50 || cfg.Level() != slog.LevelInfo {
		t.Fatalf("global values lost: %+v", cfg)
	}
	if cfg.UsersPath() != "/srv/users.json" {
		t.Fatalf("users path = %q", cfg.UsersPath())
	}
	if cfg.Sources.Global != globalPath || cfg.Sources.Project != filepath.Join(work, ConfigFileName) {
		t.Fatalf("sources = %+v", cfg.Sources)
	}
}

func TestLoadConfigExplicitFile(t *testing.T) {
	work := t.TempDir()
	writeConfig(t, filepath.Join(work, ConfigFileName), `{"max_loans": 3}`)
	writeConfig(t, filepath.Join(work, "alt.json"), `{"data_dir": "elsewhere", "seed": false}`)

	cfg, err := LoadConfig(LoadConfigInput{WorkDir: work, ConfigPath: "alt.json", Env: map[string]string{}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxLoans != 0 {
		t.Fatalf("project file read alongside explicit file")
	}
	if cfg.DataDir != filepath.Join(work, "elsewhere") || cfg.Seed {
		t.Fatalf("explicit file not applied: %+v", cfg)
	}

	_, err = LoadConfig(LoadConfigInput{WorkDir: work, ConfigPath: "missing.json", Env: map[string]string{}})
	if !errors.Is(err, errConfigFileNotFound) {
		t.Fatalf("got %v, want errConfigFileNotFound", err)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", `{"max_loans": }`},
		{"unknown key", `{"max_books": 3}`},
		{"negative max loans", `{"max_loans": -1}`},
		{"empty data dir", `{"data_dir": ""}`},
		{"bad log level", `{"log_level": "loud"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			work := t.TempDir()
			writeConfig(t, filepath.Join(work, ConfigFileName), tt.content)
			if _, err := LoadConfig(LoadConfigInput{WorkDir: work, Env: map[string]string{}}); !errors.Is(err, errConfigInvalid) {
				t.Fatalf("got %v, want errConfigInvalid", err)
			}
		})
	}
}

func TestFormatConfig(t *testing.T) {
	out, err := FormatConfig(DefaultConfig())
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	layer, err := parseConfigLayer([]byte(out))
	if err != nil {
		t.Fatalf("formatted config does not parse back: %v\n%s", err, out)
	}
	if layer.ActivityLimit == nil || *layer.ActivityLimit != 1000 {
		t.Fatalf("activity limit lost: %s", out)
	}
}
