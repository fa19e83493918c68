// Package config handles launcher configuration file loading and the
// config/CLI merge rules.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/quasar/mc-launch/internal/errs"
)

// Config mirrors the on-disk configuration file and the CLI flag
// surface described by the process interface.
type Config struct {
	GameDir           string            `json:"game_dir"`
	ID                string            `json:"id"`
	IsolateProfile    bool              `json:"isolate_profile"`
	User              string            `json:"user"`
	AuthUUID          string            `json:"auth_uuid"`
	AuthAccessToken   string            `json:"auth_access_token"`
	UserType          string            `json:"user_type"` // msa, legacy, mojang
	JavaPath          string            `json:"java_path"`
	EnvVariables      map[string]string `json:"env_variables"`
	JVMArgs           []string          `json:"jvm_args"`
	GameArgs          []string          `json:"game_args"`
	ResolverProcesses int               `json:"resolver_processes"`
	WriteProfiles     bool              `json:"write_profiles"`
	RunBefore         string            `json:"run_before"`
	RunBeforeJava     int               `json:"run_before_java"`
	DeleteFiles       []string          `json:"delete_files"`
}

const DefaultResolverProcesses = 4

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		GameDir:           getDefaultGameDir(),
		UserType:          "legacy",
		ResolverProcesses: DefaultResolverProcesses,
		EnvVariables:      map[string]string{},
	}
}

// Load reads a configuration file from path. A missing file is not an
// error; Load returns the defaults in that case.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, &errs.ConfigError{Path: path, Err: err}
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, &errs.ConfigError{Path: path, Err: err}
	}
	if cfg.EnvVariables == nil {
		cfg.EnvVariables = map[string]string{}
	}
	return cfg, nil
}

// Save writes the config to path as indented JSON.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// EnsureDirs creates the game directory if absent.
func (c *Config) EnsureDirs() error {
	return os.MkdirAll(c.GameDir, 0o755)
}

// Merge overlays CLI-supplied values onto a copy of c per the
// collision policy: scalar CLI values win when non-zero, env_variables
// merges with the CLI map winning per key, jvm_args/game_args
// concatenate config-then-CLI.
func (c *Config) Merge(cli *Config) *Config {
	merged := *c

	if cli.GameDir != "" {
		merged.GameDir = cli.GameDir
	}
	if cli.ID != "" {
		merged.ID = cli.ID
	}
	if cli.IsolateProfile {
		merged.IsolateProfile = true
	}
	if cli.User != "" {
		merged.User = cli.User
	}
	if cli.AuthUUID != "" {
		merged.AuthUUID = cli.AuthUUID
	}
	if cli.AuthAccessToken != "" {
		merged.AuthAccessToken = cli.AuthAccessToken
	}
	if cli.UserType != "" {
		merged.UserType = cli.UserType
	}
	if cli.JavaPath != "" {
		merged.JavaPath = cli.JavaPath
	}
	if cli.ResolverProcesses > 0 {
		merged.ResolverProcesses = cli.ResolverProcesses
	}
	if cli.WriteProfiles {
		merged.WriteProfiles = true
	}
	if cli.RunBefore != "" {
		merged.RunBefore = cli.RunBefore
	}
	if cli.RunBeforeJava > 0 {
		merged.RunBeforeJava = cli.RunBeforeJava
	}

	merged.EnvVariables = make(map[string]string, len(c.EnvVariables)+len(cli.EnvVariables))
	for k, v := range c.EnvVariables {
		merged.EnvVariables[k] = v
	}
	for k, v := range cli.EnvVariables {
		merged.EnvVariables[k] = v
	}

	merged.JVMArgs = append(append([]string{}, c.JVMArgs...), cli.JVMArgs...)
	merged.GameArgs = append(append([]string{}, c.GameArgs...), cli.GameArgs...)
	merged.DeleteFiles = append(append([]string{}, c.DeleteFiles...), cli.DeleteFiles...)

	return &merged
}

func getDefaultGameDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "mc-launch")
	}
	home, _ := os.UserHomeDir()
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, ".minecraft")
	}
	return filepath.Join(home, ".minecraft")
}
