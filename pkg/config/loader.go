package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// GlobalConfigDir is the directory for global config under the user config dir.
const GlobalConfigDir = "netpanel"

// LocalConfigFileNames are the names searched for local config, in order.
var LocalConfigFileNames = []string{".netpanelrc.yaml", ".netpanelrc.yml"}

// GlobalConfigFileNames are the names searched for global config, in order.
var GlobalConfigFileNames = []string{"config.yaml", "config.yml"}

// DotEnvFile is the optional file of NETPANEL_* variables in the current directory.
const DotEnvFile = ".env"

// ConfigError is a configuration file error.
type ConfigError struct {
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Path + ": " + e.Message
}

// FindLocalConfig searches the current directory for a local config file.
// It returns "" when there is none.
func FindLocalConfig() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findFirst(cwd, LocalConfigFileNames), nil
}

// FindGlobalConfig returns the path to the global config file, or "" when
// there is none.
func FindGlobalConfig() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		//nolint:nilerr // no config dir means no global config
		return "", nil
	}
	return findFirst(filepath.Join(configDir, GlobalConfigDir), GlobalConfigFileNames), nil
}

func findFirst(dir string, names []string) string {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadConfigFile loads a Config from a YAML file. The keys present in the
// file are recorded in SetFields.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Path: path, Message: err.Error()}
	}
	var keys map[string]any
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return nil, &ConfigError{Path: path, Message: err.Error()}
	}

	cfg.Sources = make(map[string]string)
	cfg.SetFields = make(map[string]bool, len(keys))
	for k := range keys {
		cfg.SetFields[k] = true
	}
	return &cfg, nil
}

// LoadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadAll loads configuration from every source and merges them.
// Precedence: env > explicit file > local config > global config > defaults.
// An explicit path (from --config or NETPANEL_CONFIG) must exist.
func LoadAll(explicitPath string, logger *slog.Logger) (*Config, error) {
	if err := LoadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	cfg := NewDefault()

	if globalPath, err := FindGlobalConfig(); err == nil && globalPath != "" {
		if err := mergeFile(cfg, globalPath, SourceGlobal, logger); err != nil {
			return nil, err
		}
	}

	if localPath, err := FindLocalConfig(); err == nil && localPath != "" {
		if err := mergeFile(cfg, localPath, SourceLocal, logger); err != nil {
			return nil, err
		}
	}

	if explicitPath == "" {
		explicitPath = os.Getenv(EnvConfig)
	}
	if explicitPath != "" {
		if err := mergeFile(cfg, explicitPath, SourceFile, logger); err != nil {
			return nil, err
		}
	}

	if err := LoadEnvConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path, source string, logger *slog.Logger) error {
	fileCfg, err := LoadConfigFile(path)
	if err != nil {
		return err
	}
	if logger != nil {
		logger.Debug("loaded config file", "path", path, "source", source)
	}
	MergeConfig(cfg, fileCfg, source)
	return nil
}
