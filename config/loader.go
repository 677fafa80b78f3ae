package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "sparqlpad.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/sparqlpad"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger

	// explicitPath, when set, replaces the file discovery layers entirely.
	explicitPath string
}

// NewLoader creates a new configuration loader. path may be empty; when set
// it names an explicit config file and discovery is skipped.
func NewLoader(logger *slog.Logger, path string) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, explicitPath: path}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/sparqlpad/config.yaml)
// 3. Project config (sparqlpad.yaml in current or parent directories)
// 4. Environment variables
// An explicit --config path replaces layers 2 and 3 and must exist.
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	if l.explicitPath != "" {
		explicit, err := LoadFromFile(l.explicitPath)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config", slog.String("path", l.explicitPath))
		config.Merge(explicit)
	} else {
		// Load user config
		userConfigPath := l.userConfigPath()
		if userConfig, err := LoadFromFile(userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
			config.Merge(userConfig)
		} else if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}

		// Load project config
		projectConfigPath := l.findProjectConfig()
		if projectConfigPath != "" {
			if projectConfig, err := LoadFromFile(projectConfigPath); err == nil {
				l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
				config.Merge(projectConfig)
			} else {
				l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
			}
		} else {
			l.logger.Debug("No project config found")
		}
	}

	// Environment overlay is always last
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	// Validate final config
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() (string, error) {
	userConfigPath := l.userConfigPath()

	// Check if it already exists
	if _, err := os.Stat(userConfigPath); err == nil {
		return userConfigPath, nil // Already exists
	}

	// Create default config
	config := DefaultConfig()
	if err := config.SaveToFile(userConfigPath); err != nil {
		return "", err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return userConfigPath, nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for sparqlpad.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return ""
}
