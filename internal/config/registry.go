package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "automower"
	configFile = "config.yaml"

	// ConfigDirEnvVar overrides the config directory
	ConfigDirEnvVar = "AUTOMOWER_CONFIG_DIR"
)

var (
	// Global registry instance (loaded lazily)
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
	globalRegistryErr  error

	// Mutex for thread-safe file operations
	fileMutex sync.Mutex
)

// GetConfigDir returns the directory holding the config file:
//   - $AUTOMOWER_CONFIG_DIR when set
//   - Windows: the roaming AppData directory
//   - elsewhere: $XDG_CONFIG_HOME/automower, falling back to ~/.config/automower
func GetConfigDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnvVar); dir != "" {
		return dir, nil
	}

	if runtime.GOOS == "windows" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine config directory: %w", err)
		}
		return filepath.Join(base, appName), nil
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// ensureDir creates the directory holding path, user-only
func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// LoadRegistry loads the configuration registry from disk.
// If the file doesn't exist, returns a new default registry.
// Thread-safe - multiple calls will return the same instance.
func LoadRegistry() (*Registry, error) {
	globalRegistryOnce.Do(func() {
		globalRegistry, globalRegistryErr = loadRegistryFromDisk()
	})
	return globalRegistry, globalRegistryErr
}

// loadRegistryFromDisk performs the actual file loading.
func loadRegistryFromDisk() (*Registry, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFile(configPath)
}

// LoadFile reads a registry from path. A missing file yields a new default
// registry.
func LoadFile(configPath string) (*Registry, error) {
	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if registry.Version != 1 {
		return nil, fmt.Errorf("unsupported config version: %d (expected 1)", registry.Version)
	}

	// Ensure maps are initialized
	if registry.Mowers == nil {
		registry.Mowers = make(map[string]*Mower)
	}
	if registry.Commands == nil {
		registry.Commands = make(map[string]string)
	}
	if registry.Preferences == nil {
		registry.Preferences = defaultPreferences()
	}

	if _, err := registry.CommandOverrides(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return &registry, nil
}

// Save writes the registry to the default config path
func (r *Registry) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return r.SaveFile(configPath)
}

// SaveFile writes the registry to path, replacing the file atomically
func (r *Registry) SaveFile(configPath string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := ensureDir(configPath); err != nil {
		return err
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append([]byte(fileHeader), data...)

	tmp, err := os.CreateTemp(filepath.Dir(configPath), configFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), configPath); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

const fileHeader = `# automower configuration
#
# mowers:      known mowers by BLE address (nickname, channel id, model)
# preferences: transport and request defaults, overridden by flags
# commands:    request command ids for kinds without a built-in id,
#              e.g. battery-level: "0a1014"
#
# The operator PIN is never written here.

`
