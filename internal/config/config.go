// Package config loads and persists the server configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/screenpad/screenpad/internal/logger"
)

// Config is the server configuration.
type Config struct {
	BindAddress string `json:"bind_address" yaml:"bind_address"`
	Port        int    `json:"port" yaml:"port"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
	// JPEGQuality is the encoder quality in 1..100.
	JPEGQuality int `json:"jpeg_quality" yaml:"jpeg_quality"`
	// EnableInput controls whether virtual input devices are created.
	EnableInput bool `json:"enable_input" yaml:"enable_input"`
	// EnablePreview serves a read-only MJPEG view of the desktop at /preview.
	EnablePreview bool `json:"enable_preview" yaml:"enable_preview"`
	// PreviewFPS is the preview capture rate while viewers are connected.
	PreviewFPS int `json:"preview_fps" yaml:"preview_fps"`
}

// Manager handles loading, defaulting and saving the configuration file.
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager loads the configuration from configFile, or from the default
// location when empty. A missing file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".config", "screenpad", "config.yaml")
	if configFile != "" {
		configPath = configFile
	}

	m := &Manager{configPath: configPath}

	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config loaded")
	return m, nil
}

func defaults() *Config {
	return &Config{
		BindAddress: "0.0.0.0",
		Port:        1701,
		LogLevel:    "info",
		JPEGQuality: 85,
		EnableInput: true,
		PreviewFPS:  10,
	}
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return defaults()
	}
	cfg := *m.config
	return &cfg
}

// Save writes the configuration to disk.
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()
	if cfg == nil {
		cfg = defaults()
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SetPort overrides the server port.
func (m *Manager) SetPort(port int) {
	m.mu.Lock()
	m.config.Port = port
	m.mu.Unlock()
}

// SetLogLevel overrides the log level.
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	m.config.LogLevel = level
	m.mu.Unlock()
}

// Path returns the config file location.
func (m *Manager) Path() string {
	return m.configPath
}
