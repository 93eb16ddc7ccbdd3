package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// AppConfig holds all application configuration
type AppConfig struct {
	System   SystemConfig `json:"system"`
	FirstRun bool         `json:"first_run"`
}

// SystemConfig holds print-agent settings
type SystemConfig struct {
	DataPath        string `json:"data_path"`        // sqlite + logs location
	WSPort          int    `json:"ws_port"`          // status broadcast port
	JobPollSeconds  int    `json:"job_poll_seconds"` // pending-job drain interval
	AnnounceService bool   `json:"announce_service"` // advertise the agent over mDNS
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return "", fmt.Errorf("could not determine config directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	appDir := filepath.Join(configDir, "PosPrint")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", fmt.Errorf("could not create config directory: %w", err)
	}

	return filepath.Join(appDir, "config.json"), nil
}

// DefaultDataPath returns where local state lives when unconfigured
func DefaultDataPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(configDir, "PosPrint", "data")
}

// Default returns the configuration used on first run
func Default() *AppConfig {
	return &AppConfig{
		System: SystemConfig{
			DataPath:        DefaultDataPath(),
			WSPort:          8080,
			JobPollSeconds:  10,
			AnnounceService: true,
		},
		FirstRun: true,
	}
}

// Load reads config.json, creating it with defaults on first run, then
// applies environment overrides
func Load() (*AppConfig, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("could not parse config file: %w", err)
		}
		cfg.FirstRun = false
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the configuration back to config.json
func (c *AppConfig) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("could not serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}

	return nil
}

func (c *AppConfig) applyEnvOverrides() {
	if v := os.Getenv("WS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.System.WSPort = port
		}
	}
	if v := os.Getenv("DATA_PATH"); v != "" {
		c.System.DataPath = v
	}
}

func (c *AppConfig) applyDefaults() {
	if c.System.WSPort == 0 {
		c.System.WSPort = 8080
	}
	if c.System.JobPollSeconds <= 0 {
		c.System.JobPollSeconds = 10
	}
	if c.System.DataPath == "" {
		c.System.DataPath = DefaultDataPath()
	}
}
