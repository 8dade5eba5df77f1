package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultAddress = "http://127.0.0.1:8000"

// CLIConfig holds the server address and the tokens saved by login.
type CLIConfig struct {
	Address      string `yaml:"address"`
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
	TLSCACert    string `yaml:"tls_ca_cert"`
}

var (
	cfg        CLIConfig
	configFile string
)

// configPath resolves the config file: --config, then $AUTHCTL_CONFIG, then ~/.authctl/config.yaml.
func configPath() string {
	if configFile != "" {
		return configFile
	}
	if v := os.Getenv("AUTHCTL_CONFIG"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".authctl", "config.yaml")
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (CLIConfig, error) {
	c := CLIConfig{Address: defaultAddress}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parsing %s: %w", path, err)
	}
	if c.Address == "" {
		c.Address = defaultAddress
	}
	return c, nil
}

func saveConfig(path string, c CLIConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
