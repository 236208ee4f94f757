package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

const defaultServerURL = "http://localhost:8080"

// fileConfig is the optional on-disk config (~/.dlqadmin.yaml by default)
// used to avoid repeating --server/--api-key on every invocation.
type fileConfig struct {
	ServerURL string `yaml:"server_url"`
	APIKey    string `yaml:"api_key"`
	Format    string `yaml:"format"`
}

// loadFileConfig reads path if it exists. A missing file is not an error;
// dlqadmin falls back to flags and defaults.
func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileConfig{}, nil
		}

		return nil, err
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dlqadmin.yaml"
	}

	return home + "/.dlqadmin.yaml"
}
