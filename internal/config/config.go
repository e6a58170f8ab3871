// Package config loads the server configuration from an optional YAML
// file and the environment. The environment always wins, so the API
// token does not need to be stored on disk.
package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

const (
	// EnvToken is the environment variable holding the Qarnot API token.
	EnvToken = "QARNOT_TOKEN"
	// EnvClusterURL optionally overrides the cluster API endpoint.
	EnvClusterURL = "QARNOT_CLUSTER_URL"
	// EnvStorageURL optionally overrides the storage endpoint.
	EnvStorageURL = "QARNOT_STORAGE_URL"
)

// Config is the server configuration.
type Config struct {
	Token      string `json:"token,omitempty" yaml:"token,omitempty"`
	ClusterURL string `json:"cluster_url,omitempty" yaml:"cluster_url,omitempty"`
	StorageURL string `json:"storage_url,omitempty" yaml:"storage_url,omitempty"`
}

// Load reads YAML configuration from a path and applies environment
// overrides. If path is empty, it resolves
// $XDG_CONFIG_HOME/mcp-server-qarnot/config.yaml or
// ~/.config/mcp-server-qarnot/config.yaml; a missing default file is not
// an error, a missing explicit file is.
func Load(path string) (*Config, error) {
	cfg := new(Config)

	explicit := path != ""
	if path == "" {
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, _ := os.UserHomeDir()
			base = filepath.Join(home, ".config")
		}
		path = filepath.Join(base, "mcp-server-qarnot", "config.yaml")
	}

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config")
		}
	case explicit || !os.IsNotExist(err):
		return nil, errors.Wrap(err, "failed to read config")
	}

	if v := os.Getenv(EnvToken); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv(EnvClusterURL); v != "" {
		cfg.ClusterURL = v
	}
	if v := os.Getenv(EnvStorageURL); v != "" {
		cfg.StorageURL = v
	}

	if cfg.Token == "" {
		return nil, errors.Errorf("%s is not set", EnvToken)
	}
	return cfg, nil
}
