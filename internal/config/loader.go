package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr        string `json:"addr" yaml:"addr" toml:"addr"`
	NetworksDir string `json:"networks_dir" yaml:"networks_dir" toml:"networks_dir"`
	// MaxBatch is the default per-session batch capacity.
	MaxBatch int `json:"max_batch" yaml:"max_batch" toml:"max_batch"`
	// Precision and Fusion are session defaults, overridable per load.
	Precision string `json:"precision" yaml:"precision" toml:"precision"`
	Fusion    string `json:"fusion" yaml:"fusion" toml:"fusion"`
	// TablebaseCache sizes the probe cache; 0 disables caching.
	TablebaseCache int `json:"tablebase_cache" yaml:"tablebase_cache" toml:"tablebase_cache"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
