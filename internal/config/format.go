package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FormatFromPath returns json, yaml or toml by file extension.
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json", nil
	case ".yaml", ".yml":
		return "yaml", nil
	case ".toml":
		return "toml", nil
	}
	return "", fmt.Errorf("unsupported config file extension: %q", filepath.Ext(path))
}

// Marshal config into one of supported formats.
func Marshal(conf Config, format string) ([]byte, error) {
	switch format {
	case "json":
		return json.MarshalIndent(conf, "", "  ")
	case "yaml":
		return yaml.Marshal(conf)
	case "toml":
		return toml.Marshal(conf)
	}
	return nil, fmt.Errorf("unsupported config format: %q", format)
}
