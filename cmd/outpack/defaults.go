package main

import (
	"os"

	"go.yaml.in/yaml/v3"
)

// defaults holds operator-wide settings read from an optional YAML file
// (--config), layered beneath whatever flags a subcommand is given.
// Unrelated to a repository's own on-disk config.json, which is JSON
// owned by the config package.
type defaults struct {
	HashAlgorithm string `yaml:"hash_algorithm"`
	LogLevel      string `yaml:"log_level"`
}

func loadDefaults(path string) (defaults, error) {
	var d defaults
	if path == "" {
		return d, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return d, err
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return d, err
	}
	return d, nil
}
