package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const fileHeader = `tunecache Configuration File
Generated by 'tunecache config init'. Every value below is the default;
environment variables (TUNECACHE_<SECTION>_<KEY>) override the file.`

// sectionComments documents the top-level sections of a generated file.
var sectionComments = map[string]string{
	"logging":       "Log level (DEBUG, INFO, WARN, ERROR), format (text, json) and output (stdout, stderr, or a file path)",
	"storage":       "Storage backend: auto, badger, filesystem or memory.\nauto selects filesystem on mobile runtimes and badger elsewhere.",
	"fetch":         "Remote content provider. s3:// URLs are served when s3.enabled is true.",
	"library_cache": "Offline snapshot of the library listing. Snapshots of another version are ignored.",
	"metrics":       "Prometheus endpoint",
	"gc":            "Background removal of album covers left without an album ('tunecache serve')",
	"server":        "HTTP server used by 'tunecache serve' to expose playback references",
}

// InitConfig writes the default configuration to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the default configuration to path. A .toml
// extension selects TOML, anything else YAML.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := GetDefaultConfig()

	var (
		content string
		err     error
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		content, err = generateTOML(cfg)
	} else {
		content, err = generateYAMLWithComments(cfg)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as YAML with a header and a comment
// above every section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	if doc.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(doc.Content); i += 2 {
			key := doc.Content[i]
			if comment, ok := sectionComments[key.Value]; ok {
				key.HeadComment = comment
			}
		}
	}

	root := &yaml.Node{Kind: yaml.DocumentNode, HeadComment: fileHeader, Content: []*yaml.Node{&doc}}

	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// generateTOML renders cfg as TOML. The config goes through YAML first so
// durations are written as strings ("5m0s") instead of nanoseconds.
func generateTOML(cfg *Config) (string, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	body, err := toml.Marshal(tree)
	if err != nil {
		return "", fmt.Errorf("failed to encode config as TOML: %w", err)
	}

	var sb strings.Builder
	for _, line := range strings.Split(fileHeader, "\n") {
		sb.WriteString("# ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.Write(body)
	return sb.String(), nil
}
