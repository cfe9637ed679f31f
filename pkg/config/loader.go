package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Extraction modes for pipelines with several extractors.
const (
	ModeJoin   = "join"
	ModeConcat = "concat"
	ModeZip    = "zip"
)

// Pipeline is a pipeline definition file.
//
//	extract:
//	  mode: concat
//	  sources: [./a.csv, https://example.com/b.xlsx]
//	transform: [json]
//	load: ./out.json
//	settings:
//	  t:
//	    pretty: true
type Pipeline struct {
	Extract   ExtractSpec `yaml:"extract"`
	Transform []string    `yaml:"transform"`
	Load      string      `yaml:"load"`
	// Settings uses the same keys as the environment, nested by dots, and
	// ranks below both flags and ETL_ variables.
	Settings map[string]interface{} `yaml:"settings"`
}

// ExtractSpec lists extractor identifiers and how to combine them.
type ExtractSpec struct {
	Sources []string `yaml:"sources"`
	Mode    string   `yaml:"mode"`
}

// Validate checks the definition for structural mistakes. Whether the
// identifiers resolve is left to the registry.
func (p *Pipeline) Validate() error {
	if len(p.Extract.Sources) == 0 {
		return fmt.Errorf("pipeline has no extractors")
	}
	for i, s := range p.Extract.Sources {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("extractor %d is blank", i)
		}
	}
	for i, t := range p.Transform {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("transform %d is blank", i)
		}
	}
	switch p.Extract.Mode {
	case "", ModeJoin, ModeConcat, ModeZip:
	default:
		return fmt.Errorf("unknown extract mode %q", p.Extract.Mode)
	}
	return nil
}

// Apply merges the definition's settings into v beneath flags and
// environment variables.
func (p *Pipeline) Apply(v *viper.Viper) error {
	if len(p.Settings) == 0 {
		return nil
	}
	if err := v.MergeConfigMap(p.Settings); err != nil {
		return fmt.Errorf("failed to merge pipeline settings: %w", err)
	}
	return nil
}

// LoadPipeline reads and validates a pipeline definition.
func LoadPipeline(filePath string) (*Pipeline, error) {
	var p Pipeline
	if err := Load(filePath, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline %s: %w", filePath, err)
	}
	return &p, nil
}

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller and validated
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// Unknown variables become empty strings.
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
