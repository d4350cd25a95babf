package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the optional single-file configuration schema. Values map
// onto the CLI flags; explicit flags take precedence. Pointer fields
// distinguish "absent" from zero values.
type FileConfig struct {
	URL          string `yaml:"url" json:"url"`
	Format       string `yaml:"format" json:"format"`
	OutDir       string `yaml:"outDir" json:"outDir"`
	FilenameBase string `yaml:"filenameBase" json:"filenameBase"`
	Stdout       *bool  `yaml:"stdout" json:"stdout"`

	JSON struct {
		Indent      *int `yaml:"indent" json:"indent"`
		EnsureASCII bool `yaml:"ensureAscii" json:"ensureAscii"`
	} `yaml:"json" json:"json"`

	Fetch struct {
		TimeoutSeconds int    `yaml:"timeoutSeconds" json:"timeoutSeconds"`
		Retries        *int   `yaml:"retries" json:"retries"`
		MaxRedirects   *int   `yaml:"maxRedirects" json:"maxRedirects"`
		UserAgent      string `yaml:"userAgent" json:"userAgent"`
	} `yaml:"fetch" json:"fetch"`
}

// LoadConfigFile reads YAML or JSON into FileConfig, choosing the parser by
// file extension and trying YAML then JSON when the extension is unknown.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if yerr := yaml.Unmarshal(b, &fc); yerr != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", yerr, jerr)
			}
		}
	}
	return fc, nil
}

// Apply copies file values into cfg for every option not already pinned by
// the command line. set reports whether the named flag was given explicitly.
func (fc FileConfig) Apply(cfg *Config, set func(flag string) bool) {
	if fc.URL != "" && !set("url") {
		cfg.URL = fc.URL
	}
	if fc.Format != "" && !set("format") {
		cfg.Format = fc.Format
	}
	if fc.OutDir != "" && !set("out-dir") {
		cfg.OutDir = fc.OutDir
	}
	if fc.FilenameBase != "" && !set("filename-base") {
		cfg.FilenameBase = fc.FilenameBase
	}
	if fc.Stdout != nil && !set("stdout") && !set("no-stdout") {
		cfg.Stdout = *fc.Stdout
	}
	if fc.JSON.Indent != nil && !set("json-indent") {
		cfg.JSONIndent = *fc.JSON.Indent
	}
	if fc.JSON.EnsureASCII && !set("ensure-ascii") {
		cfg.EnsureASCII = true
	}
	if fc.Fetch.TimeoutSeconds > 0 && !set("timeout") {
		cfg.Timeout = time.Duration(fc.Fetch.TimeoutSeconds) * time.Second
	}
	if fc.Fetch.Retries != nil && !set("retries") {
		cfg.Retries = *fc.Fetch.Retries
	}
	if fc.Fetch.MaxRedirects != nil && !set("max-redirects") {
		cfg.MaxRedirects = *fc.Fetch.MaxRedirects
	}
	if fc.Fetch.UserAgent != "" {
		cfg.UserAgent = fc.Fetch.UserAgent
	}
}

// Provides reports whether the file supplies a value for an interactive
// option, so the CLI does not prompt for it.
func (fc FileConfig) Provides(name string) bool {
	switch name {
	case "url":
		return fc.URL != ""
	case "format":
		return fc.Format != ""
	case "out-dir":
		return fc.OutDir != ""
	case "filename-base":
		return fc.FilenameBase != ""
	case "stdout":
		return fc.Stdout != nil
	}
	return false
}
