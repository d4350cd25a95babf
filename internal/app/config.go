package app

import (
	"time"

	"github.com/tablepick/tablepick/internal/fetch"
	"github.com/tablepick/tablepick/internal/output"
)

// Config holds the resolved runtime configuration for one run.
type Config struct {
	URL string `json:"url"`

	// Output
	Format       string `json:"format"`
	OutDir       string `json:"outDir"`
	FilenameBase string `json:"filenameBase"`
	Stdout       bool   `json:"stdout"`
	EnsureASCII  bool   `json:"ensureAscii"`
	JSONIndent   int    `json:"jsonIndent"`

	// Fetch
	Timeout      time.Duration `json:"timeout"`
	Retries      int           `json:"retries"`
	MaxRedirects int           `json:"maxRedirects"`
	UserAgent    string        `json:"userAgent"`

	Debug bool `json:"debug"`
}

// DefaultConfig returns the stock configuration before flags, config file
// and prompts are applied.
func DefaultConfig() Config {
	return Config{
		Format:       output.FormatCSV,
		FilenameBase: output.DefaultBaseName,
		Stdout:       true,
		Timeout:      fetch.DefaultTimeout,
		Retries:      fetch.DefaultRetries,
		MaxRedirects: fetch.DefaultMaxRedirects,
		UserAgent:    fetch.DefaultUserAgent,
	}
}

func (c Config) fetchConfig() fetch.Config {
	return fetch.Config{
		Timeout:       c.Timeout,
		Retries:       c.Retries,
		RetryInterval: fetch.DefaultRetryInterval,
		MaxRedirects:  c.MaxRedirects,
	}
}

func (c Config) outputOptions() output.Options {
	return output.Options{
		Format:      c.Format,
		OutDir:      c.OutDir,
		BaseName:    c.FilenameBase,
		Stdout:      c.Stdout,
		EnsureASCII: c.EnsureASCII,
		Indent:      c.JSONIndent,
	}
}
