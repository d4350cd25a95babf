// Package app wires the fetch, convert and output stages into the tablepick
// pipeline and owns runtime configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/tablepick/tablepick/internal/convert"
	"github.com/tablepick/tablepick/internal/fetch"
	"github.com/tablepick/tablepick/internal/output"
)

// Run executes one fetch -> convert -> emit pass. Status messages go to the
// log (stderr); stdout carries only table payloads.
func Run(ctx context.Context, cfg Config) error {
	client := &fetch.Client{UserAgent: cfg.UserAgent, Config: cfg.fetchConfig()}
	body, finalURL, err := client.Get(ctx, cfg.URL)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", cfg.URL, err)
	}
	log.Debug().Str("url", finalURL).Int("bytes", len(body)).Msg("fetched document")

	tables, err := convert.Tables(body)
	if err != nil {
		return err
	}
	log.Info().Int("tables", len(tables)).Str("url", finalURL).Msg("converted tables")

	w := &output.Writer{}
	written, err := w.Emit(tables, cfg.outputOptions())
	if err != nil {
		return err
	}
	if cfg.OutDir != "" {
		log.Info().Int("files", len(written)).Str("dir", cfg.OutDir).Msg("wrote output files")
	}
	return nil
}

// Exit codes: 0 success, 1 expected failure (bad input, fetch failure, no
// tables), 2 unexpected failure.
const (
	ExitOK         = 0
	ExitExpected   = 1
	ExitUnexpected = 2
)

// ExitCode classifies err into the process exit code policy. Every error in
// the tablepick taxonomy plus transport-level fetch failures is expected;
// anything else is unexpected.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch {
	case errors.Is(err, convert.ErrNoTableFound),
		errors.Is(err, convert.ErrTableConversion),
		errors.Is(err, output.ErrNoTables),
		errors.Is(err, output.ErrUnsupportedFormat),
		errors.Is(err, fetch.ErrTooManyRedirects),
		errors.Is(err, fetch.ErrRedirectLoop),
		errors.Is(err, fetch.ErrUnsupportedScheme):
		return ExitExpected
	}
	var statusErr *fetch.StatusError
	if errors.As(err, &statusErr) {
		return ExitExpected
	}
	// Transport failures surface as *url.Error from net/http.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ExitExpected
	}
	return ExitUnexpected
}
