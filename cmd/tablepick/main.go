package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tablepick/tablepick/internal/app"
	"github.com/tablepick/tablepick/internal/fetch"
	"github.com/tablepick/tablepick/internal/prompt"
)

func main() {
	// Logging setup; stdout stays clean for table payloads.
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	os.Exit(run(os.Args[1:], isatty.IsTerminal(os.Stdin.Fd())))
}

// cliOptions carries flag values plus which flags were given explicitly.
type cliOptions struct {
	cfg         app.Config
	noStdout    bool
	configPath  string
	showVersion bool
	timeoutSec  int
	set         map[string]bool
}

func parseFlags(args []string) (cliOptions, error) {
	opts := cliOptions{cfg: app.DefaultConfig()}
	fs := flag.NewFlagSet("tablepick", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	fs.StringVar(&opts.cfg.URL, "url", os.Getenv("TABLEPICK_URL"), "Target URL (scheme required: http/https)")
	fs.StringVar(&opts.cfg.Format, "format", opts.cfg.Format, "Output format: csv or json")
	fs.StringVar(&opts.cfg.OutDir, "out-dir", "", "Directory to write output files; omitted means no files")
	fs.StringVar(&opts.cfg.FilenameBase, "filename-base", opts.cfg.FilenameBase, "Base name for output files")
	fs.BoolVar(&opts.cfg.Stdout, "stdout", opts.cfg.Stdout, "Print tables to stdout")
	fs.BoolVar(&opts.noStdout, "no-stdout", false, "Do not print tables to stdout")
	fs.IntVar(&opts.cfg.JSONIndent, "json-indent", 0, "Indent level for JSON output (format=json only)")
	fs.BoolVar(&opts.cfg.EnsureASCII, "ensure-ascii", false, "Escape non-ASCII characters in JSON output (format=json only)")
	fs.IntVar(&opts.timeoutSec, "timeout", int(opts.cfg.Timeout/time.Second), "HTTP request timeout in seconds")
	fs.IntVar(&opts.cfg.Retries, "retries", opts.cfg.Retries, "Number of retries on request failure")
	fs.IntVar(&opts.cfg.MaxRedirects, "max-redirects", opts.cfg.MaxRedirects, "Maximum number of redirects to follow")
	fs.StringVar(&opts.configPath, "config", os.Getenv("TABLEPICK_CONFIG"), "Path to YAML/JSON config file")
	fs.BoolVar(&opts.cfg.Debug, "debug", false, "Dump the resolved configuration and enable debug logging")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version and exit")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	if opts.noStdout {
		opts.cfg.Stdout = false
	}
	opts.cfg.Timeout = time.Duration(opts.timeoutSec) * time.Second
	return opts, nil
}

func run(args []string, interactive bool) int {
	opts, err := parseFlags(args)
	if err != nil {
		// flag already printed its diagnostic.
		return app.ExitExpected
	}
	if opts.showVersion {
		fmt.Printf("tablepick %s\n", app.BuildVersion)
		return app.ExitOK
	}

	if opts.cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	var fc app.FileConfig
	if opts.configPath != "" {
		fc, err = app.LoadConfigFile(opts.configPath)
		if err != nil {
			log.Error().Err(err).Str("path", opts.configPath).Msg("cannot load config file")
			return app.ExitExpected
		}
		fc.Apply(&opts.cfg, func(name string) bool { return opts.set[name] })
	}

	missing := missingOptions(opts, fc)
	if missing.Any() && interactive {
		p := &prompt.Prompter{In: os.Stdin, Out: os.Stderr}
		res, perr := p.Fill(prompt.Result{
			URL:          opts.cfg.URL,
			Format:       opts.cfg.Format,
			OutDir:       opts.cfg.OutDir,
			FilenameBase: opts.cfg.FilenameBase,
			Stdout:       opts.cfg.Stdout,
		}, missing)
		if perr != nil {
			log.Error().Err(perr).Msg("interactive prompt failed")
			return app.ExitExpected
		}
		opts.cfg.URL = res.URL
		opts.cfg.Format = res.Format
		opts.cfg.OutDir = res.OutDir
		opts.cfg.FilenameBase = res.FilenameBase
		opts.cfg.Stdout = res.Stdout
	}

	if err := fetch.ValidateURL(opts.cfg.URL); err != nil {
		log.Error().Err(err).Msg("invalid --url")
		return app.ExitExpected
	}

	if opts.cfg.Debug {
		dumpConfig(opts.cfg)
	}

	if err := app.Run(context.Background(), opts.cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		return app.ExitCode(err)
	}
	return app.ExitOK
}

// missingOptions marks the interactive options that neither the command
// line nor the config file supplied.
func missingOptions(opts cliOptions, fc app.FileConfig) prompt.Missing {
	given := func(name string) bool {
		return opts.set[name] || fc.Provides(name)
	}
	return prompt.Missing{
		URL:          !given("url") && opts.cfg.URL == "",
		Format:       !given("format"),
		OutDir:       !given("out-dir"),
		FilenameBase: !given("filename-base"),
		Stdout:       !opts.set["stdout"] && !opts.set["no-stdout"] && !fc.Provides("stdout"),
	}
}

// dumpConfig prints the resolved configuration to stderr for --debug.
func dumpConfig(cfg app.Config) {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintln(os.Stderr, "[tablepick:debug] resolved config:")
	fmt.Fprintln(os.Stderr, string(b))
}
