// Package prompt fills in CLI options the user did not supply, by asking on
// an interactive terminal. The caller decides whether stdin is a terminal;
// this package only does line-oriented question and answer.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/tablepick/tablepick/internal/fetch"
	"github.com/tablepick/tablepick/internal/output"
)

// Result carries the interactive answers merged with the provided values.
type Result struct {
	URL          string
	Format       string
	OutDir       string
	FilenameBase string
	Stdout       bool
}

// Missing marks which options were absent from the command line and should
// be asked for.
type Missing struct {
	URL          bool
	Format       bool
	OutDir       bool
	FilenameBase bool
	Stdout       bool
}

// Any reports whether at least one option needs prompting.
func (m Missing) Any() bool {
	return m.URL || m.Format || m.OutDir || m.FilenameBase || m.Stdout
}

// Prompter asks questions on Out and reads answers from In.
type Prompter struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// Fill asks for every option marked missing and returns the completed
// result. Options not marked missing pass through unchanged.
func (p *Prompter) Fill(provided Result, missing Missing) (Result, error) {
	res := provided
	var err error
	if missing.URL {
		if res.URL, err = p.askURL(); err != nil {
			return res, err
		}
	}
	if missing.Format {
		if res.Format, err = p.askFormat(output.FormatCSV); err != nil {
			return res, err
		}
	}
	if missing.OutDir {
		if res.OutDir, err = p.askLine("Output directory (empty = no files): "); err != nil {
			return res, err
		}
	}
	if missing.FilenameBase {
		base, err := p.askLine(fmt.Sprintf("Base name for output files (default: %s): ", output.DefaultBaseName))
		if err != nil {
			return res, err
		}
		if base == "" {
			base = output.DefaultBaseName
		}
		res.FilenameBase = base
	}
	if missing.Stdout {
		if res.Stdout, err = p.askYesNo("Also print tables to stdout?", true); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (p *Prompter) askURL() (string, error) {
	for {
		v, err := p.askLine("URL (http/https scheme required): ")
		if err != nil {
			return "", err
		}
		if verr := fetch.ValidateURL(v); verr != nil {
			fmt.Fprintf(p.Out, "error: %v\n", verr)
			continue
		}
		return v, nil
	}
}

func (p *Prompter) askFormat(def string) (string, error) {
	for {
		v, err := p.askLine(fmt.Sprintf("Output format [csv/json] (default: %s): ", def))
		if err != nil {
			return "", err
		}
		if v == "" {
			return def, nil
		}
		switch strings.ToLower(v) {
		case output.FormatCSV, output.FormatJSON:
			return strings.ToLower(v), nil
		}
		fmt.Fprintln(p.Out, "error: format must be csv or json")
	}
}

func (p *Prompter) askYesNo(question string, def bool) (bool, error) {
	suffix := "Y/n"
	if !def {
		suffix = "y/N"
	}
	for {
		v, err := p.askLine(fmt.Sprintf("%s [%s]: ", question, suffix))
		if err != nil {
			return def, err
		}
		switch strings.ToLower(v) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.Out, "error: answer y or n")
	}
}

func (p *Prompter) askLine(label string) (string, error) {
	fmt.Fprint(p.Out, label)
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
