package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Options holds all configuration for a smugprobe scan.
type Options struct {
	// Target
	URL         string
	URLsFile    string
	CIDRTargets string
	Ports       string
	RequestFile string // raw HTTP request file (e.g. Burp export)

	// Attack
	Method   string   // verb used on attack request lines
	Headers  []string // raw "Name: Value" lines, sent verbatim in order
	Checks   string   // comma-separated families; empty = all
	Timeout  time.Duration
	Rate     float64 // max requests per second; 0 = unlimited
	Parallel bool    // scan families concurrently

	// Transport
	Proxy          string
	TLSFingerprint string
	VerifyTLS      bool

	// Output
	OutputFile   string
	OutputFormat string // "text", "json", "jsonl", "csv"
	SortBy       string // "target", "check", "vulnerable"; empty keeps scan order
	Verbose      bool
	Quiet        bool
	NoColor      bool

	// Hooks and state
	OnResultCmd string
	ResumeFile  string
}

// Defaults returns options with the CLI defaults applied.
func Defaults() Options {
	return Options{
		Method:       "POST",
		Timeout:      10 * time.Second,
		OutputFormat: "text",
	}
}

// fileOptions mirrors Options for YAML config files. Pointers distinguish
// "unset" from zero values.
type fileOptions struct {
	Method         *string   `yaml:"method"`
	Headers        []string  `yaml:"headers"`
	Checks         *string   `yaml:"checks"`
	Timeout        *duration `yaml:"timeout"`
	Rate           *float64  `yaml:"rate"`
	Parallel       *bool     `yaml:"parallel"`
	Proxy          *string   `yaml:"proxy"`
	TLSFingerprint *string   `yaml:"tls_fingerprint"`
	VerifyTLS      *bool     `yaml:"verify_tls"`
	OutputFile     *string   `yaml:"output"`
	OutputFormat   *string   `yaml:"format"`
	SortBy         *string   `yaml:"sort_by"`
	Verbose        *bool     `yaml:"verbose"`
	NoColor        *bool     `yaml:"no_color"`
	OnResultCmd    *string   `yaml:"on_result"`
}

type duration time.Duration

func (d *duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := time.ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", n.Line, n.Value, err)
	}
	*d = duration(v)
	return nil
}

// LoadFile reads a YAML config file into opts. Only fields for which set
// reports false are overwritten, so explicit flags take precedence.
func LoadFile(path string, opts *Options, set func(flag string) bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var f fileOptions
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	apply := func(flag string, fn func()) {
		if set == nil || !set(flag) {
			fn()
		}
	}
	if f.Method != nil {
		apply("method", func() { opts.Method = *f.Method })
	}
	if f.Headers != nil {
		apply("header", func() { opts.Headers = append([]string(nil), f.Headers...) })
	}
	if f.Checks != nil {
		apply("checks", func() { opts.Checks = *f.Checks })
	}
	if f.Timeout != nil {
		apply("timeout", func() { opts.Timeout = time.Duration(*f.Timeout) })
	}
	if f.Rate != nil {
		apply("rate", func() { opts.Rate = *f.Rate })
	}
	if f.Parallel != nil {
		apply("parallel", func() { opts.Parallel = *f.Parallel })
	}
	if f.Proxy != nil {
		apply("proxy", func() { opts.Proxy = *f.Proxy })
	}
	if f.TLSFingerprint != nil {
		apply("tls-fingerprint", func() { opts.TLSFingerprint = *f.TLSFingerprint })
	}
	if f.VerifyTLS != nil {
		apply("verify-tls", func() { opts.VerifyTLS = *f.VerifyTLS })
	}
	if f.OutputFile != nil {
		apply("output", func() { opts.OutputFile = *f.OutputFile })
	}
	if f.OutputFormat != nil {
		apply("format", func() { opts.OutputFormat = *f.OutputFormat })
	}
	if f.SortBy != nil {
		apply("sort-by", func() { opts.SortBy = *f.SortBy })
	}
	if f.Verbose != nil {
		apply("verbose", func() { opts.Verbose = *f.Verbose })
	}
	if f.NoColor != nil {
		apply("no-color", func() { opts.NoColor = *f.NoColor })
	}
	if f.OnResultCmd != nil {
		apply("on-result", func() { opts.OnResultCmd = *f.OnResultCmd })
	}
	return nil
}

// Validate normalises opts and rejects values that can't work.
func (o *Options) Validate() error {
	o.Method = strings.TrimSpace(o.Method)
	if o.Method == "" {
		return fmt.Errorf("--method must not be empty")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive, got %s", o.Timeout)
	}
	if o.Rate < 0 {
		return fmt.Errorf("--rate must not be negative")
	}
	for _, h := range o.Headers {
		if !strings.Contains(h, ":") {
			return fmt.Errorf("invalid header format %q, expected 'Name: Value'", h)
		}
	}
	switch o.OutputFormat {
	case "", "text":
		o.OutputFormat = "text"
	case "json", "jsonl", "csv":
	default:
		return fmt.Errorf("--format must be one of: text, json, jsonl, csv")
	}
	switch o.SortBy {
	case "", "target", "check", "vulnerable":
	default:
		return fmt.Errorf("--sort-by must be one of: target, check, vulnerable")
	}
	if o.Verbose && o.Quiet {
		return fmt.Errorf("--verbose and --quiet are mutually exclusive")
	}
	return nil
}
