package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maxvaer/smugprobe/internal/config"
	"github.com/maxvaer/smugprobe/internal/report"
	"github.com/maxvaer/smugprobe/internal/runner"
	"github.com/maxvaer/smugprobe/internal/transport"
	"github.com/maxvaer/smugprobe/internal/updater"
	"github.com/maxvaer/smugprobe/pkg/version"
)

var (
	opts       = config.Defaults()
	configFile string
	updateFlag bool
)

type flagGroup struct {
	title string
	flags []string
}

var helpGroups = []flagGroup{
	{"TARGET", []string{"url", "urls-file", "request-file", "cidr", "ports"}},
	{"CHECKS", []string{"checks", "method", "header", "timeout"}},
	{"RATE-LIMIT", []string{"rate", "parallel"}},
	{"TRANSPORT", []string{"proxy", "tls-fingerprint", "verify-tls"}},
	{"OUTPUT", []string{"output", "format", "sort-by", "verbose", "quiet", "no-color", "on-result"}},
	{"CONFIGURATION", []string{"config", "resume-file"}},
	{"UPDATE", []string{"update"}},
}

var rootCmd = &cobra.Command{
	Use:     "smugprobe [url] [flags]",
	Short:   "HTTP request smuggling detector",
	Version: version.Version,
	Args:    cobra.MaximumNArgs(1),
	Long: `smugprobe tests web servers and proxy chains for HTTP request smuggling.
It sends CL.TE, TE.CL and TE.TE desync probes and flags a target when a
probe times out, returns 408/504, or takes far longer than a normal request.`,
	Example: `  smugprobe https://example.com
  smugprobe -u https://example.com/login -c cl-te,te-cl -t 5
  smugprobe https://example.com -H "Cookie: session=abc" -o results.json
  smugprobe -r burp.req --tls-fingerprint chrome
  smugprobe -l urls.txt --rate 5 --format jsonl -o out.jsonl
  smugprobe --cidr 10.0.0.0/28 --ports 80,8080 --parallel
  smugprobe https://example.com --on-result "notify-send 'smuggling: {check} {target}'"`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if updateFlag {
			return nil
		}
		flags := cmd.Flags()
		if configFile != "" {
			if err := config.LoadFile(configFile, &opts, flags.Changed); err != nil {
				return err
			}
		}
		if len(args) == 1 {
			if flags.Changed("url") {
				return fmt.Errorf("give the target either as an argument or with -u, not both")
			}
			opts.URL = args[0]
		}
		if opts.URL == "" && opts.URLsFile == "" && opts.CIDRTargets == "" && opts.RequestFile == "" {
			_ = cmd.Help()
			fmt.Fprintln(os.Stderr)
			return fmt.Errorf("target required: give a URL, -l, --cidr, or --request-file")
		}
		// A results file without an explicit format is JSON.
		if opts.OutputFile != "" && !flags.Changed("format") && configFile == "" {
			opts.OutputFormat = "json"
		}
		if err := opts.Validate(); err != nil {
			return err
		}
		report.SetNoColor(opts.NoColor)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		if updateFlag {
			return updater.New().Update(ctx)
		}
		return runner.Run(ctx, &opts)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()

	// Target
	f.StringVarP(&opts.URL, "url", "u", "", "Target URL")
	f.StringVarP(&opts.URLsFile, "urls-file", "l", "", "File with one URL per line")
	f.StringVarP(&opts.RequestFile, "request-file", "r", "", "Raw HTTP request file (e.g. Burp Suite export)")
	f.StringVar(&opts.CIDRTargets, "cidr", "", "CIDR range to scan (e.g. 192.168.1.0/24)")
	f.StringVar(&opts.Ports, "ports", "", "Ports for CIDR targets (comma-separated, e.g. 80,443,8080)")

	// Checks
	f.StringVarP(&opts.Checks, "checks", "c", "", "Checks to run (comma-separated: cl-te,te-cl,te-te)")
	f.StringVarP(&opts.Method, "method", "m", opts.Method, "HTTP method for attack requests")
	f.VarP(&headerValue{target: &opts.Headers}, "header", "H", "Custom header (\"Name: Value\", repeatable)")
	f.VarP(&secondsValue{target: &opts.Timeout}, "timeout", "t", "Socket timeout (seconds, or a duration like 1500ms)")

	// Rate limit
	f.Float64Var(&opts.Rate, "rate", 0, "Maximum requests per second (0 = unlimited)")
	f.BoolVar(&opts.Parallel, "parallel", false, "Run checks concurrently")

	// Transport
	f.StringVar(&opts.Proxy, "proxy", "", "SOCKS5 proxy URL (e.g. socks5://127.0.0.1:1080)")
	f.StringVar(&opts.TLSFingerprint, "tls-fingerprint", "",
		"Browser TLS fingerprint: "+strings.Join(transport.Fingerprints(), ", "))
	f.BoolVar(&opts.VerifyTLS, "verify-tls", false, "Verify TLS certificates")

	// Output
	f.StringVarP(&opts.OutputFile, "output", "o", "", "Output file for results (JSON unless --format is set)")
	f.StringVar(&opts.OutputFormat, "format", opts.OutputFormat, "Output format: text, json, jsonl, csv")
	f.StringVar(&opts.SortBy, "sort-by", "", "Sort results: target, check, vulnerable (buffers until scan completes)")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "Print every step instead of a progress line")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "Only print results")
	f.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")

	// Hooks
	f.StringVar(&opts.OnResultCmd, "on-result", "", "Shell command to run for each vulnerable result (receives JSON on stdin)")

	// Configuration
	f.StringVar(&configFile, "config", "", "YAML config file (flags take precedence)")
	f.StringVar(&opts.ResumeFile, "resume-file", "", "File to save/load scan progress for resume")

	// Update
	f.BoolVar(&updateFlag, "update", false, "Update smugprobe to the latest version")

	// Custom help: categorized flags.
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		w := os.Stderr
		fmt.Fprint(w, helpBanner(cmd.Version))
		fmt.Fprintf(w, "%s\n\nUsage:\n  %s\n", cmd.Long, cmd.UseLine())
		fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
		fmt.Fprintf(w, "\nFlags:\n")
		for _, g := range helpGroups {
			fmt.Fprintf(w, "\n%s:\n", g.title)
			for _, name := range g.flags {
				if f := cmd.Flags().Lookup(name); f != nil {
					fmt.Fprintln(w, formatFlag(f))
				}
			}
		}
		fmt.Fprintln(w)
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// headerValue collects repeated -H flags in order. Values are kept raw,
// commas included, so "Cookie: a=1, b=2" stays one header.
type headerValue struct {
	target *[]string
}

func (v *headerValue) String() string {
	if v.target == nil {
		return ""
	}
	return strings.Join(*v.target, "; ")
}

func (v *headerValue) Set(s string) error {
	if !strings.Contains(s, ":") {
		return fmt.Errorf("invalid header format %q, expected 'Name: Value'", s)
	}
	*v.target = append(*v.target, s)
	return nil
}

func (v *headerValue) Type() string { return "header" }

// secondsValue parses a bare integer as seconds and anything else as a
// time.Duration.
type secondsValue struct {
	target *time.Duration
}

func (v *secondsValue) String() string {
	if v.target == nil {
		return ""
	}
	return v.target.String()
}

func (v *secondsValue) Set(s string) error {
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		*v.target = time.Duration(n) * time.Second
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: use seconds or a duration like 1500ms", s)
	}
	*v.target = d
	return nil
}

func (v *secondsValue) Type() string { return "seconds" }

func formatFlag(f *pflag.Flag) string {
	var left string
	if f.Shorthand != "" {
		left = fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	} else {
		left = fmt.Sprintf("    --%s", f.Name)
	}

	typ := f.Value.Type()
	if typ != "bool" {
		left += " " + typ
	}

	const col = 36
	for len(left) < col {
		left += " "
	}

	right := f.Usage
	def := f.DefValue
	if def != "" && def != "false" && def != "0" && def != "0s" && def != "[]" {
		right += fmt.Sprintf(" (default %s)", def)
	}
	return "   " + left + right
}

func helpBanner(ver string) string {
	if ver != "dev" && ver != "" && !strings.HasPrefix(ver, "v") {
		ver = "v" + ver
	}
	return fmt.Sprintf(`
                               __
   _________ ___  __  ______ _/ /_  _________  ____  ___
  / ___/ __ '__ \/ / / / __ '/ __ \/ ___/ __ \/ __ \/ _ \
 (__  ) / / / / / /_/ / /_/ / /_/ / /  / /_/ / /_/ /  __/
/____/_/ /_/ /_/\__,_/\__, /_.___/_/   \____/ .___/\___/
                     /____/                /_/          %s

`, ver)
}
