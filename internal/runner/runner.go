package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/maxvaer/smugprobe/internal/config"
	"github.com/maxvaer/smugprobe/internal/detector"
	"github.com/maxvaer/smugprobe/internal/hook"
	"github.com/maxvaer/smugprobe/internal/netutil"
	"github.com/maxvaer/smugprobe/internal/output"
	"github.com/maxvaer/smugprobe/internal/payload"
	"github.com/maxvaer/smugprobe/internal/report"
	"github.com/maxvaer/smugprobe/internal/reqparse"
	"github.com/maxvaer/smugprobe/internal/resume"
	"github.com/maxvaer/smugprobe/internal/transport"
	"github.com/maxvaer/smugprobe/pkg/version"
)

// ErrNoTargets is returned when no target source was given.
var ErrNoTargets = errors.New("no targets specified (URL, -l, --cidr or -r)")

// plan is everything resolved from the options before the first probe.
type plan struct {
	targets  []netutil.Target
	families []payload.Family
	headers  []string
	method   string
}

// outcome is one family's result on one target.
type outcome struct {
	family payload.Family
	result *detector.CheckResult
	err    error
}

// Run executes the full scan pipeline. It supports multiple targets via
// -l (URL list file), --cidr and -r.
func Run(ctx context.Context, opts *config.Options) error {
	return run(ctx, opts, nil, os.Stderr)
}

// run is Run with an injectable sender and report writer.
func run(ctx context.Context, opts *config.Options, sender transport.Sender, stderr io.Writer) error {
	p, err := resolvePlan(opts)
	if err != nil {
		return err
	}

	var pauser *transport.Pauser
	if sender == nil {
		var cleanup func()
		pauser, cleanup = startStdinToggle(stderr, opts.Quiet)
		defer cleanup()

		raw, err := newRawSender(opts)
		if err != nil {
			return err
		}
		sender = raw
	}
	sender = &transport.Paced{
		Sender:  sender,
		Limiter: transport.NewLimiter(opts.Rate),
		Pauser:  pauser,
	}

	scanID := uuid.NewString()
	state, err := openResume(opts, scanID)
	if err != nil {
		return err
	}
	if state != nil {
		scanID = state.ScanID
	}

	out, err := output.New(opts.OutputFormat, opts.OutputFile, opts.NoColor)
	if err != nil {
		return fmt.Errorf("creating output writer: %w", err)
	}
	defer out.Close()
	if opts.SortBy != "" {
		out = output.NewSortedWriter(out, opts.SortBy)
	}
	if err := out.WriteHeader(); err != nil {
		return err
	}

	if !opts.Quiet {
		printBanner(stderr, opts, p, scanID)
	}
	sink, stop := newSink(opts, stderr, p)

	var hookRunner *hook.Runner
	if opts.OnResultCmd != "" {
		hookRunner = hook.NewRunner(opts.OnResultCmd, sink)
	}

	scanner := detector.New(sender, sink)
	stats := output.Stats{Targets: len(p.targets)}
	start := time.Now()

	var scanErr error
	for idx, t := range p.targets {
		if len(p.targets) > 1 {
			sink.Println(report.InfoStyle.Render(fmt.Sprintf("[*] Target %d/%d: %s", idx+1, len(p.targets), t.URL)))
		}

		families := p.families
		if state != nil {
			families = remaining(state, t.URL, families)
		}
		if len(families) == 0 {
			continue
		}

		outcomes, err := scanTarget(ctx, scanner, t, families, p, opts)
		for _, o := range outcomes {
			stats.Checks++
			if o.err != nil {
				stats.Failed++
				sink.Warn(fmt.Sprintf("%s on %s: %v", o.family, t.URL, o.err))
				continue
			}
			rec := &output.Record{ScanID: scanID, Target: t.URL, CheckResult: *o.result}
			if rec.Vulnerable {
				stats.Vulnerable++
				if hookRunner != nil {
					hookRunner.Run(ctx, rec)
				}
			}
			if err := out.WriteResult(rec); err != nil {
				stop()
				return err
			}
			if state != nil {
				state.MarkCompleted(t.URL, o.family.String())
			}
		}
		if err != nil {
			scanErr = err
			break
		}
	}
	stop()

	if state != nil {
		if scanErr != nil {
			if err := state.Save(); err == nil {
				fmt.Fprintf(stderr, "\n[*] Progress saved to %s, resume with --resume-file\n", opts.ResumeFile)
			}
		} else {
			_ = state.Remove()
		}
	}

	// Interrupted scans still flush the records already collected.
	stats.Duration = time.Since(start)
	if err := out.WriteFooter(stats); err != nil && scanErr == nil {
		return err
	}
	return scanErr
}

// scanTarget runs every family against t. Outcomes come back in family
// order regardless of concurrency. The returned error is set only when ctx
// ended; outcomes finished before that are still returned.
func scanTarget(ctx context.Context, scanner *detector.Scanner, t netutil.Target, families []payload.Family, p *plan, opts *config.Options) ([]outcome, error) {
	outcomes := make([]outcome, len(families))
	check := func(i int) error {
		f := families[i]
		res, err := scanner.Run(ctx, detector.Check{
			Name:       f.String(),
			Payloads:   payload.Generate(f, t.Path, t.HostHeader(), p.method, p.headers),
			Host:       t.Host,
			HostHeader: t.HostHeader(),
			Port:       t.Port,
			Path:       t.Path,
			Timeout:    opts.Timeout,
			TLS:        t.TLS,
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcomes[i] = outcome{family: f, result: res, err: err}
		return nil
	}

	var err error
	if opts.Parallel {
		var g errgroup.Group
		for i := range families {
			g.Go(func() error { return check(i) })
		}
		err = g.Wait()
	} else {
		for i := range families {
			if err = check(i); err != nil {
				break
			}
		}
	}

	// Drop slots that never finished.
	done := outcomes[:0]
	for _, o := range outcomes {
		if o.family != "" {
			done = append(done, o)
		}
	}
	return done, err
}

// resolvePlan validates every input so that bad options fail before any
// network activity.
func resolvePlan(opts *config.Options) (*plan, error) {
	families, err := payload.ParseFamilies(opts.Checks)
	if err != nil {
		return nil, err
	}

	p := &plan{families: families, method: opts.Method}

	var urls []string
	if opts.RequestFile != "" {
		req, err := reqparse.ParseFile(opts.RequestFile)
		if err != nil {
			return nil, err
		}
		if opts.URL == "" {
			urls = append(urls, req.URL)
		}
		p.headers = append(p.headers, req.Headers...)
	}
	p.headers = append(p.headers, opts.Headers...)

	if opts.URL != "" {
		urls = append(urls, opts.URL)
	}
	if opts.URLsFile != "" {
		list, err := netutil.ReadURLs(opts.URLsFile)
		if err != nil {
			return nil, err
		}
		urls = append(urls, list...)
	}
	if opts.CIDRTargets != "" {
		cidr, err := netutil.ExpandCIDR(opts.CIDRTargets, opts.Ports)
		if err != nil {
			return nil, fmt.Errorf("expanding CIDR: %w", err)
		}
		urls = append(urls, cidr...)
	}
	if len(urls) == 0 {
		return nil, ErrNoTargets
	}

	for _, u := range urls {
		t, err := netutil.ParseTarget(u)
		if err != nil {
			return nil, err
		}
		p.targets = append(p.targets, t)
	}
	return p, nil
}

func newRawSender(opts *config.Options) (*transport.Raw, error) {
	dialer, err := transport.NewProxyDialer(opts.Proxy)
	if err != nil {
		return nil, err
	}
	raw, err := transport.NewRaw(
		transport.WithDialer(dialer),
		transport.WithFingerprint(opts.TLSFingerprint),
		transport.WithVerify(opts.VerifyTLS),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transport: %w", err)
	}
	return raw, nil
}

// newSink picks the report sink for the verbosity level: a progress line
// by default, every message as it happens with -v, only warnings with -q.
// The returned stop function clears any progress line and is safe to call
// more than once.
func newSink(opts *config.Options, stderr io.Writer, p *plan) (report.Sink, func()) {
	switch {
	case opts.Quiet:
		return report.WarnOnly(stderr), func() {}
	case opts.Verbose:
		return report.NewVerbose(stderr), func() {}
	}
	q := report.NewQuiet(stderr, probeCount(p))
	q.Start()
	return q, q.Stop
}

// probeCount is the worst-case number of sends: one baseline plus every
// payload per family per target.
func probeCount(p *plan) int {
	per := 0
	for _, f := range p.families {
		per += 1 + len(payload.Generate(f, "/", "", p.method, nil))
	}
	return per * len(p.targets)
}

func openResume(opts *config.Options, scanID string) (*resume.State, error) {
	if opts.ResumeFile == "" {
		return nil, nil
	}
	existing, err := resume.Load(opts.ResumeFile)
	if err != nil {
		return nil, fmt.Errorf("loading resume file: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	return resume.New(opts.ResumeFile, scanID), nil
}

func remaining(state *resume.State, target string, families []payload.Family) []payload.Family {
	var out []payload.Family
	for _, f := range families {
		if !state.IsCompleted(target, f.String()) {
			out = append(out, f)
		}
	}
	return out
}

func printBanner(w io.Writer, opts *config.Options, p *plan, scanID string) {
	names := make([]string, len(p.families))
	for i, f := range p.families {
		names[i] = f.String()
	}
	fmt.Fprintf(w, "\n  %s %s\n\n", report.BoldStyle.Render("smugprobe"), version.Version)
	fmt.Fprintf(w, "  Scan:     %s\n", scanID)
	if len(p.targets) == 1 {
		fmt.Fprintf(w, "  Target:   %s\n", p.targets[0].URL)
	} else {
		fmt.Fprintf(w, "  Targets:  %d\n", len(p.targets))
	}
	fmt.Fprintf(w, "  Checks:   %s\n", strings.Join(names, ", "))
	fmt.Fprintf(w, "  Method:   %s\n", p.method)
	fmt.Fprintf(w, "  Timeout:  %s\n", opts.Timeout)
	if len(p.headers) > 0 {
		fmt.Fprintf(w, "  Headers:  %d custom\n", len(p.headers))
	}
	if opts.Rate > 0 {
		fmt.Fprintf(w, "  Rate:     %.1f req/s\n", opts.Rate)
	}
	if opts.Proxy != "" {
		fmt.Fprintf(w, "  Proxy:    %s\n", opts.Proxy)
	}
	if opts.TLSFingerprint != "" {
		fmt.Fprintf(w, "  TLS:      %s fingerprint\n", opts.TLSFingerprint)
	}
	if opts.Parallel {
		fmt.Fprintf(w, "  Mode:     parallel\n")
	}
	fmt.Fprintln(w)
}
