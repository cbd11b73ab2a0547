// Package netutil resolves scan targets from URLs, URL lists and CIDR
// ranges.
package netutil

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Target is a parsed scan target.
type Target struct {
	URL  string // as given, normalised with a scheme
	Host string // hostname without port, used for Host headers and dialing
	Port int
	TLS  bool
	Path string // request target: path plus query, never empty
}

// ParseTarget parses a URL. A missing scheme defaults to http.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("empty target URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("invalid URL %q: %w", raw, err)
	}

	t := Target{URL: raw, Host: u.Hostname()}
	switch strings.ToLower(u.Scheme) {
	case "http":
		t.Port = 80
	case "https":
		t.TLS, t.Port = true, 443
	default:
		return Target{}, fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}
	if t.Host == "" {
		return Target{}, fmt.Errorf("missing host in %q", raw)
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return Target{}, fmt.Errorf("invalid port %q in %q", p, raw)
		}
		t.Port = n
	}

	t.Path = u.EscapedPath()
	if t.Path == "" {
		t.Path = "/"
	}
	if u.RawQuery != "" {
		t.Path += "?" + u.RawQuery
	}
	return t, nil
}

// HostHeader returns Host in the form used by a Host header: IPv6
// literals are bracketed, the port is left off.
func (t Target) HostHeader() string {
	if strings.Contains(t.Host, ":") {
		return "[" + t.Host + "]"
	}
	return t.Host
}

// ReadURLs reads one URL per line, skipping blanks and # comments.
func ReadURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening URL list: %w", err)
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading URL list: %w", err)
	}
	return urls, nil
}
