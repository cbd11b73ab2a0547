// Package reqparse reads raw HTTP requests (e.g. Burp Suite exports) and
// turns them into a target URL plus headers to carry into attack requests.
package reqparse

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ParsedRequest holds the extracted data from a raw HTTP request file.
type ParsedRequest struct {
	Method string
	URL    string // full URL: scheme, host, path and query
	// Headers are raw "Name: Value" lines in file order. Host and the
	// framing headers are dropped since every payload sets its own.
	Headers []string
}

// framing headers are owned by the payload generator.
var framing = map[string]bool{
	"host":              true,
	"content-length":    true,
	"transfer-encoding": true,
	"connection":        true,
}

// ParseFile reads a raw HTTP request and extracts the target URL and all
// headers including cookies.
func ParseFile(path string) (*ParsedRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening request file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB lines for large cookies

	if !scanner.Scan() {
		return nil, fmt.Errorf("request file is empty")
	}
	requestLine := strings.TrimSpace(scanner.Text())
	parts := strings.SplitN(requestLine, " ", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid request line: %q", requestLine)
	}
	method, target := parts[0], parts[1]

	var host string
	var headers []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			break
		}
		colon := strings.Index(line, ":")
		if colon < 0 {
			continue
		}
		name := strings.TrimSpace(line[:colon])
		if strings.EqualFold(name, "host") {
			host = strings.TrimSpace(line[colon+1:])
		}
		if framing[strings.ToLower(name)] {
			continue
		}
		headers = append(headers, name+": "+strings.TrimSpace(line[colon+1:]))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading request file: %w", err)
	}

	// Some proxies write absolute-form request targets.
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		if _, err := url.Parse(target); err != nil {
			return nil, fmt.Errorf("invalid URL in request line: %w", err)
		}
		return &ParsedRequest{Method: method, URL: target, Headers: headers}, nil
	}

	if host == "" {
		return nil, fmt.Errorf("request file missing Host header")
	}

	// Burp exports don't record the scheme. Assume TLS unless port 80 is
	// explicit.
	scheme := "https"
	if strings.HasSuffix(host, ":80") {
		scheme = "http"
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}

	return &ParsedRequest{
		Method:  method,
		URL:     scheme + "://" + host + target,
		Headers: headers,
	}, nil
}
