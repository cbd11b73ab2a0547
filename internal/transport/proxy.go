package transport

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/proxy"
)

// NewProxyDialer builds a dialer for a socks5:// or socks5h:// proxy URL.
// HTTP proxies re-frame requests, so only SOCKS is accepted. An empty URL
// returns nil, nil.
func NewProxyDialer(proxyURL string) (proxy.ContextDialer, error) {
	if proxyURL == "" {
		return nil, nil
	}
	if !strings.Contains(proxyURL, "://") {
		proxyURL = "socks5://" + proxyURL
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q, supported: socks5, socks5h", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("proxy URL missing host")
	}
	if u.Port() == "" {
		u.Host += ":1080"
	}
	// x/net/proxy only knows "socks5"; hostnames are passed through so the
	// proxy resolves them either way.
	u.Scheme = "socks5"

	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("creating SOCKS dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("SOCKS dialer does not support contexts")
	}
	return cd, nil
}
