package transport

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"

	utls "github.com/refraction-networking/utls"
)

var clientHellos = map[string]utls.ClientHelloID{
	"chrome":  utls.HelloChrome_120,
	"firefox": utls.HelloFirefox_120,
	"safari":  utls.HelloSafari_16_0,
	"ios":     utls.HelloIOS_14,
	"edge":    utls.HelloEdge_106,
}

// Fingerprints lists the accepted client hello names.
func Fingerprints() []string {
	names := make([]string, 0, len(clientHellos))
	for name := range clientHellos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClientHello resolves a fingerprint name. The empty name means the Go
// standard library handshake and returns nil.
func ClientHello(name string) (*utls.ClientHelloID, error) {
	if name == "" {
		return nil, nil
	}
	id, ok := clientHellos[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown TLS fingerprint %q (valid: %s)", name, strings.Join(Fingerprints(), ", "))
	}
	return &id, nil
}

// handshakeUTLS performs a handshake that mimics a browser. ALPN is pinned
// to http/1.1 since the probes are HTTP/1.1 bytes.
func handshakeUTLS(ctx context.Context, conn net.Conn, host, name string, insecure bool) (net.Conn, error) {
	id, err := ClientHello(name)
	if err != nil {
		return nil, err
	}
	spec, err := utls.UTLSIdToSpec(*id)
	if err != nil {
		return nil, fmt.Errorf("building %s client hello: %w", name, err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	uc := utls.UClient(conn, &utls.Config{
		ServerName:         host,
		InsecureSkipVerify: insecure,
	}, utls.HelloCustom)
	if err := uc.ApplyPreset(&spec); err != nil {
		return nil, fmt.Errorf("applying %s client hello: %w", name, err)
	}
	if err := uc.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return uc, nil
}
