package netutil

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// maxHosts bounds CIDR expansion so a typo like /8 doesn't queue
// millions of probes.
const maxHosts = 1 << 16

// ExpandCIDR turns a CIDR range (or single IP) and a port list into target
// URLs. Port 443 and 8443 use https, everything else http. With no ports
// the default is 80.
func ExpandCIDR(cidr, portsStr string) ([]string, error) {
	prefix, err := parsePrefix(cidr)
	if err != nil {
		return nil, err
	}

	ports, err := ParsePorts(portsStr)
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		ports = []int{80}
	}

	hostBits := prefix.Addr().BitLen() - prefix.Bits()
	if hostBits > 16 {
		return nil, fmt.Errorf("CIDR %s is too large (more than %d hosts)", cidr, maxHosts)
	}

	var last netip.Addr
	if prefix.Addr().Is4() && hostBits > 1 {
		last = broadcast(prefix)
	}

	var urls []string
	for ip := prefix.Addr(); prefix.Contains(ip); ip = ip.Next() {
		// Network and broadcast addresses are not hosts.
		if prefix.Addr().Is4() && hostBits > 1 && (ip == prefix.Addr() || ip == last) {
			continue
		}
		for _, port := range ports {
			urls = append(urls, targetURL(ip, port))
		}
	}
	return urls, nil
}

// ParsePorts parses a comma-separated port list.
func ParsePorts(s string) ([]int, error) {
	var ports []int
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("invalid port %q", p)
		}
		ports = append(ports, n)
	}
	return ports, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if prefix, err := netip.ParsePrefix(s); err == nil {
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR or IP: %q", s)
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func broadcast(p netip.Prefix) netip.Addr {
	b := p.Addr().As4()
	for i := p.Bits(); i < 32; i++ {
		b[i/8] |= 1 << (7 - uint(i%8))
	}
	return netip.AddrFrom4(b)
}

func targetURL(ip netip.Addr, port int) string {
	scheme := "http"
	if port == 443 || port == 8443 {
		scheme = "https"
	}
	hostport := netip.AddrPortFrom(ip, uint16(port)).String()
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		host := ip.String()
		if ip.Is6() {
			host = "[" + host + "]"
		}
		return scheme + "://" + host
	}
	return scheme + "://" + hostport
}
