package util

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies is the set of reverse proxies (campus nginx, load balancer)
// whose forwarding headers are believed.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// NewTrustedProxies parses CIDR or bare IP entries. Empty input returns nil,
// which trusts no proxy.
func NewTrustedProxies(entries []string) (*TrustedProxies, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	if len(prefixes) == 0 {
		return nil, nil
	}
	return &TrustedProxies{prefixes: prefixes}, nil
}

// Contains reports whether addr belongs to a trusted proxy.
func (t *TrustedProxies) Contains(addr netip.Addr) bool {
	if t == nil || !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, p := range t.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP resolves the caller address used for rate limits and audit lines.
// Forwarding headers count only when the direct peer is a trusted proxy; the
// hop chain is then walked right to left and the first untrusted hop wins.
// X-Forwarded-For is preferred, then RFC 7239 Forwarded, then X-Real-IP.
func ClientIP(r *http.Request, trusted *TrustedProxies) string {
	peer, ok := peerAddr(r.RemoteAddr)
	if !ok {
		return strings.TrimSpace(r.RemoteAddr)
	}
	if !trusted.Contains(peer) {
		return peer.String()
	}

	hops := parseHops(r.Header.Values("X-Forwarded-For"), parseForwardedForHop)
	if len(hops) == 0 {
		hops = parseHops(r.Header.Values("Forwarded"), parseForwardedHop)
	}
	if len(hops) > 0 {
		chain := append(hops, peer)
		for i := len(chain) - 1; i >= 0; i-- {
			if !trusted.Contains(chain[i]) {
				return chain[i].String()
			}
		}
		return chain[0].String()
	}

	if real, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return real.Unmap().String()
	}
	return peer.String()
}

// parseHops flattens repeated header lines into one ordered hop list,
// dropping entries that are not addresses (obfuscated ids, "unknown").
func parseHops(lines []string, parse func(string) (netip.Addr, bool)) []netip.Addr {
	var out []netip.Addr
	for _, line := range lines {
		for _, elem := range strings.Split(line, ",") {
			if addr, ok := parse(elem); ok {
				out = append(out, addr)
			}
		}
	}
	return out
}

func parseForwardedForHop(raw string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// parseForwardedHop reads the for= parameter of one Forwarded element, e.g.
// `for=203.0.113.4;proto=https` or `for="[2001:db8::1]:4711"`.
func parseForwardedHop(elem string) (netip.Addr, bool) {
	for _, pair := range strings.Split(elem, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found || !strings.EqualFold(key, "for") {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if ap, err := netip.ParseAddrPort(value); err == nil {
			return ap.Addr().Unmap(), true
		}
		value = strings.TrimSuffix(strings.TrimPrefix(value, "["), "]")
		return parseForwardedForHop(value)
	}
	return netip.Addr{}, false
}

func peerAddr(remote string) (netip.Addr, bool) {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return netip.Addr{}, false
	}
	if ap, err := netip.ParseAddrPort(remote); err == nil {
		return ap.Addr().Unmap(), true
	}
	return parseForwardedForHop(remote)
}
