package registry

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// ErrAccessDenied is returned by CheckAccess for a client the share refuses.
var ErrAccessDenied = errors.New("access denied")

// CheckAccess applies the share's client lists to clientAddr, which may be
// "ip" or "ip:port".
//
// Denied clients take precedence. An empty allow list admits everyone not
// denied.
func (r *Registry) CheckAccess(shareName, clientAddr string) error {
	r.mu.RLock()
	share, exists := r.shares[shareName]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("share %q not found", shareName)
	}

	ip := clientIP(clientAddr)

	for _, denied := range share.DeniedClients {
		if matchesIPPattern(ip, denied) {
			return fmt.Errorf("%w: client %s is explicitly denied", ErrAccessDenied, clientAddr)
		}
	}

	if len(share.AllowedClients) == 0 {
		return nil
	}
	for _, pattern := range share.AllowedClients {
		if matchesIPPattern(ip, pattern) {
			return nil
		}
	}
	return fmt.Errorf("%w: client %s not in allowed list", ErrAccessDenied, clientAddr)
}

// clientIP strips an optional port.
func clientIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}

// matchesIPPattern checks if an IP address matches a pattern (IP address or CIDR).
func matchesIPPattern(ip, pattern string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	if strings.Contains(pattern, "/") {
		prefix, err := netip.ParsePrefix(pattern)
		if err != nil {
			return false
		}
		return prefix.Contains(addr)
	}

	want, err := netip.ParseAddr(pattern)
	if err != nil {
		return false
	}
	return want.Unmap() == addr
}
