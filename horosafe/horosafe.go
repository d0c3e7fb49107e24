// Package horosafe guards the edges of the site: endpoints it calls out to
// (form providers, the registry API, the rate feed), ids it accepts from
// clients, and bodies it reads back.
package horosafe

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"net/url"
	"slices"
	"strings"
)

// MaxResponseBody caps remote response reads.
const MaxResponseBody int64 = 1 << 20

var (
	// ErrSSRF marks an endpoint that points inside the host's network.
	ErrSSRF = errors.New("horosafe: endpoint resolves to an internal address")
	// ErrUnsafeScheme marks an endpoint with a scheme the caller did not allow.
	ErrUnsafeScheme = errors.New("horosafe: scheme not allowed")
)

// ValidateURL accepts public http and https endpoints.
func ValidateURL(raw string) error { return checkEndpoint(raw, "http", "https") }

// ValidateSocketURL accepts public ws and wss endpoints.
func ValidateSocketURL(raw string) error { return checkEndpoint(raw, "ws", "wss") }

// lookupHost is swapped in tests.
var lookupHost = net.LookupHost

func checkEndpoint(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("horosafe: parse %q: %w", raw, err)
	}
	if !slices.Contains(schemes, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("%w: %q", ErrUnsafeScheme, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("horosafe: %q has no host", raw)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return checkAddr(addr)
	}
	addrs, err := lookupHost(host)
	if err != nil {
		// The dial fails later with a clearer error.
		return nil
	}
	for _, a := range addrs {
		if addr, err := netip.ParseAddr(a); err == nil {
			if err := checkAddr(addr); err != nil {
				return err
			}
		}
	}
	return nil
}

var sharedSpace = netip.MustParsePrefix("100.64.0.0/10")

func checkAddr(addr netip.Addr) error {
	addr = addr.Unmap()
	if internal(addr) {
		return fmt.Errorf("%w: %s", ErrSSRF, addr)
	}
	return nil
}

func internal(a netip.Addr) bool {
	return a.IsLoopback() || a.IsPrivate() || a.IsUnspecified() ||
		a.IsLinkLocalUnicast() || a.IsLinkLocalMulticast() ||
		a.IsInterfaceLocalMulticast() || sharedSpace.Contains(a)
}

// ValidateIdentifier accepts ids made of ASCII letters, digits, '_', '-'
// and '.', at most 256 bytes, without "..".
func ValidateIdentifier(s string) error {
	switch {
	case s == "":
		return errors.New("horosafe: empty identifier")
	case len(s) > 256:
		return fmt.Errorf("horosafe: identifier longer than 256 bytes")
	case strings.Contains(s, ".."):
		return fmt.Errorf("horosafe: identifier %q contains ..", s)
	}
	if i := strings.IndexFunc(s, func(r rune) bool { return !identRune(r) }); i >= 0 {
		return fmt.Errorf("horosafe: identifier has %q at byte %d", s[i:i+1], i)
	}
	return nil
}

func identRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return r == '_' || r == '-' || r == '.'
}

// LimitedReadAll reads r whole, failing once more than max bytes arrive.
func LimitedReadAll(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("horosafe: body larger than %d bytes", max)
	}
	return data, nil
}
