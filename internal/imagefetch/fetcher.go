// Package imagefetch downloads leaf images referenced by URL.
package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"
	"time"

	"github.com/atinyakov/agritracker/internal/common"
)

const (
	// DefaultMaxBytes caps downloaded images at 10 MiB.
	DefaultMaxBytes = 10 << 20
	// DefaultTimeout bounds a single download.
	DefaultTimeout = 15 * time.Second
)

// ErrBlockedAddress is returned when a URL, or a redirect it leads to,
// resolves to a loopback, private, link-local or otherwise internal address.
var ErrBlockedAddress = errors.New("address is not publicly routable")

var reservedRanges = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("64:ff9b::/96"),
	netip.MustParsePrefix("64:ff9b:1::/48"),
}

// Fetcher downloads images over HTTP.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// New returns a Fetcher that only connects to public addresses. Zero values
// select the defaults.
func New(timeout time.Duration, maxBytes int64) *Fetcher {
	return newFetcher(timeout, maxBytes, func(ap netip.AddrPort) error {
		return publicOnly(ap.Addr())
	})
}

// newFetcher builds a Fetcher whose every connection, redirects included,
// is vetted by guard after DNS resolution. A nil guard allows any address.
func newFetcher(timeout time.Duration, maxBytes int64, guard func(netip.AddrPort) error) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	dialer := &net.Dialer{Timeout: timeout}
	if guard != nil {
		dialer.Control = func(_, address string, _ syscall.RawConn) error {
			ap, err := netip.ParseAddrPort(address)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
			}
			return guard(ap)
		}
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// Connect to the target directly so the guard sees its address.
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &Fetcher{
		client:   &http.Client{Timeout: timeout, Transport: transport},
		maxBytes: maxBytes,
	}
}

func publicOnly(addr netip.Addr) error {
	addr = addr.Unmap()
	if !addr.IsGlobalUnicast() || addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, addr)
	}
	for _, p := range reservedRanges {
		if p.Contains(addr) {
			return fmt.Errorf("%w: %s", ErrBlockedAddress, addr)
		}
	}
	return nil
}

// Fetch downloads rawURL and returns its body and sniffed MIME type.
// Oversized or non-image bodies wrap common.ErrValidation; transport
// failures and non-2xx answers wrap common.ErrDependency.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: bad image url: %w", common.ErrValidation, err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrBlockedAddress) {
			return nil, "", fmt.Errorf("%w: image url must point to a public host: %w", common.ErrValidation, err)
		}
		return nil, "", fmt.Errorf("%w: download image: %w", common.ErrDependency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: download image: status %d", common.ErrDependency, resp.StatusCode)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, "", fmt.Errorf("%w: image larger than %d bytes", common.ErrValidation, f.maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read image: %w", common.ErrDependency, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("%w: image larger than %d bytes", common.ErrValidation, f.maxBytes)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty image", common.ErrValidation)
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("%w: url does not point to an image (%s)", common.ErrValidation, mimeType)
	}
	return data, mimeType, nil
}
