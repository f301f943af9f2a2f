package cfddns

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// DefaultIPSources are the echo services consulted when no explicit list is
// given. Order matters: earlier entries are preferred, later ones are
// fallbacks.
var DefaultIPSources = []string{
	"https://api.ipify.org",
	"https://ifconfig.me/ip",
	"https://checkip.amazonaws.com",
	"https://ipecho.net/plain",
	"https://ident.me",
}

// Resolver returns the caller's current public IPv4 address.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(context.Context) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context) (string, error) { return f(ctx) }

// WebResolver constructs a resolver which asks external web services for the
// public IP address.
//
// Each serviceURL must speak http and return status "200 OK" with an IPv4
// address as the first line of the response body. The URLs form a priority
// chain: they are tried strictly in order and the first response that parses
// as an IPv4 address wins. A source that fails, whether by transport error,
// error status, or an unparsable or non-IPv4 body, is skipped and the next
// one is tried. There are no retries within a single source.
//
// When no serviceURL is given the DefaultIPSources list is used.
func WebResolver(serviceURL ...string) Resolver {
	if len(serviceURL) == 0 {
		serviceURL = DefaultIPSources
	}
	return &webResolver{sources: serviceURL}
}

type webResolver struct {
	httpClient *http.Client
	sources    []string
}

// Resolve implements Resolver. It returns ErrNoIPSource, carrying every
// per-source failure, when the whole chain is exhausted.
func (wr *webResolver) Resolve(ctx context.Context) (string, error) {
	var errs error
	for _, src := range wr.sources {
		ip, err := wr.lookup(ctx, src)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", src, err))
			continue
		}
		return ip, nil
	}
	if errs == nil {
		return "", ErrNoIPSource
	}
	return "", fmt.Errorf("%w: %s", ErrNoIPSource, errs)
}

func (wr *webResolver) lookup(ctx context.Context, url string) (string, error) {
	// 15 seconds is an eternity for the size of the request we're making,
	// but it bounds the call even when the caller supplied context.Background
	// and http.DefaultClient (with no timeout).
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http request returned %s", resp.Status)
	}

	line, _ := bufio.NewReader(resp.Body).ReadString('\n')
	ipstring := strings.TrimSpace(line)
	ip, err := netip.ParseAddr(ipstring)
	if err != nil {
		return "", fmt.Errorf("error parsing IP address from response body: %w", err)
	}
	if !ip.Is4() {
		return "", fmt.Errorf("%q is not an IPv4 address", ipstring)
	}
	return ipstring, nil
}

// FromString constructs a resolver that always returns addr,
// skipping public IP discovery entirely.
func FromString(addr string) (Resolver, error) {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse IP: %w", err)
	}
	if !ip.Is4() {
		return nil, fmt.Errorf("%q is not an IPv4 address", addr)
	}
	return stringResolver(addr), nil
}

type stringResolver string

func (s stringResolver) Resolve(context.Context) (string, error) {
	return string(s), nil
}
