package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"ipwatch/internal/types"
	"ipwatch/internal/version"

	"go.uber.org/zap"
)

// maxBodySize bounds how much of a source response is read
const maxBodySize = 256

// DefaultTimeout is the per-source request timeout
const DefaultTimeout = 10 * time.Second

// DefaultSources is used when no sources are configured
var DefaultSources = []string{
	"https://api.ipify.org",
	"https://ifconfig.me/ip",
	"https://ident.me",
	"https://checkip.amazonaws.com",
}

// SourceError describes why a single source was skipped
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// AllSourcesError is returned when no source produced an address
type AllSourcesError struct {
	Failures []*SourceError
}

func (e *AllSourcesError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%v (%s)", types.ErrAllSourcesFailed, strings.Join(msgs, "; "))
}

// Is makes errors.Is(err, types.ErrAllSourcesFailed) and types.ErrResolution match
func (e *AllSourcesError) Is(target error) bool {
	return target == types.ErrAllSourcesFailed || target == types.ErrResolution
}

// Resolver looks up the public address using external echo services
type Resolver struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		if client != nil {
			r.client = client
		}
	}
}

// WithTimeout sets the per-source timeout
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New creates a resolver
func New(logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Resolver{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   5 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				DisableCompression:    true,
			},
		},
		timeout: DefaultTimeout,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve tries sources in order and returns the first valid address.
// Each source is queried once; failures move on to the next source.
func (r *Resolver) Resolve(ctx context.Context, sources []string) (netip.Addr, error) {
	if len(sources) == 0 {
		return netip.Addr{}, types.ErrNoSources
	}

	failures := make([]*SourceError, 0, len(sources))
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return netip.Addr{}, fmt.Errorf("%w: %w", types.ErrResolution, err)
		}

		addr, err := r.query(ctx, source)
		if err == nil {
			r.logger.Debug("Resolved address",
				zap.String("source", source),
				zap.String("address", addr.String()))
			return addr, nil
		}

		r.logger.Debug("Address source failed",
			zap.String("source", source),
			zap.Error(err))
		failures = append(failures, &SourceError{Source: source, Err: err})
	}

	return netip.Addr{}, &AllSourcesError{Failures: failures}
}

// query performs a single fetch against one source
func (r *Resolver) query(ctx context.Context, source string) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", version.GetInfo().UserAgent())
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := r.client.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("request failed: %w", err)
	}

	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return netip.Addr{}, fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to read response: %w", err)
	}

	return ParseAddress(string(body))
}

// ParseAddress trims surrounding whitespace and parses an IPv4 or IPv6 address
func ParseAddress(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid address %q: %w", truncate(strings.TrimSpace(s), 64), err)
	}
	if addr.Zone() != "" {
		return netip.Addr{}, errors.New("zoned addresses are not public addresses")
	}
	return addr, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
