// Package web retrieves target content over either the direct network or a
// SOCKS5 overlay proxy and turns the returned markup into plain text.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"

	"threatscope/internal/domain"
)

const (
	DefaultProxyURL  = "socks5h://127.0.0.1:9050"
	DefaultTimeout   = 15 * time.Second
	DefaultMaxBytes  = 10 << 20
	DefaultUserAgent = "Mozilla/5.0"
)

var (
	// ErrNotText is the cause of a FetchError for binary or otherwise non-text responses.
	ErrNotText = errors.New("response is not text")
	// ErrTooLarge is the cause of a FetchError for bodies over Options.MaxBytes.
	ErrTooLarge = errors.New("response body exceeds size limit")
)

type Options struct {
	ProxyURL      string
	Timeout       time.Duration
	MaxBytes      int64
	UserAgent     string
	OverlayMarker string
}

func (o *Options) defaults() {
	if o.ProxyURL == "" {
		o.ProxyURL = DefaultProxyURL
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.OverlayMarker == "" {
		o.OverlayMarker = domain.DefaultOverlayMarker
	}
}

// Fetcher performs one GET per call with a hard timeout and no retries.
// Both clients are shared and safe for concurrent use.
type Fetcher struct {
	opts    Options
	direct  *http.Client
	overlay *http.Client
	secret  string
}

func New(opts Options) (*Fetcher, error) {
	opts.defaults()
	dialer, secret, err := socksDialer(opts.ProxyURL)
	if err != nil {
		return nil, err
	}
	return &Fetcher{
		opts:    opts,
		direct:  &http.Client{Timeout: opts.Timeout},
		overlay: &http.Client{Timeout: opts.Timeout, Transport: &http.Transport{DialContext: dialer}},
		secret:  secret,
	}, nil
}

// Classify reports the transport an address will be fetched over.
func (f *Fetcher) Classify(addr domain.TargetAddress) domain.Transport {
	return addr.TransportFor(f.opts.OverlayMarker)
}

// Fetch retrieves the address and returns its extracted text. Every failure
// is a *domain.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, addr domain.TargetAddress) (string, error) {
	transport := f.Classify(addr)
	text, err := f.fetch(ctx, addr, transport)
	if err != nil {
		return "", &domain.FetchError{Address: addr, Transport: transport, Cause: f.redact(err)}
	}
	return text, nil
}

func (f *Fetcher) fetch(ctx context.Context, addr domain.TargetAddress, transport domain.Transport) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(string(addr)), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	client := f.direct
	if transport == domain.TransportOverlay {
		client = f.overlay
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	mediaType, plain, ok := textual(contentType)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotText, mediaType)
	}
	body, err := charset.NewReader(&cappedReader{r: resp.Body, max: f.opts.MaxBytes}, contentType)
	if err != nil {
		return "", err
	}
	if plain {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return Extract(body)
}

// textual reports whether a Content-Type carries text, and whether that text
// is plain (no markup to strip). A missing header is treated as markup.
func textual(contentType string) (mediaType string, plain, ok bool) {
	if strings.TrimSpace(contentType) == "" {
		return "", false, true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType, false, false
	}
	switch {
	case mediaType == "text/plain":
		return mediaType, true, true
	case strings.HasPrefix(mediaType, "text/"),
		mediaType == "application/xhtml+xml",
		mediaType == "application/xml",
		mediaType == "application/json":
		return mediaType, false, true
	}
	return mediaType, false, false
}

// cappedReader fails with ErrTooLarge once more than max bytes are read, so
// a partial page is never scored as if it were complete.
type cappedReader struct {
	r         io.Reader
	max, read int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if room := c.max - c.read + 1; int64(len(p)) > room {
		p = p[:room]
	}
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.read > c.max {
		return 0, fmt.Errorf("%w (%d bytes)", ErrTooLarge, c.max)
	}
	return n, err
}

type dialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// socksDialer builds the overlay dialer. socks5h is accepted as an alias of
// socks5: hostnames are always passed to the proxy for resolution.
func socksDialer(raw string) (dialContextFunc, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", fmt.Errorf("invalid proxy URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "socks5", "socks5h":
	default:
		return nil, "", fmt.Errorf("unsupported proxy scheme %q, want socks5 or socks5h", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, "", errors.New("proxy URL missing host")
	}
	var auth *proxy.Auth
	var secret string
	if u.User != nil {
		secret, _ = u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: secret}
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "1080")
	}
	d, err := proxy.SOCKS5("tcp", host, auth, proxy.Direct)
	if err != nil {
		return nil, "", fmt.Errorf("create SOCKS dialer: %w", err)
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext, secret, nil
	}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		return d.Dial(network, address)
	}, secret, nil
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func (f *Fetcher) redact(err error) error {
	if f.secret == "" || !strings.Contains(err.Error(), f.secret) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), f.secret, "xxxxx"), err: err}
}
