package utils

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

// CanonicalizeOptions controls optional canonicalization policies.
type CanonicalizeOptions struct {
	StripTrailingSlash bool   // treat /a and /a/ the same by removing trailing slash (except for root "/")
	DefaultScheme      string // if empty, require scheme in input; otherwise assume this scheme for schemeless URLs
	SortQuery          bool   // re-encode the query with sorted keys; leave false to keep it byte-for-byte
}

// Errors
var (
	ErrEmptyURL       = errors.New("empty url")
	ErrMissingHost    = errors.New("missing host")
	ErrRelativeURL    = errors.New("url is not absolute")
	ErrInsecureScheme = errors.New("url scheme must be https")
)

// Canonicalize returns a deterministic URL string or an error. The host is
// lower-cased and converted to punycode, default ports and userinfo are
// dropped, and the path is cleaned.
func Canonicalize(raw string, opts CanonicalizeOptions) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &url.Error{Op: "canonicalize", URL: raw, Err: ErrEmptyURL}
	}

	if opts.DefaultScheme != "" && !strings.Contains(raw, "://") {
		raw = opts.DefaultScheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	if u.Host == "" {
		return "", &url.Error{Op: "canonicalize", URL: raw, Err: ErrMissingHost}
	}

	u.Scheme = strings.ToLower(u.Scheme)

	host := strings.ToLower(u.Hostname())
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}

	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	} else if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}

	// Drop userinfo (credentials)
	u.User = nil

	if u.Path != "" {
		cleanPath := path.Clean(u.Path)
		if cleanPath == "." {
			cleanPath = "/"
		}
		if opts.StripTrailingSlash && len(cleanPath) > 1 {
			cleanPath = strings.TrimRight(cleanPath, "/")
		}
		if opts.StripTrailingSlash && cleanPath == "/" {
			cleanPath = ""
		}
		u.Path = cleanPath
		u.RawPath = ""
	}

	u.Fragment = ""

	if opts.SortQuery {
		q := u.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := url.Values{}
		for _, k := range keys {
			values := q[k]
			sort.Strings(values)
			for _, v := range values {
				ordered.Add(k, v)
			}
		}
		u.RawQuery = ordered.Encode()
	}

	return u.String(), nil
}

// NormalizeBaseURL canonicalizes a service base URL so paths can be appended
// to it. The result never ends in a slash and carries no query.
func NormalizeBaseURL(raw string) (string, error) {
	c, err := Canonicalize(raw, CanonicalizeOptions{StripTrailingSlash: true, DefaultScheme: "https"})
	if err != nil {
		return "", err
	}
	u, err := url.Parse(c)
	if err != nil {
		return "", err
	}
	u.RawQuery = ""
	return u.String(), nil
}

// JoinURL appends p (which may carry its own query string) to base. The
// query is kept verbatim so literal probe paths like "?select=*" are sent
// exactly as written. An absolute p is returned unchanged.
func JoinURL(base, p string) string {
	if strings.Contains(p, "://") {
		return p
	}
	base = strings.TrimRight(base, "/")
	if p == "" {
		return base
	}
	if !strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "?") {
		p = "/" + p
	}
	return base + p
}

// ValidateTargetURL checks that raw is an absolute URL with a host and an
// https scheme. allowHTTP additionally accepts plain http, for local mocks.
func ValidateTargetURL(raw string, allowHTTP bool) error {
	if strings.TrimSpace(raw) == "" {
		return ErrEmptyURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %q: %w", raw, err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("%q: %w", raw, ErrRelativeURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%q: %w", raw, ErrMissingHost)
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		return nil
	case "http", "ws":
		if allowHTTP {
			return nil
		}
	}
	return fmt.Errorf("%q: %w", raw, ErrInsecureScheme)
}

// MaskSecret keeps the first and last four characters of a credential and
// replaces the middle, so output can be shared without leaking keys.
func MaskSecret(s string) string {
	if len(s) <= 12 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// secretParams are query parameters that carry keys or tokens.
var secretParams = []string{"apikey", "access_token", "token"}

// MaskURL masks credential query parameters. Input without them, or that
// does not parse, is returned unchanged.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	q := u.Query()
	changed := false
	for _, p := range secretParams {
		if v := q.Get(p); v != "" {
			q.Set(p, MaskSecret(v))
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}
