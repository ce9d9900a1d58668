package proxy

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrInvalidURI = errors.New("invalid proxy URI")
	ErrEmptyPool  = errors.New("proxy rotation pool is empty")
)

const (
	SchemeHTTP   = "http"
	SchemeSOCKS5 = "socks5"

	defaultPort = 8080
)

// Spec is a parsed proxy URI. It is immutable once parsed.
type Spec struct {
	Scheme   string
	Host     string
	Port     int
	Username string
	Password string
}

// Parse reads "[scheme://][user[:pass]@]host[:port]". A missing scheme means
// http, a missing port means 8080 and every scheme other than socks5 is
// treated as http.
func Parse(raw string) (Spec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Spec{}, fmt.Errorf("%w: empty", ErrInvalidURI)
	}

	scheme, rest := SchemeHTTP, raw
	if i := strings.Index(raw, "://"); i >= 0 {
		scheme, rest = strings.ToLower(raw[:i]), raw[i+3:]
	}
	if scheme != SchemeSOCKS5 {
		scheme = SchemeHTTP
	}

	var spec Spec
	spec.Scheme = scheme

	hostPort := rest
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		auth := rest[:i]
		hostPort = rest[i+1:]
		if user, pass, ok := strings.Cut(auth, ":"); ok {
			spec.Username, spec.Password = user, pass
		} else {
			spec.Username = auth
		}
	}
	hostPort = strings.TrimSuffix(hostPort, "/")

	spec.Port = defaultPort
	if i := strings.LastIndex(hostPort, ":"); i >= 0 {
		port, err := strconv.Atoi(hostPort[i+1:])
		if err != nil || port < 1 || port > 65535 {
			return Spec{}, fmt.Errorf("%w: bad port in %q", ErrInvalidURI, redact(raw))
		}
		spec.Host, spec.Port = hostPort[:i], port
	} else {
		spec.Host = hostPort
	}

	if spec.Host == "" {
		return Spec{}, fmt.Errorf("%w: missing host in %q", ErrInvalidURI, redact(raw))
	}

	return spec, nil
}

// ParsePool parses every entry of a rotation pool, keeping order.
func ParsePool(raw []string) ([]Spec, error) {
	pool := make([]Spec, 0, len(raw))
	for i, r := range raw {
		spec, err := Parse(r)
		if err != nil {
			return nil, fmt.Errorf("pool entry %d: %w", i, err)
		}
		pool = append(pool, spec)
	}
	return pool, nil
}

// Server is the scheme://host:port form handed to the browser.
func (s Spec) Server() string {
	return s.Scheme + "://" + s.Address()
}

func (s Spec) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s Spec) HasAuth() bool {
	return s.Username != ""
}

// URL rebuilds the full URI including credentials.
func (s Spec) URL() string {
	u := url.URL{Scheme: s.Scheme, Host: s.Address()}
	if s.HasAuth() {
		if s.Password != "" {
			u.User = url.UserPassword(s.Username, s.Password)
		} else {
			u.User = url.User(s.Username)
		}
	}
	return u.String()
}

// String never includes the password.
func (s Spec) String() string {
	if s.HasAuth() {
		return s.Scheme + "://" + s.Username + ":***@" + s.Address()
	}
	return s.Server()
}

func redact(raw string) string {
	i := strings.LastIndex(raw, "@")
	if i < 0 {
		return raw
	}
	prefix := ""
	if j := strings.Index(raw, "://"); j >= 0 && j < i {
		prefix = raw[:j+3]
	}
	return prefix + "***@" + raw[i+1:]
}
