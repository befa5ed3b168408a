package model

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

var schemes = map[string]int{
	"http": 80, "https": 443,
}

var ErrUnsupportedScheme = errors.New("unsupported scheme")

// Origin identifies the server a connection is opened to. Origins are
// comparable, two of them are equal iff all fields match.
type Origin struct {
	Scheme   string
	Host     string
	Port     int
	IsSecure bool
}

// NewOrigin parses rawURL and returns its origin.
func NewOrigin(rawURL string) (Origin, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Origin{}, err
	}
	return OriginOf(u)
}

func OriginOf(u *url.URL) (Origin, error) {
	scheme := strings.ToLower(u.Scheme)
	port, ok := schemes[scheme]
	if !ok {
		return Origin{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if p := u.Port(); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return Origin{}, url.InvalidHostError(u.Host)
		}
		port = int(n)
	}
	host := u.Hostname()
	if host == "" {
		return Origin{}, url.InvalidHostError("empty host")
	}
	if net.ParseIP(host) == nil {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return Origin{}, err
		}
		host = ascii
	}
	return Origin{
		Scheme:   scheme,
		Host:     strings.ToLower(host),
		Port:     port,
		IsSecure: scheme == "https",
	}, nil
}

// Address is the host:port to dial.
func (o Origin) Address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Authority is the value of the Host header, the port is omitted when it is
// the default one for the scheme.
func (o Origin) Authority() string {
	host := o.Host
	if strings.IndexByte(host, ':') >= 0 {
		host = "[" + host + "]"
	}
	if schemes[o.Scheme] == o.Port {
		return host
	}
	return host + ":" + strconv.Itoa(o.Port)
}

func (o Origin) String() string {
	return o.Scheme + "://" + o.Authority()
}
