// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// NormalizeURL resolves rawURL against the page location and returns the
// canonical href: lower-case scheme, ASCII (punycode) lower-case host, default
// ports dropped. Unparseable input is returned unchanged.
func (p *Platform) NormalizeURL(rawURL string) string {
	u, err := p.resolve(rawURL)
	if err != nil {
		return rawURL
	}
	return normalize(u).String()
}

func normalize(u *url.URL) *url.URL {
	out := *u
	out.Scheme = strings.ToLower(out.Scheme)

	host, port := out.Hostname(), out.Port()
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	host = strings.ToLower(host)
	if (out.Scheme == "http" && port == "80") || (out.Scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		out.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		out.Host = "[" + host + "]"
	default:
		out.Host = host
	}
	if out.Path == "" && out.Host != "" {
		out.Path = "/"
	}
	return &out
}

// Origin returns scheme://host[:port] of rawURL after normalization.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	n := normalize(u)
	return n.Scheme + "://" + n.Host
}
