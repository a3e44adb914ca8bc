package apiclient

import (
	"net"
	"net/url"
	"regexp"
	"strings"
)

// embeddedURL matches an absolute URL inside a media path. Storage backends
// that treat the URL as a file name collapse "//" to "/", so one or more
// slashes are accepted.
var embeddedURL = regexp.MustCompile(`(?i)https?:/+`)

// ResolveAssetURL turns a media path returned by the API into an absolute URL
// using the client's API origin. See ResolveAssetURL (package function).
func (c *Client) ResolveAssetURL(path string) string {
	return ResolveAssetURL(c.origin, path)
}

// ResolveAssetURL normalises a possibly percent-encoded, possibly relative
// media path:
//
//   - data: URIs and absolute http(s) URLs are returned unchanged, except a
//     local development host URL whose path carries an embedded URL;
//   - an absolute URL embedded in the decoded path is returned on its own,
//     unless it points at a local development host, in which case its path is
//     re-based onto origin;
//   - anything else is prefixed with origin.
//
// The result is always a data: URI or an absolute URL (for non-empty input
// and origin), so applying the function twice equals applying it once.
func ResolveAssetURL(origin, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if hasPrefixFold(path, "data:") {
		return path
	}
	if isAbsolute(path) {
		u, err := url.Parse(path)
		if err != nil || !isLocalHost(u.Hostname()) || !hasEmbeddedURL(u.RequestURI()) {
			return path
		}
		path = u.RequestURI()
	}

	decoded, err := url.PathUnescape(path)
	if err != nil {
		decoded = path
	}

	if loc := embeddedURL.FindStringIndex(decoded); loc != nil {
		scheme := strings.ToLower(strings.TrimRight(decoded[loc[0]:loc[1]], "/"))
		abs := scheme + "//" + decoded[loc[1]:]
		u, err := url.Parse(abs)
		if err == nil && u.Host != "" {
			if !isLocalHost(u.Hostname()) {
				return abs
			}
			decoded = u.RequestURI()
		}
	}

	origin = strings.TrimRight(origin, "/")
	if !strings.HasPrefix(decoded, "/") {
		decoded = "/" + decoded
	}
	return origin + decoded
}

func hasEmbeddedURL(path string) bool {
	decoded, err := url.PathUnescape(path)
	if err != nil {
		decoded = path
	}
	return embeddedURL.MatchString(decoded)
}

func isAbsolute(s string) bool {
	return hasPrefixFold(s, "http://") || hasPrefixFold(s, "https://")
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func isLocalHost(host string) bool {
	switch strings.ToLower(host) {
	case "localhost", "0.0.0.0":
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
