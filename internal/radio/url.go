package radio

import (
	"net/url"
	"strings"
)

const statusPath = "/status-json.xsl"

const (
	msgInvalidStatusURL = "Invalid URL provided; can't get station info!"
	msgInvalidMount     = "Invalid URL provided; can't get mount point!"
)

// DeriveStatusURL returns the status-json.xsl endpoint of the server hosting
// the given stream. The scheme is kept when the stream URL carries one.
func DeriveStatusURL(streamURL string) (string, error) {
	base, _, ok := splitStreamURL(streamURL)
	if !ok {
		return "", invalidURL(streamURL, msgInvalidStatusURL)
	}
	return base + statusPath, nil
}

// DeriveMountPoint returns the first path segment following the host.
func DeriveMountPoint(streamURL string) (string, error) {
	_, mount, ok := splitStreamURL(streamURL)
	if !ok || mount == "" {
		return "", invalidURL(streamURL, msgInvalidMount)
	}
	return mount, nil
}

// splitStreamURL breaks a stream URL into "scheme://host[:port]" (or just
// "host[:port]" for scheme-less input) and its mount point. Query strings and
// fragments never end up in the mount point.
func splitStreamURL(raw string) (base string, mount string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return "", "", false
		}
		return u.Scheme + "://" + u.Host, firstSegment(u.Path), true
	}

	// host/mount: parse as a network-path reference so ports, queries and
	// escapes are handled the same way as above.
	u, err := url.Parse("//" + raw)
	if err != nil || u.Host == "" {
		return "", "", false
	}
	return u.Host, firstSegment(u.Path), true
}

func firstSegment(p string) string {
	seg, _, _ := strings.Cut(strings.TrimLeft(p, "/"), "/")
	return seg
}
