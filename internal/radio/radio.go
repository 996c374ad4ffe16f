// Package radio resolves now-playing information for Icecast/SHOUTcast
// streams from the server's status-json.xsl document.
package radio

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Unknown is reported for every field the status document does not provide.
const Unknown = "Unknown"

// DefaultTimeout bounds a single status fetch.
const DefaultTimeout = 10 * time.Second

// FieldKind selects one value of a StationInfo.
type FieldKind int

const (
	FieldStation FieldKind = iota
	FieldSong
	FieldArtist
	FieldInfo
)

func (k FieldKind) String() string {
	switch k {
	case FieldStation:
		return "station"
	case FieldSong:
		return "song"
	case FieldArtist:
		return "artist"
	case FieldInfo:
		return "info"
	}
	return "N/A"
}

// StationInfo holds the now-playing fields of one mount point.
type StationInfo struct {
	Station string `json:"station"`
	Song    string `json:"song"`
	Artist  string `json:"artist"`
	Info    string `json:"info"`
}

func unknownInfo() StationInfo {
	return StationInfo{Station: Unknown, Song: Unknown, Artist: Unknown, Info: Unknown}
}

// Field returns the value selected by k, or "N/A" for an unrecognized kind.
func (i StationInfo) Field(k FieldKind) string {
	switch k {
	case FieldStation:
		return i.Station
	case FieldSong:
		return i.Song
	case FieldArtist:
		return i.Artist
	case FieldInfo:
		return i.Info
	}
	return "N/A"
}

// Extract scans the sources of doc for entries belonging to mount. Every
// matching entry overwrites the fields it carries, so the last match wins.
//
// An entry with a listenurl matches when the listenurl's mount equals mount.
// Entries without one fall back to a substring search over the raw entry,
// which can produce false positives when the mount name shows up in an
// unrelated field such as the description.
func Extract(doc *StatusDocument, mount string) StationInfo {
	info := unknownInfo()
	if doc == nil {
		return info
	}
	for _, src := range doc.Sources {
		if !src.matches(mount) {
			continue
		}
		if v, ok := src.Field("server_name"); ok {
			info.Station = v
		}
		if v, ok := src.Field("artist"); ok {
			info.Artist = v
		}
		if v, ok := src.Field("title"); ok {
			info.Song = v
		}
		if v, ok := src.Field("yp_currently_playing"); ok {
			info.Info = v
		}
	}
	return info
}

// ExtractInfo is Extract narrowed to a single field.
func ExtractInfo(doc *StatusDocument, mount string, field FieldKind) string {
	return Extract(doc, mount).Field(field)
}

func (e SourceEntry) matches(mount string) bool {
	if listen, ok := e.Field("listenurl"); ok {
		if _, m, ok := splitStreamURL(listen); ok && m != "" {
			return m == mount
		}
	}
	return strings.Contains(string(e.raw), mount)
}

// Resolver fetches station information. It keeps no state besides its HTTP
// client and is safe for concurrent use.
type Resolver struct {
	client *http.Client
}

// NewResolver returns a Resolver whose fetches time out after timeout, or
// DefaultTimeout when timeout is not positive.
func NewResolver(timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{client: &http.Client{Timeout: timeout}}
}

// NewResolverWithClient uses the given client as is.
func NewResolverWithClient(client *http.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve fetches the status document once and extracts all four fields.
// On error every field is Unknown.
func (r *Resolver) Resolve(ctx context.Context, streamURL string) (StationInfo, error) {
	mount, err := DeriveMountPoint(streamURL)
	if err != nil {
		return unknownInfo(), err
	}
	endpoint, err := DeriveStatusURL(streamURL)
	if err != nil {
		return unknownInfo(), err
	}
	doc, err := r.FetchStatus(ctx, endpoint)
	if err != nil {
		return unknownInfo(), err
	}
	return Extract(doc, mount), nil
}

// Lookup resolves a single field with its own fetch.
func (r *Resolver) Lookup(ctx context.Context, streamURL string, field FieldKind) (string, error) {
	info, err := r.Resolve(ctx, streamURL)
	if err != nil {
		return Unknown, err
	}
	return info.Field(field), nil
}

// StationName returns the server_name of the stream's mount.
func (r *Resolver) StationName(ctx context.Context, streamURL string) (string, error) {
	return r.Lookup(ctx, streamURL, FieldStation)
}

// CurrentSong returns the title currently playing.
func (r *Resolver) CurrentSong(ctx context.Context, streamURL string) (string, error) {
	return r.Lookup(ctx, streamURL, FieldSong)
}

// CurrentSongArtist returns the artist currently playing.
func (r *Resolver) CurrentSongArtist(ctx context.Context, streamURL string) (string, error) {
	return r.Lookup(ctx, streamURL, FieldArtist)
}

// CurrentSongInfo returns yp_currently_playing, usually "artist - title".
func (r *Resolver) CurrentSongInfo(ctx context.Context, streamURL string) (string, error) {
	return r.Lookup(ctx, streamURL, FieldInfo)
}

// Fallback folds a lookup result into a single display string: the value on
// success, the error's operator-facing message otherwise.
func Fallback(value string, err error) string {
	if err != nil {
		return err.Error()
	}
	return value
}
