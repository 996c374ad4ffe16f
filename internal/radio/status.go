package radio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// maxStatusBytes caps how much of a status response is read.
const maxStatusBytes = 1 << 20

// SourceEntry is one mount point's record in the status document.
type SourceEntry struct {
	raw    json.RawMessage
	fields map[string]json.RawMessage
}

// Field returns the named value rendered as a string. Strings, numbers and
// booleans are supported; missing keys, null, objects and arrays report false.
func (e SourceEntry) Field(name string) (string, bool) {
	v, ok := e.fields[name]
	if !ok {
		return "", false
	}
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return "", false
	}
	switch c := v[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", false
		}
		return s, true
	case c == 't' || c == 'f':
		return string(v), true
	case c == '-' || (c >= '0' && c <= '9'):
		return string(v), true
	}
	return "", false
}

// Raw is the entry as it appeared in the response body.
func (e SourceEntry) Raw() string { return string(e.raw) }

// StatusDocument is the decoded icestats payload.
type StatusDocument struct {
	Sources []SourceEntry
}

// ParseStatus decodes a status-json.xsl body. A single source object is
// treated as a one-element list; a missing source is an error.
func ParseStatus(data []byte) (*StatusDocument, error) {
	var envelope struct {
		Icestats *struct {
			Source json.RawMessage `json:"source"`
		} `json:"icestats"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.Wrap(err, "decode status document")
	}
	if envelope.Icestats == nil {
		return nil, errors.New("status document has no icestats object")
	}

	src := bytes.TrimSpace(envelope.Icestats.Source)
	if len(src) == 0 || bytes.Equal(src, []byte("null")) {
		return nil, errors.New("status document has no source")
	}

	var raws []json.RawMessage
	switch src[0] {
	case '[':
		if err := json.Unmarshal(src, &raws); err != nil {
			return nil, errors.Wrap(err, "decode source list")
		}
	case '{':
		raws = []json.RawMessage{src}
	default:
		return nil, errors.Errorf("unexpected source type starting with %q", src[0])
	}

	doc := &StatusDocument{Sources: make([]SourceEntry, 0, len(raws))}
	for i, raw := range raws {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, errors.Wrapf(err, "decode source %d", i)
		}
		doc.Sources = append(doc.Sources, SourceEntry{raw: raw, fields: fields})
	}
	return doc, nil
}

// FetchStatus performs a single GET against endpoint and parses the body.
// Scheme-less endpoints are requested over plain http.
func (r *Resolver) FetchStatus(ctx context.Context, endpoint string) (*StatusDocument, error) {
	target := endpoint
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &StatusError{Kind: KindConnect, Endpoint: endpoint, Err: errors.Wrap(err, "create request")}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Debug("status endpoint unreachable", "endpoint", endpoint, "error", err)
		return nil, &StatusError{Kind: KindConnect, Endpoint: endpoint, Err: errors.Wrap(err, "http request")}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Kind: KindParse, Endpoint: endpoint, Err: fmt.Errorf("unexpected status: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBytes))
	if err != nil {
		kind := KindParse
		if isTimeout(err) {
			kind = KindConnect
		}
		return nil, &StatusError{Kind: kind, Endpoint: endpoint, Err: errors.Wrap(err, "read body")}
	}

	doc, err := ParseStatus(body)
	if err != nil {
		slog.Debug("status endpoint returned no usable JSON", "endpoint", endpoint, "error", err)
		return nil, &StatusError{Kind: KindParse, Endpoint: endpoint, Err: err}
	}
	return doc, nil
}

// isTimeout reports whether err is a deadline that expired mid-transfer.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
