// Package orcapi implements the wire-format details shared by the HTTP
// client and the in-memory mock service: version-ref extraction from
// response headers, request timestamps, structured error bodies and the
// result-listing envelope returned by graph reads.
package orcapi

import (
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// ErrorBody is the JSON payload the service attaches to 4xx/5xx responses.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// DecodeErrorBody parses an error payload. A body that is empty or not a
// JSON object yields a zero ErrorBody, never an error: classification must
// keep working for responses without structured bodies.
func DecodeErrorBody(body []byte) ErrorBody {
	var eb ErrorBody
	if len(body) == 0 {
		return eb
	}
	_ = json.Unmarshal(body, &eb)
	return eb
}

// ListingPath identifies one document inside a listing entry.
type ListingPath struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
	Ref        string `json:"ref"`
}

// ListingResult is one entry of a result listing.
type ListingResult struct {
	Path    ListingPath    `json:"path"`
	Value   map[string]any `json:"value"`
	Reftime int64          `json:"reftime"`
}

// Listing is the envelope for graph and collection reads. Next, when
// present, is the path of the following page.
type Listing struct {
	Count   int             `json:"count"`
	Results []ListingResult `json:"results"`
	Next    string          `json:"next,omitempty"`
}

// DecodeListing parses a result-listing envelope.
func DecodeListing(body []byte) (*Listing, error) {
	var l Listing
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// ReftimeToTime converts a listing reftime (epoch milliseconds) to a Time.
func ReftimeToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ParseRef extracts the version ref from response headers. The service
// reports it either directly in ETag or as the trailing segment of
// Content-Location or Location (".../refs/<ref>").
func ParseRef(h http.Header) string {
	if etag := h.Get("Etag"); etag != "" {
		return trimETag(etag)
	}
	for _, name := range []string{"Content-Location", "Location"} {
		if loc := h.Get(name); loc != "" {
			if ref := trailingSegment(loc); ref != "" {
				return ref
			}
		}
	}
	return ""
}

func trimETag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	return strings.Trim(etag, `"`)
}

func trailingSegment(loc string) string {
	loc = strings.TrimSuffix(loc, "/")
	if idx := strings.LastIndex(loc, "/"); idx >= 0 {
		return loc[idx+1:]
	}
	return loc
}

// RequestTime reports when the service handled the request, from the Date
// header when present and parseable, otherwise the local clock.
func RequestTime(h http.Header) time.Time {
	if date := h.Get("Date"); date != "" {
		if t, err := http.ParseTime(date); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
