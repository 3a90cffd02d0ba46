package orchestrate

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/silvabox/orchestrate-go/internal/orcapi"
)

// Response is a normalized service response: status, headers, raw body, the
// version ref the service reported (from ETag or the trailing segment of
// Content-Location/Location) and the moment the request completed (from the
// Date header, local clock when absent).
type Response struct {
	Status      int
	Header      http.Header
	RawBody     []byte
	Ref         string
	RequestTime time.Time
}

func newResponse(status int, header http.Header, body []byte) *Response {
	if header == nil {
		header = make(http.Header)
	}
	return &Response{
		Status:      status,
		Header:      header,
		RawBody:     body,
		Ref:         orcapi.ParseRef(header),
		RequestTime: orcapi.RequestTime(header),
	}
}

// Body decodes the raw body as a JSON object. Empty or non-object bodies
// yield nil.
func (r *Response) Body() map[string]any {
	if r == nil || len(r.RawBody) == 0 {
		return nil
	}
	var value map[string]any
	if err := json.Unmarshal(r.RawBody, &value); err != nil {
		return nil
	}
	return value
}

func (r *Response) errorBody() orcapi.ErrorBody {
	if r == nil {
		return orcapi.ErrorBody{}
	}
	return orcapi.DecodeErrorBody(r.RawBody)
}

func (r *Response) listing() (*orcapi.Listing, error) {
	return orcapi.DecodeListing(r.RawBody)
}
