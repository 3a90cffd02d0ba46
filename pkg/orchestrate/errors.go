package orchestrate

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for programmatic handling with errors.Is. Each kind
// corresponds to one (status, code) pair reported by the service; ErrRequest
// and ErrService match whole classes (any 4xx, any 5xx) in addition to the
// specific kind.
var (
	// ErrBadRequest indicates a malformed request body (400 api_bad_request).
	ErrBadRequest = errors.New("bad request")
	// ErrMalformedSearch indicates an unparseable search query (400 search_query_malformed).
	ErrMalformedSearch = errors.New("malformed search query")
	// ErrMalformedRef indicates an invalid ref value (400 item_ref_malformed).
	ErrMalformedRef = errors.New("malformed ref")
	// ErrInvalidSearchParam indicates a recognized but out-of-range search
	// parameter, such as a limit over 100 (400 search_param_invalid).
	ErrInvalidSearchParam = errors.New("invalid search parameter")
	// ErrUnauthorized indicates a missing or invalid API key (401 security_unauthorized).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates the requested item does not exist (404 items_not_found).
	ErrNotFound = errors.New("not found")
	// ErrIndexingConflict indicates the write was durable but a field's type
	// disagrees with the collection's inferred search schema, so parts of the
	// document were skipped by the indexer (409 indexing_conflict). KeyValue
	// treats this as a soft success.
	ErrIndexingConflict = errors.New("indexing conflict")
	// ErrVersionMismatch indicates an If-Match precondition failed (412 item_version_mismatch).
	ErrVersionMismatch = errors.New("version mismatch")
	// ErrAlreadyPresent indicates an If-None-Match precondition failed (412 item_already_present).
	ErrAlreadyPresent = errors.New("already present")

	// ErrRequest matches any 4xx response, classified or not.
	ErrRequest = errors.New("request error")
	// ErrService matches any 5xx response.
	ErrService = errors.New("service error")
)

// Error is a classified service failure. It carries the HTTP status, the
// machine-facing code from the response body, the human-readable message and
// the full normalized response for diagnostics.
type Error struct {
	Status   int
	Code     string
	Message  string
	Response *Response

	kind error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" {
		return fmt.Sprintf("orchestrate: %v (%d %s): %s", e.kind, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("orchestrate: %v (%d %s)", e.kind, e.Status, e.Code)
}

// Is matches the specific sentinel kind, and additionally ErrRequest for any
// 4xx and ErrService for any 5xx.
func (e *Error) Is(target error) bool {
	switch {
	case target == e.kind:
		return true
	case target == ErrRequest:
		return e.Status >= 400 && e.Status < 500
	case target == ErrService:
		return e.Status >= 500
	}
	return false
}

// Kind returns the sentinel this error was classified as.
func (e *Error) Kind() error { return e.kind }

// errorTable maps the (status, code) pairs the service is known to emit to
// their sentinel kinds. Order is irrelevant: pairs are disjoint.
var errorTable = []struct {
	status int
	code   string
	kind   error
}{
	{400, "api_bad_request", ErrBadRequest},
	{400, "search_query_malformed", ErrMalformedSearch},
	{400, "item_ref_malformed", ErrMalformedRef},
	{400, "search_param_invalid", ErrInvalidSearchParam},
	{401, "security_unauthorized", ErrUnauthorized},
	{404, "items_not_found", ErrNotFound},
	{409, "indexing_conflict", ErrIndexingConflict},
	{412, "item_version_mismatch", ErrVersionMismatch},
	{412, "item_already_present", ErrAlreadyPresent},
	{500, "security_authentication", ErrService},
	{500, "search_index_not_found", ErrService},
	{500, "internal_error", ErrService},
}

// Classify maps a completed response to a typed error, or nil for any status
// below 400. Classification reads only the status and the body's code field,
// never the request method. Responses below 400 short-circuit before the
// body is inspected so that empty 204 bodies never misclassify.
func Classify(resp *Response) error {
	if resp == nil || resp.Status < 400 {
		return nil
	}

	eb := resp.errorBody()
	kind := error(nil)
	for _, entry := range errorTable {
		if entry.status == resp.Status && entry.code == eb.Code {
			kind = entry.kind
			break
		}
	}
	if kind == nil {
		if resp.Status >= 500 {
			kind = ErrService
		} else {
			kind = ErrRequest
		}
	}
	return &Error{
		Status:   resp.Status,
		Code:     eb.Code,
		Message:  eb.Message,
		Response: resp,
		kind:     kind,
	}
}
