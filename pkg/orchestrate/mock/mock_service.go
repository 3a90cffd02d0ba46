// Package mock implements an in-memory document/graph service speaking the
// same wire protocol as the real API: versioned documents addressed by
// collection and key, If-Match/If-None-Match preconditions, directed typed
// edges and multi-hop relation listings. It backs the sandbox command and
// the SDK's mock runtime mode, and doubles as a fixture server in tests.
package mock

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/silvabox/orchestrate-go/internal/orcapi"
	"github.com/silvabox/orchestrate-go/internal/seed"
)

type itemKey struct {
	collection string
	key        string
}

type document struct {
	value   map[string]any
	ref     string
	reftime time.Time
}

// Server is the in-memory service. It implements http.Handler.
type Server struct {
	mu        sync.RWMutex
	documents map[itemKey]*document
	edges     map[itemKey]map[string]map[itemKey]struct{}
	schemas   map[string]map[string]string
	apiKey    string
	pageLimit int
	now       func() time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithAPIKey restricts access to the given API key. By default any
// non-empty key is accepted.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithClock overrides the clock used for reftimes and Date headers.
func WithClock(fn func() time.Time) Option {
	return func(s *Server) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithPageLimit caps how many results a relation listing returns per page.
func WithPageLimit(limit int) Option {
	return func(s *Server) {
		if limit > 0 {
			s.pageLimit = limit
		}
	}
}

// New creates an empty Server.
func New(opts ...Option) *Server {
	s := &Server{
		documents: make(map[itemKey]*document),
		edges:     make(map[itemKey]map[string]map[itemKey]struct{}),
		schemas:   make(map[string]map[string]string),
		pageLimit: 100,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed loads documents and edges from seed entries. Seeded documents get
// fresh refs; seeded edges may reference documents from any entry.
func (s *Server) Seed(entries []seed.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, e := range entries {
		id := itemKey{collection: e.Collection, key: e.Key}
		value := e.Value
		if value == nil {
			value = make(map[string]any)
		}
		s.documents[id] = &document{value: value, ref: newRef(), reftime: now}
		s.recordSchema(e.Collection, value)
	}
	for _, e := range entries {
		from := itemKey{collection: e.Collection, key: e.Key}
		for _, r := range e.Relations {
			if strings.TrimSpace(r.Kind) == "" {
				return fmt.Errorf("mock: seed relation for %s/%s is missing kind", e.Collection, e.Key)
			}
			s.addEdge(from, r.Kind, itemKey{collection: r.Collection, key: r.Key})
		}
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.writeError(w, http.StatusUnauthorized, "security_unauthorized", "A valid API key was not provided.")
		return
	}

	segments := splitPath(r.URL.Path)
	if len(segments) == 0 || segments[0] != "v0" {
		s.writeError(w, http.StatusNotFound, "items_not_found", "The requested items could not be found.")
		return
	}
	segments = segments[1:]

	switch {
	case len(segments) == 2:
		s.handleItem(w, r, itemKey{collection: segments[0], key: segments[1]})
	case len(segments) == 6 && segments[2] == "relation":
		from := itemKey{collection: segments[0], key: segments[1]}
		to := itemKey{collection: segments[4], key: segments[5]}
		s.handleEdge(w, r, from, segments[3], to)
	case len(segments) >= 4 && segments[2] == "relations":
		root := itemKey{collection: segments[0], key: segments[1]}
		s.handleRelations(w, r, root, segments[3:])
	default:
		s.writeError(w, http.StatusNotFound, "items_not_found", "The requested items could not be found.")
	}
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request, id itemKey) {
	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, id)
	case http.MethodPut:
		s.handlePut(w, r, id)
	case http.MethodDelete:
		s.handleDelete(w, r, id)
	default:
		s.writeError(w, http.StatusBadRequest, "api_bad_request", "The API request is malformed.")
	}
}

func (s *Server) handleGet(w http.ResponseWriter, id itemKey) {
	s.mu.RLock()
	doc, ok := s.documents[id]
	var payload []byte
	if ok {
		payload, _ = json.Marshal(doc.value)
	}
	s.mu.RUnlock()

	if !ok {
		s.writeError(w, http.StatusNotFound, "items_not_found", "The requested items could not be found.")
		return
	}
	s.refHeaders(w, id, doc.ref, true)
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request, id itemKey) {
	var value map[string]any
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		s.writeError(w, http.StatusBadRequest, "api_bad_request", "The API request is malformed.")
		return
	}

	s.mu.Lock()
	doc, exists := s.documents[id]
	if r.Header.Get("If-None-Match") == "*" && exists {
		s.mu.Unlock()
		s.writeError(w, http.StatusPreconditionFailed, "item_already_present", "The item is already present.")
		return
	}
	if match := trimQuotes(r.Header.Get("If-Match")); match != "" {
		if !exists {
			s.mu.Unlock()
			s.writeError(w, http.StatusNotFound, "items_not_found", "The requested items could not be found.")
			return
		}
		if doc.ref != match {
			s.mu.Unlock()
			s.writeError(w, http.StatusPreconditionFailed, "item_version_mismatch", "The version of the item does not match.")
			return
		}
	}

	conflicts := s.schemaConflicts(id.collection, value)
	s.recordSchema(id.collection, value)
	ref := newRef()
	s.documents[id] = &document{value: value, ref: ref, reftime: s.now()}
	s.mu.Unlock()

	if len(conflicts) > 0 {
		// The write is durable; only indexing was partially skipped.
		s.refHeaders(w, id, ref, false)
		s.writeErrorDetails(w, http.StatusConflict, "indexing_conflict",
			"The item has been stored but conflicts with the collection's schema and was not fully indexed.",
			map[string]any{"conflicts": conflicts})
		return
	}

	s.refHeaders(w, id, ref, false)
	s.writeJSON(w, http.StatusCreated, nil)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, id itemKey) {
	s.mu.Lock()
	doc, exists := s.documents[id]
	if match := trimQuotes(r.Header.Get("If-Match")); match != "" && exists && doc.ref != match {
		s.mu.Unlock()
		s.writeError(w, http.StatusPreconditionFailed, "item_version_mismatch", "The version of the item does not match.")
		return
	}
	delete(s.documents, id)
	delete(s.edges, id)
	s.mu.Unlock()

	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleEdge(w http.ResponseWriter, r *http.Request, from itemKey, kind string, to itemKey) {
	s.mu.Lock()
	if _, ok := s.documents[from]; !ok {
		s.mu.Unlock()
		s.writeError(w, http.StatusNotFound, "items_not_found", "The requested items could not be found.")
		return
	}
	switch r.Method {
	case http.MethodPut:
		s.addEdge(from, kind, to)
	case http.MethodDelete:
		s.removeEdge(from, kind, to)
	default:
		s.mu.Unlock()
		s.writeError(w, http.StatusBadRequest, "api_bad_request", "The API request is malformed.")
		return
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleRelations(w http.ResponseWriter, r *http.Request, root itemKey, kinds []string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusBadRequest, "api_bad_request", "The API request is malformed.")
		return
	}

	s.mu.RLock()
	if _, ok := s.documents[root]; !ok {
		s.mu.RUnlock()
		s.writeError(w, http.StatusNotFound, "items_not_found", "The requested items could not be found.")
		return
	}

	frontier := []itemKey{root}
	for _, kind := range kinds {
		seen := make(map[itemKey]struct{})
		var next []itemKey
		for _, node := range frontier {
			for target := range s.edges[node][kind] {
				if _, dup := seen[target]; dup {
					continue
				}
				seen[target] = struct{}{}
				next = append(next, target)
			}
		}
		frontier = next
	}

	listing := orcapi.Listing{Results: []orcapi.ListingResult{}}
	for _, id := range frontier {
		doc, ok := s.documents[id]
		if !ok {
			// Dangling edge: the far document was deleted.
			continue
		}
		listing.Results = append(listing.Results, orcapi.ListingResult{
			Path: orcapi.ListingPath{
				Collection: id.collection,
				Key:        id.key,
				Ref:        doc.ref,
			},
			Value:   doc.value,
			Reftime: doc.reftime.UnixMilli(),
		})
	}
	s.mu.RUnlock()

	if len(listing.Results) > s.pageLimit {
		listing.Results = listing.Results[:s.pageLimit]
		listing.Next = r.URL.Path + "?offset=" + fmt.Sprint(s.pageLimit)
	}
	listing.Count = len(listing.Results)

	payload, _ := json.Marshal(&listing)
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) addEdge(from itemKey, kind string, to itemKey) {
	kinds := s.edges[from]
	if kinds == nil {
		kinds = make(map[string]map[itemKey]struct{})
		s.edges[from] = kinds
	}
	targets := kinds[kind]
	if targets == nil {
		targets = make(map[itemKey]struct{})
		kinds[kind] = targets
	}
	targets[to] = struct{}{}
}

func (s *Server) removeEdge(from itemKey, kind string, to itemKey) {
	if targets := s.edges[from][kind]; targets != nil {
		delete(targets, to)
	}
}

// recordSchema remembers the JSON type of each field the collection has
// seen, mirroring the service's inferred search schema.
func (s *Server) recordSchema(collection string, value map[string]any) {
	schema := s.schemas[collection]
	if schema == nil {
		schema = make(map[string]string)
		s.schemas[collection] = schema
	}
	for field, v := range value {
		if _, ok := schema[field]; !ok {
			schema[field] = jsonType(v)
		}
	}
}

func (s *Server) schemaConflicts(collection string, value map[string]any) []string {
	schema := s.schemas[collection]
	var conflicts []string
	for field, v := range value {
		if want, ok := schema[field]; ok && want != jsonType(v) {
			conflicts = append(conflicts, field)
		}
	}
	return conflicts
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, int, int64, json.Number:
		return "number"
	case []any:
		return "array"
	default:
		return "object"
	}
}

func (s *Server) authorized(r *http.Request) bool {
	user, _, ok := r.BasicAuth()
	if !ok || user == "" {
		return false
	}
	return s.apiKey == "" || user == s.apiKey
}

func (s *Server) refHeaders(w http.ResponseWriter, id itemKey, ref string, contentLocation bool) {
	w.Header().Set("Etag", `"`+ref+`"`)
	loc := fmt.Sprintf("/v0/%s/%s/refs/%s", id.collection, id.key, ref)
	if contentLocation {
		w.Header().Set("Content-Location", loc)
	} else {
		w.Header().Set("Location", loc)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload []byte) {
	s.commonHeaders(w)
	if len(payload) > 0 {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if len(payload) > 0 {
		_, _ = w.Write(payload)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeErrorDetails(w, status, code, message, nil)
}

func (s *Server) writeErrorDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	payload, _ := json.Marshal(orcapi.ErrorBody{Code: code, Message: message, Details: details})
	s.commonHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func (s *Server) commonHeaders(w http.ResponseWriter) {
	w.Header().Set("Date", s.now().Format(http.TimeFormat))
	w.Header().Set("X-Orchestrate-Req-Id", uuid.NewString())
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func trimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

func newRef() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
