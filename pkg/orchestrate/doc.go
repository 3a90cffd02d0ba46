// Package orchestrate is a client for a document/graph data service exposed
// over HTTP. Documents are JSON objects addressed by collection and key and
// versioned by opaque ref tokens; writes carry If-Match or If-None-Match
// preconditions so concurrent writers race through the service, not local
// locks. The entity surface centres on Collection and KeyValue for the
// read/modify/delete lifecycle and on Relation/Traversal for walking typed,
// directed edges between documents, potentially across collections and
// multiple hops in a single request. Failures arrive as *Error values
// classified from the response status and body code, matchable with
// errors.Is against the package sentinels.
package orchestrate
