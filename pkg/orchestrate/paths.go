package orchestrate

import (
	"net/url"
	"strings"
)

// apiVersion prefixes every request path.
const apiVersion = "v0"

func joinPath(segments ...string) string {
	escaped := make([]string, 0, len(segments)+1)
	escaped = append(escaped, apiVersion)
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return "/" + strings.Join(escaped, "/")
}

// itemPath builds /v0/{collection}/{key}.
func itemPath(collection, key string) string {
	return joinPath(collection, key)
}

// relationPath builds the single-edge endpoint
// /v0/{collection}/{key}/relation/{kind}/{otherCollection}/{otherKey}.
func relationPath(collection, key, kind, otherCollection, otherKey string) string {
	return joinPath(collection, key, "relation", kind, otherCollection, otherKey)
}

// relationsPath builds the traversal endpoint
// /v0/{collection}/{key}/relations/{kind1}/.../{kindN}.
func relationsPath(collection, key string, kinds []string) string {
	segments := append([]string{collection, key, "relations"}, kinds...)
	return joinPath(segments...)
}
