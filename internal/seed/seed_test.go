package seed_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silvabox/orchestrate-go/internal/seed"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "seed.json", `[
		{"collection": "users", "key": "alice", "value": {"name": "Alice"},
		 "relations": [{"kind": "friends", "collection": "users", "key": "bob"}]},
		{"collection": "users", "key": "bob", "value": {"name": "Bob"}}
	]`)

	entries, err := seed.Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "users", entries[0].Collection)
	assert.Equal(t, "alice", entries[0].Key)
	assert.Equal(t, "Alice", entries[0].Value["name"])
	require.Len(t, entries[0].Relations, 1)
	assert.Equal(t, "friends", entries[0].Relations[0].Kind)
	assert.Equal(t, "bob", entries[0].Relations[0].Key)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "seed.yaml", `
- collection: posts
  key: p1
  value:
    title: hello
    views: 3
- collection: users
  key: alice
  value: {}
  relations:
    - kind: likes
      collection: posts
      key: p1
`)

	entries, err := seed.Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "posts", entries[0].Collection)
	assert.Equal(t, "hello", entries[0].Value["title"])
	assert.Equal(t, "likes", entries[1].Relations[0].Kind)
}

func TestLoadRejectsMissingIdentity(t *testing.T) {
	path := writeFile(t, "seed.json", `[{"collection": "users", "value": {}}]`)
	_, err := seed.Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := seed.Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
