package orchestrate_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silvabox/orchestrate-go/pkg/orchestrate"
	"github.com/silvabox/orchestrate-go/pkg/orchestrate/mock"
)

func TestTraversalConstructionIssuesNoRequests(t *testing.T) {
	var requests atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count":0,"results":[]}`))
	}))

	kv := client.Collection("items").KV("k1")
	oneCall := kv.Relation("likes").Hop("friends")
	chained := kv.Relation("likes").Traversal().Hop("friends")

	assert.Equal(t, []string{"likes", "friends"}, oneCall.Path())
	assert.Equal(t, oneCall.Path(), chained.Path())
	assert.Equal(t, int64(0), requests.Load(), "building a traversal must be free of I/O")

	// Hop never mutates the receiver.
	deeper := oneCall.Hop("authored")
	assert.Equal(t, []string{"likes", "friends"}, oneCall.Path())
	assert.Equal(t, []string{"likes", "friends", "authored"}, deeper.Path())
}

func TestTraversalIssuesSingleRequestForWholePath(t *testing.T) {
	var requests atomic.Int64
	var lastPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		lastPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"count": 2,
			"results": [
				{"path": {"collection": "posts", "key": "p1", "ref": "aaa"}, "value": {"title": "one"}, "reftime": 1400000000000},
				{"path": {"collection": "notes", "key": "n1", "ref": "bbb"}, "value": {"title": "two"}, "reftime": 1400000000001}
			]
		}`))
	}))

	kv := client.Collection("items").KV("k1")
	results, err := kv.Relation("likes").Hop("friends").All(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), requests.Load(), "a multi-hop traversal is one request")
	assert.Equal(t, "/v0/items/k1/relations/likes/friends", lastPath)

	require.Len(t, results, 2)
	// Results bind to the collections the listing names, not the root's.
	assert.Equal(t, "posts/p1", results[0].ID())
	assert.Equal(t, "aaa", results[0].Ref())
	assert.Equal(t, "one", results[0].Get("title"))
	assert.True(t, results[0].Loaded())
	assert.False(t, results[0].Reftime().IsZero())
	assert.Equal(t, "notes/n1", results[1].ID())
}

func TestTraversalEnumerationIsRestartable(t *testing.T) {
	var requests atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count":1,"results":[{"path":{"collection":"items","key":"k2","ref":"ccc"},"value":{},"reftime":1400000000000}]}`))
	}))

	traversal := client.Collection("items").KV("k1").Relation("likes").Traversal()
	for i := 0; i < 3; i++ {
		results, err := traversal.All(context.Background())
		require.NoError(t, err)
		require.Len(t, results, 1)
	}
	assert.Equal(t, int64(3), requests.Load(), "each enumeration re-issues the request")
}

func TestTraversalEachStopsOnCallbackError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"count": 2,
			"results": [
				{"path": {"collection": "items", "key": "a", "ref": "aaa"}, "value": {}, "reftime": 1},
				{"path": {"collection": "items", "key": "b", "ref": "bbb"}, "value": {}, "reftime": 2}
			]
		}`))
	}))

	seen := 0
	stop := assert.AnError
	err := client.Collection("items").KV("k1").Relation("likes").Each(context.Background(), func(kv *orchestrate.KeyValue) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestGraphEndToEnd(t *testing.T) {
	client := newMockClient(t)
	ctx := context.Background()

	users := client.Collection("users")
	posts := client.Collection("posts")

	alice := users.KV("alice")
	alice.Set("name", "Alice")
	require.NoError(t, alice.SaveStrict(ctx))

	bob := users.KV("bob")
	bob.Set("name", "Bob")
	require.NoError(t, bob.SaveStrict(ctx))

	post := posts.KV("p1")
	post.Set("title", "hello graphs")
	require.NoError(t, post.SaveStrict(ctx))

	friends := alice.Relation("friends")
	require.NoError(t, friends.Put(ctx, bob))
	require.NoError(t, bob.Relation("likes").Put(ctx, orchestrate.Item{Collection: "posts", Key: "p1"}))

	// One hop.
	direct, err := friends.All(ctx)
	require.NoError(t, err)
	require.Len(t, direct, 1)
	assert.Equal(t, "users/bob", direct[0].ID())
	assert.Equal(t, "Bob", direct[0].Get("name"))

	// Two hops across collections.
	liked, err := friends.Hop("likes").All(ctx)
	require.NoError(t, err)
	require.Len(t, liked, 1)
	assert.Equal(t, "posts/p1", liked[0].ID())
	assert.Equal(t, "hello graphs", liked[0].Get("title"))
	assert.NotEmpty(t, liked[0].Ref())

	// A materialized traversal result is a full entity: it can be saved.
	liked[0].Set("title", "hello graphs, revised")
	ok, err := liked[0].Save(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// Removing the edge empties the traversal.
	require.NoError(t, friends.Delete(ctx, bob))
	direct, err = friends.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, direct)
}

func TestRelationMissingRoot(t *testing.T) {
	client := newMockClient(t)
	_, err := client.Collection("users").KV("ghost").Relation("likes").All(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrate.ErrNotFound)
}

func TestRelationPutUnknownSourceFails(t *testing.T) {
	srv := mock.New()
	client := newTestClient(t, srv)
	err := client.Collection("users").KV("ghost").Relation("likes").Put(context.Background(), orchestrate.Item{Collection: "posts", Key: "p1"})
	assert.ErrorIs(t, err, orchestrate.ErrNotFound)
}
