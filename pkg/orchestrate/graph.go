package orchestrate

import (
	"context"
	"fmt"
)

// Target identifies the far end of an edge: either an existing *KeyValue or
// an explicit Item naming a collection and key.
type Target interface {
	targetItem() (collection, key string)
}

// Item addresses a document by collection and key without loading it.
type Item struct {
	Collection string
	Key        string
}

func (i Item) targetItem() (string, string) { return i.Collection, i.Key }

func (kv *KeyValue) targetItem() (string, string) { return kv.collection.Name, kv.key }

// Relation is a directed edge kind rooted at one entity. It creates and
// removes edges of that kind, and is the first hop of a traversal.
type Relation struct {
	kv   *KeyValue
	kind string
}

// Relation returns the edge kind of the given name rooted at this entity.
// No request is issued.
func (kv *KeyValue) Relation(kind string) *Relation {
	return &Relation{kv: kv, kind: kind}
}

// Kind returns the relation's type name.
func (r *Relation) Kind() string { return r.kind }

// Put creates an edge from the root entity to the target. Edges may span
// collections and carry no version preconditions.
func (r *Relation) Put(ctx context.Context, target Target) error {
	otherCollection, otherKey := target.targetItem()
	_, err := r.kv.client().PutRelation(ctx, r.kv.collection.Name, r.kv.key, r.kind, otherCollection, otherKey)
	return err
}

// Delete removes the edge from the root entity to the target.
func (r *Relation) Delete(ctx context.Context, target Target) error {
	otherCollection, otherKey := target.targetItem()
	_, err := r.kv.client().DeleteRelation(ctx, r.kv.collection.Name, r.kv.key, r.kind, otherCollection, otherKey)
	return err
}

// Hop composes a two-hop traversal: this relation's kind, then the given
// one. Composition is purely structural and issues no request.
func (r *Relation) Hop(kind string) *Traversal {
	return &Traversal{kv: r.kv, kinds: []string{r.kind, kind}}
}

// Traversal returns the one-hop traversal over this relation.
func (r *Relation) Traversal() *Traversal {
	return &Traversal{kv: r.kv, kinds: []string{r.kind}}
}

// Each enumerates the entities one hop away. See Traversal.Each.
func (r *Relation) Each(ctx context.Context, fn func(*KeyValue) error) error {
	return r.Traversal().Each(ctx, fn)
}

// All collects the entities one hop away. See Traversal.All.
func (r *Relation) All(ctx context.Context) ([]*KeyValue, error) {
	return r.Traversal().All(ctx)
}

// Traversal is an ordered sequence of edge kinds rooted at one entity,
// representing the documents reachable by hopping those kinds in exactly
// that order. Building a traversal never performs I/O; only Each and All
// issue a request, one GET for the whole accumulated path. Enumeration is
// restartable: every call fetches fresh results, nothing is memoized.
type Traversal struct {
	kv    *KeyValue
	kinds []string
}

// Hop returns a traversal one hop deeper. The receiver is unchanged.
func (t *Traversal) Hop(kind string) *Traversal {
	kinds := make([]string, 0, len(t.kinds)+1)
	kinds = append(kinds, t.kinds...)
	kinds = append(kinds, kind)
	return &Traversal{kv: t.kv, kinds: kinds}
}

// Path returns the ordered edge kinds this traversal walks.
func (t *Traversal) Path() []string {
	kinds := make([]string, len(t.kinds))
	copy(kinds, t.kinds)
	return kinds
}

// Each fetches the traversal results and calls fn for each, in listing
// order. Each result is bound to the collection the listing names for it,
// not necessarily the root's. A non-nil error from fn stops the enumeration
// and is returned. Only the first page of results is consumed; truncation is
// visible to the service, not the caller.
func (t *Traversal) Each(ctx context.Context, fn func(*KeyValue) error) error {
	client := t.kv.client()
	resp, err := client.GetRelations(ctx, t.kv.collection.Name, t.kv.key, t.kinds...)
	if err != nil {
		return err
	}
	listing, err := resp.listing()
	if err != nil {
		return fmt.Errorf("orchestrate: decode relations listing: %w", err)
	}
	for _, entry := range listing.Results {
		target := client.Collection(entry.Path.Collection)
		if err := fn(kvFromListing(target, entry, resp.RequestTime)); err != nil {
			return err
		}
	}
	return nil
}

// All fetches the traversal results as a slice.
func (t *Traversal) All(ctx context.Context) ([]*KeyValue, error) {
	var results []*KeyValue
	err := t.Each(ctx, func(kv *KeyValue) error {
		results = append(results, kv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
