package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/silvabox/orchestrate-go/internal/orcapi"
)

// Collection is a handle on one named collection. It carries no state beyond
// its name and the owning client.
type Collection struct {
	client *Client
	Name   string
}

// KV returns an unloaded entity for the given key. No request is issued.
func (c *Collection) KV(key string) *KeyValue {
	return &KeyValue{collection: c, key: key, Value: make(map[string]any)}
}

// Load returns the entity for the given key, hydrated with its current
// value. Fails with ErrNotFound if the document does not exist.
func (c *Collection) Load(ctx context.Context, key string) (*KeyValue, error) {
	kv := c.KV(key)
	if err := kv.Reload(ctx); err != nil {
		return nil, err
	}
	return kv, nil
}

// KeyValue is one versioned document. Value is the caller-editable JSON
// body; ref and reftime track the version the service last reported and are
// always updated together from the same response. A KeyValue instance is
// owned by a single goroutine; concurrent writers of the same logical
// document coordinate through the service's ref preconditions, not local
// locking.
type KeyValue struct {
	collection *Collection
	key        string

	ref             string
	reftime         time.Time
	lastRequestTime time.Time
	loaded          bool

	Value map[string]any
}

// Collection returns the owning collection handle.
func (kv *KeyValue) Collection() *Collection { return kv.collection }

// Key returns the document key.
func (kv *KeyValue) Key() string { return kv.key }

// ID is the display identity "collection/key". It is not used for
// addressing.
func (kv *KeyValue) ID() string { return kv.collection.Name + "/" + kv.key }

// Ref returns the current version token, empty if the entity was never
// loaded or has been destroyed.
func (kv *KeyValue) Ref() string { return kv.ref }

// Reftime returns when the current ref was established.
func (kv *KeyValue) Reftime() time.Time { return kv.reftime }

// LastRequestTime returns the completion time of the most recent successful
// request made by this entity.
func (kv *KeyValue) LastRequestTime() time.Time { return kv.lastRequestTime }

// Loaded reports whether any request has populated this entity.
func (kv *KeyValue) Loaded() bool { return kv.loaded }

func (kv *KeyValue) String() string {
	return fmt.Sprintf("KeyValue<id=%s ref=%s last_request_time=%s>", kv.ID(), kv.ref, kv.lastRequestTime.Format(time.RFC3339))
}

// Get reads one field of the document body.
func (kv *KeyValue) Get(field string) any {
	if kv.Value == nil {
		return nil
	}
	return kv.Value[field]
}

// Set writes one field of the document body. The change is local until the
// entity is saved.
func (kv *KeyValue) Set(field string, value any) {
	if kv.Value == nil {
		kv.Value = make(map[string]any)
	}
	kv.Value[field] = value
}

// Reload fetches the current version unconditionally, replacing ref,
// reftime, value and the request time. Fails with ErrNotFound if the
// document does not exist.
func (kv *KeyValue) Reload(ctx context.Context) error {
	resp, err := kv.client().GetKV(ctx, kv.collection.Name, kv.key)
	if err != nil {
		return err
	}
	kv.applyResponse(resp, true)
	return nil
}

// Save writes the current value, returning false without error when the
// write lost an optimistic-concurrency race (version mismatch, or the
// document already exists for a fresh create). Every other failure is
// returned as an error: conflicts are an expected outcome of multi-writer
// usage, nothing else is. On false the entity state is unchanged, so the
// caller can reload and reapply.
func (kv *KeyValue) Save(ctx context.Context) (bool, error) {
	err := kv.SaveStrict(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrVersionMismatch) || errors.Is(err, ErrAlreadyPresent) {
		return false, nil
	}
	return false, err
}

// SaveStrict writes the current value. A loaded entity sends If-Match with
// its ref; an unloaded or destroyed one asserts a fresh create via
// If-None-Match. An indexing conflict is a soft success: the write is
// durable even though search indexing was partially skipped, so the entity
// adopts the ref from the response's Location header and reports no error.
func (kv *KeyValue) SaveStrict(ctx context.Context) error {
	ref := kv.ref
	if ref == "" {
		ref = RefSentinel
	}
	resp, err := kv.client().PutKV(ctx, kv.collection.Name, kv.key, kv.Value, ref)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && errors.Is(err, ErrIndexingConflict) {
			kv.applyResponse(apiErr.Response, false)
			return nil
		}
		return err
	}
	// The write already reflects the local value; only the version state
	// moves forward.
	kv.applyResponse(resp, false)
	return nil
}

// Destroy deletes the document conditional on the current ref, returning
// false without error on a version mismatch and leaving state unchanged.
func (kv *KeyValue) Destroy(ctx context.Context) (bool, error) {
	err := kv.DestroyStrict(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrVersionMismatch) {
		return false, nil
	}
	return false, err
}

// DestroyStrict deletes the document conditional on the current ref. On
// success the ref is cleared; the local value is retained, and a later save
// acts as a fresh create.
func (kv *KeyValue) DestroyStrict(ctx context.Context) error {
	resp, err := kv.client().DeleteKV(ctx, kv.collection.Name, kv.key, kv.ref)
	if err != nil {
		return err
	}
	kv.ref = ""
	kv.reftime = time.Time{}
	kv.lastRequestTime = resp.RequestTime
	return nil
}

func (kv *KeyValue) client() *Client {
	return kv.collection.client
}

// applyResponse adopts the version state of a successful (or soft-success)
// response. The value is only replaced when asked to and the response
// actually carried a body, so a write without an echoed body never clobbers
// local edits.
func (kv *KeyValue) applyResponse(resp *Response, setValue bool) {
	kv.ref = resp.Ref
	kv.reftime = resp.RequestTime
	kv.lastRequestTime = resp.RequestTime
	kv.loaded = true
	if setValue {
		if body := resp.Body(); body != nil {
			kv.Value = body
		}
	}
}

// kvFromListing materializes a listing entry into an entity bound to the
// collection the listing names, which may differ from the collection the
// enclosing request was made against.
func kvFromListing(c *Collection, entry orcapi.ListingResult, requestTime time.Time) *KeyValue {
	value := entry.Value
	if value == nil {
		value = make(map[string]any)
	}
	return &KeyValue{
		collection:      c,
		key:             entry.Path.Key,
		ref:             entry.Path.Ref,
		reftime:         orcapi.ReftimeToTime(entry.Reftime),
		lastRequestTime: requestTime,
		loaded:          true,
		Value:           value,
	}
}
