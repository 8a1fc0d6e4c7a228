// Package dataloader provides batch loading helpers for registered
// models, aimed at GraphQL resolvers that would otherwise issue one
// store query per document.
//
// The generic pieces (BatchFunc, OrderByKeys, GroupByKey) fit any
// DataLoader implementation, such as:
//   - github.com/graph-gophers/dataloader/v7
//   - github.com/vikstrous/dataloadgen
//
// Documents wires a registered model into that shape:
//
//	users, _ := reg.Get("User")
//	loader := dataloadgen.NewLoader(dataloader.Documents(users))
//	doc, err := loader.Load(ctx, id)
//
// One-to-many reference fields batch the parent identities and group:
//
//	posts, _ := postModel.Find(ctx, mongoo.Document{"author": dataloader.In(authorIDs)})
//	grouped := dataloader.GroupByKey(posts, dataloader.FieldKey("author"))
//	ordered := dataloader.OrderGroupsByKeys(authorIDs, grouped)
package dataloader

import (
	"context"
	"errors"

	mongoo "github.com/developer-rs5/easy-mongoo"
	"github.com/developer-rs5/easy-mongoo/schema"
)

// ErrNotFound reports a requested document missing from a batch result.
var ErrNotFound = errors.New("dataloader: document not found")

// KeyFunc extracts the identity or grouping key from a value.
type KeyFunc[K comparable, V any] func(V) K

// BatchFunc loads one batch of values for the given keys. Results are
// positional: index i answers keys[i]. A single-element error slice
// reports a failure of the whole batch.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, []error)

// Key returns a document's identity, or "" when it carries none.
func Key(d mongoo.Document) string {
	id, _ := d[schema.IdentityField].(string)
	return id
}

// FieldKey returns a KeyFunc reading the named field as a string.
// Reference fields store the referenced identity, so FieldKey("author")
// keys documents by the author they point at.
func FieldKey(name string) KeyFunc[string, mongoo.Document] {
	return func(d mongoo.Document) string {
		v, _ := d[name].(string)
		return v
	}
}

// In builds the filter clause matching any of the given identities.
func In(ids []string) mongoo.Document {
	vals := make([]any, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	return mongoo.Document{"$in": vals}
}

// Documents returns a BatchFunc resolving identities against the model
// with a single filtered Find per batch. Results come back in request
// order; an identity with no document gets an ErrNotFound in the same
// position.
func Documents(m *mongoo.Model) BatchFunc[string, mongoo.Document] {
	return func(ctx context.Context, ids []string) ([]mongoo.Document, []error) {
		docs, err := m.Find(ctx, mongoo.Document{schema.IdentityField: In(ids)})
		if err != nil {
			return nil, []error{err}
		}
		return OrderByKeys(ids, docs, Key)
	}
}

// OrderByKeys reorders values to match the order of requested keys.
// The result has one slot per key; a key with no value keeps the zero
// value and an ErrNotFound in the matching error slot. Batch functions
// need exactly this shape: same length and order as the keys.
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) ([]V, []error) {
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = ErrNotFound
		}
	}
	return result, errs
}

// OrderByKeysNoError is OrderByKeys with missing values kept as zero
// values instead of errors. Use it when absence is fine, such as an
// optional reference field.
func OrderByKeysNoError[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) []V {
	result, _ := OrderByKeys(keys, values, keyFn)
	return result
}

// GroupByKey buckets values by their key, preserving input order inside
// each bucket. One-to-many references load all children with one In
// filter and group them by the parent field.
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// OrderGroupsByKeys flattens grouped values back into key order.
// ordered[i] holds the bucket for keys[i], nil when the key has none.
func OrderGroupsByKeys[K comparable, V any](keys []K, groups map[K][]V) [][]V {
	result := make([][]V, len(keys))
	for i, key := range keys {
		result[i] = groups[key]
	}
	return result
}

// CachePrimer seeds a loader cache with known values.
type CachePrimer[K comparable, V any] interface {
	Prime(key K, value V)
}

// PrimeMany primes a cache with a batch of values, keyed by keyFn.
// After Create or UpdateByID the written document can be primed so the
// next resolver pass skips the store.
func PrimeMany[K comparable, V any](cache CachePrimer[K, V], values []V, keyFn KeyFunc[K, V]) {
	for _, v := range values {
		cache.Prime(keyFn(v), v)
	}
}

// CacheClearer drops keys from a loader cache.
type CacheClearer[K comparable] interface {
	Clear(key K)
}

// ClearMany clears a batch of keys, typically after DeleteByID.
func ClearMany[K comparable](cache CacheClearer[K], keys []K) {
	for _, key := range keys {
		cache.Clear(key)
	}
}

// ctxKey is the context key the loader bundle travels under.
type ctxKey struct{}

// WithLoaders injects a request-scoped loader bundle into the context.
// HTTP middleware builds the bundle per request so batching never
// crosses request boundaries:
//
//	loaders := &Loaders{Users: dataloadgen.NewLoader(dataloader.Documents(users))}
//	next.ServeHTTP(w, r.WithContext(dataloader.WithLoaders(r.Context(), loaders)))
func WithLoaders[T any](ctx context.Context, loaders T) context.Context {
	return context.WithValue(ctx, ctxKey{}, loaders)
}

// For extracts the loader bundle from the context, zero when absent.
func For[T any](ctx context.Context) T {
	v, _ := ctx.Value(ctxKey{}).(T)
	return v
}

// BatchResult pairs one loaded value with its positional error.
type BatchResult[V any] struct {
	Value V
	Error error
}

// NewBatchResult builds a single BatchResult.
func NewBatchResult[V any](value V, err error) BatchResult[V] {
	return BatchResult[V]{Value: value, Error: err}
}

// Results zips positional value and error slices into BatchResults.
// A short error slice leaves the remaining results error-free.
func Results[V any](values []V, errs []error) []BatchResult[V] {
	results := make([]BatchResult[V], len(values))
	for i := range values {
		var err error
		if i < len(errs) {
			err = errs[i]
		}
		results[i] = BatchResult[V]{Value: values[i], Error: err}
	}
	return results
}
