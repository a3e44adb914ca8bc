// Package storage provides the key/value areas that hold client session
// state. An Area plays the role a browser storage bucket plays for a web
// front-end: flat string keys, string values, no expiry.
package storage

import "context"

// Area is a flat string key/value store.
//
// Get reports ok=false for a missing key. Remove on a missing key is a no-op.
type Area interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
