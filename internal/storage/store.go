package storage

import "context"

// ObjectStore is the put/delete/sign capability the pipeline and the
// texture read surface depend on. Re-putting the same key is safe;
// callers rely on that for redelivered work.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string) (string, error)
}
