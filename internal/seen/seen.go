// Package seen tracks which record IDs have already been processed.
//
// State is one persistent set per monitored query, namespaced by a
// fingerprint of the query URL so distinct queries never collide. The set
// is a recency window, not a historical log: every successful commit
// resets a 90-day expiration on the whole set.
package seen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Store is the novelty store interface.
type Store interface {
	// IsNew reports whether id has not yet been committed under key.
	// It never mutates state.
	IsNew(ctx context.Context, key, id string) (bool, error)
	// Commit records ids under key in one batch and reapplies the
	// retention window to the whole set.
	Commit(ctx context.Context, key string, ids []string) error
}

// Fingerprint returns a deterministic namespace key for a listing query URL.
func Fingerprint(listingURL string) string {
	h := sha256.Sum256([]byte(listingURL))
	return hex.EncodeToString(h[:8])
}
