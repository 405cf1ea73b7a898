// Package subscribers provides the notification destination directory.
//
// The pipeline only reads the directory; subscriber lifecycle is managed
// outside of it.
package subscribers

import (
	"context"

	"catwatch/internal/model"
)

// Directory is the read-only view the pipeline uses.
type Directory interface {
	ListSubscribers(ctx context.Context) ([]model.Subscriber, error)
}
