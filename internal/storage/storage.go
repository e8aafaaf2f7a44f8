package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Storage interface {
	// Put stores data with the given key and returns the storage URL
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Get retrieves data from the given storage URL
	Get(ctx context.Context, url string) ([]byte, error)
}

// MaskKey returns a unique key for a diff mask artifact.
func MaskKey(now time.Time) string {
	return fmt.Sprintf("compare/mask/%s/%s.png", now.Format("20060102"), uuid.NewString())
}
