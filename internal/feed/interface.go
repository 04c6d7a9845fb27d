package feed

import (
	"context"
	"time"

	"github.com/xtc-labs/xtc/internal/models"
)

// Source is the contract for feed collectors. A source either produces
// zero or more raw post records for the window or fails; persistence,
// scoring and dedup happen downstream.
type Source interface {
	Name() string
	FetchPosts(ctx context.Context, window time.Duration) ([]models.Post, error)
	IsEnabled() bool
}
