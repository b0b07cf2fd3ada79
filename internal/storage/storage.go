// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"dealwatch/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	// AddSearch stores a search configuration. When the configured ID
	// collides with an existing one, a suffix is appended until it is
	// unique; the final ID is written back into the config.
	AddSearch(ctx context.Context, search *model.SearchConfig) error
	GetSearch(ctx context.Context, id string) (*model.SearchConfig, error)
	ListSearches(ctx context.Context) ([]model.SearchConfig, error)
	// RemoveSearch deletes a search by ID, reporting whether it existed.
	RemoveSearch(ctx context.Context, id string) (bool, error)

	// GetFeedChannel returns the configured feed channel ID, 0 when unset.
	GetFeedChannel(ctx context.Context) (int64, error)
	// SetFeedChannel stores the feed channel ID; 0 clears it.
	SetFeedChannel(ctx context.Context, channelID int64) error

	Close() error
}
