// Package subscription defines the subscription record model and the store
// interface the bridge reads records from. The store is owned by the host
// application; the bridge never mutates records.
package subscription

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a subscription id does not resolve to a record.
var ErrNotFound = errors.New("subscription not found")

// Subscription is a tracked movie or series entity with the metadata the
// remote mirror consumes. Field names mirror the host's storage schema.
type Subscription struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Year string `json:"year,omitempty"`

	// Type is the free-form media-kind label as stored by the host
	// ("电影", "Movie", "电视剧", "TV", ...). Normalization happens at
	// dispatch time, not here.
	Type string `json:"type"`

	TMDBID   int64  `json:"tmdbid,omitempty"`
	DoubanID string `json:"doubanid,omitempty"`

	// Season is only meaningful for series; zero means unset.
	Season int `json:"season,omitempty"`

	TotalEpisode int `json:"total_episode,omitempty"`
	StartEpisode int `json:"start_episode,omitempty"`
}

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=types.go Store

// Store provides read access to the host's subscription records.
type Store interface {
	// List returns all subscription records. Used once per backfill run.
	List(ctx context.Context) ([]*Subscription, error)

	// GetByID returns the record with the given id, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*Subscription, error)
}
