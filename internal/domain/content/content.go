// internal/domain/content/content.go

// Package content defines the normalized content item produced by source
// connectors and consumed by the frequency index.
package content

import (
	"context"
	"time"
)

// Item is a single normalized piece of scraped content. Immutable once
// created; the engine never retains items beyond feeding the frequency index.
type Item struct {
	SourceID    string    `json:"source_id"`
	Text        string    `json:"text"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Connector produces normalized items from one configured source. A connector
// failure is reported per source and never fails a whole refresh batch.
type Connector interface {
	// Name identifies the source, used as Item.SourceID.
	Name() string

	// Fetch returns the current batch of items from the source.
	Fetch(ctx context.Context) ([]Item, error)
}

// Registry resolves the connectors configured for a user.
type Registry interface {
	Connectors(userID string) []Connector
}
