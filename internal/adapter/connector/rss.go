// internal/adapter/connector/rss.go

// Package connector implements content source connectors. Each connector
// normalizes one source's items into content.Item records.
package connector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"trendwire/internal/domain/content"
)

// RSSConnector fetches and normalizes an RSS or Atom feed.
type RSSConnector struct {
	name    string
	feedURL string
	parser  *gofeed.Parser
	limit   int
}

// NewRSSConnector creates a connector for one feed URL.
func NewRSSConnector(name, feedURL string, limit int) *RSSConnector {
	if limit <= 0 {
		limit = 25
	}

	return &RSSConnector{
		name:    name,
		feedURL: feedURL,
		parser:  gofeed.NewParser(),
		limit:   limit,
	}
}

// Name identifies the source.
func (c *RSSConnector) Name() string { return c.name }

// Fetch parses the feed and returns its entries as normalized items.
func (c *RSSConnector) Fetch(ctx context.Context) ([]content.Item, error) {
	feed, err := c.parser.ParseURLWithContext(c.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("error parsing feed %s: %w", c.feedURL, err)
	}

	now := time.Now().UTC()
	items := make([]content.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if len(items) == c.limit {
			break
		}

		var published time.Time
		switch {
		case entry.PublishedParsed != nil:
			published = entry.PublishedParsed.UTC()
		case entry.UpdatedParsed != nil:
			published = entry.UpdatedParsed.UTC()
		}

		text := entry.Title
		if entry.Description != "" {
			text = strings.TrimSpace(text + " " + entry.Description)
		}

		items = append(items, content.Item{
			SourceID:    c.name,
			Text:        text,
			PublishedAt: published,
			FetchedAt:   now,
		})
	}

	return items, nil
}
