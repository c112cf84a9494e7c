// internal/adapter/connector/twitter.go

package connector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	twitter "github.com/g8rswimmer/go-twitter/v2"

	"trendwire/internal/domain/content"
)

// TwitterConnector fetches recent tweets matching a search query via the
// Twitter v2 API.
type TwitterConnector struct {
	client *twitter.Client
	query  string
	limit  int
}

// bearerAuthorizer adds the bearer token to outgoing requests.
type bearerAuthorizer struct {
	token string
}

func (a bearerAuthorizer) Add(req *http.Request) {
	req.Header.Add("Authorization", "Bearer "+a.token)
}

// NewTwitterConnector creates a connector for one search query.
func NewTwitterConnector(bearerToken, query string, limit int) *TwitterConnector {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	return &TwitterConnector{
		client: &twitter.Client{
			Authorizer: bearerAuthorizer{token: bearerToken},
			Client:     &http.Client{Timeout: 10 * time.Second},
			Host:       "https://api.twitter.com",
		},
		query: query,
		limit: limit,
	}
}

// Name identifies the source.
func (c *TwitterConnector) Name() string {
	return "twitter:" + c.query
}

// Fetch returns recent matching tweets as normalized items.
func (c *TwitterConnector) Fetch(ctx context.Context) ([]content.Item, error) {
	opts := twitter.TweetRecentSearchOpts{
		MaxResults:  c.limit,
		TweetFields: []twitter.TweetField{twitter.TweetFieldCreatedAt},
	}

	resp, err := c.client.TweetRecentSearch(ctx, c.query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search tweets: %w", err)
	}

	now := time.Now().UTC()
	items := make([]content.Item, 0, len(resp.Raw.Tweets))
	for _, tweet := range resp.Raw.Tweets {
		var published time.Time
		if tweet.CreatedAt != "" {
			if t, err := time.Parse(time.RFC3339, tweet.CreatedAt); err == nil {
				published = t.UTC()
			}
		}

		items = append(items, content.Item{
			SourceID:    c.Name(),
			Text:        tweet.Text,
			PublishedAt: published,
			FetchedAt:   now,
		})
	}

	return items, nil
}
