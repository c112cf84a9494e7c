// internal/adapter/connector/reddit.go

package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"trendwire/internal/domain/content"
)

// RedditConnector fetches top posts from one subreddit via the public JSON
// API.
type RedditConnector struct {
	httpClient *http.Client
	baseURL    string
	subreddit  string
	limit      int
	timeRange  string
}

// redditPost is a post from the Reddit listing API.
type redditPost struct {
	Title     string  `json:"title"`
	SelfText  string  `json:"selftext"`
	Subreddit string  `json:"subreddit"`
	Created   float64 `json:"created_utc"`
}

// redditResponse is the structure of the Reddit listing response.
type redditResponse struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// NewRedditConnector creates a connector for one subreddit. timeRange can be
// hour, day, week, month, year or all.
func NewRedditConnector(subreddit string, limit int, timeRange string) *RedditConnector {
	if subreddit == "" {
		subreddit = "popular"
	}
	if limit <= 0 {
		limit = 25
	}
	if timeRange == "" {
		timeRange = "day"
	}

	return &RedditConnector{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://www.reddit.com",
		subreddit:  subreddit,
		limit:      limit,
		timeRange:  timeRange,
	}
}

// Name identifies the source.
func (c *RedditConnector) Name() string {
	return "reddit:" + c.subreddit
}

// Fetch returns the subreddit's current top posts as normalized items.
func (c *RedditConnector) Fetch(ctx context.Context) ([]content.Item, error) {
	endpoint := fmt.Sprintf("%s/r/%s/top.json?limit=%d&t=%s",
		c.baseURL, c.subreddit, c.limit, c.timeRange)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Reddit rate limits requests without a User-Agent aggressively.
	req.Header.Set("User-Agent", "trendwire/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Reddit API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Reddit API returned status code %d", resp.StatusCode)
	}

	var body redditResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode Reddit API response: %w", err)
	}

	now := time.Now().UTC()
	items := make([]content.Item, 0, len(body.Data.Children))
	for _, child := range body.Data.Children {
		post := child.Data

		text := post.Title
		if post.SelfText != "" {
			text += " " + post.SelfText
		}

		var published time.Time
		if post.Created > 0 {
			published = time.Unix(int64(post.Created), 0).UTC()
		}

		items = append(items, content.Item{
			SourceID:    c.Name(),
			Text:        text,
			PublishedAt: published,
			FetchedAt:   now,
		})
	}

	return items, nil
}
