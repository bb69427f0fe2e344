package calendar

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client fetches an updated holiday schedule from a feed URL. The bundled
// schedule only covers announced dates, so deployments point this at a feed
// that tracks the official announcements.
type Client struct {
	url    string
	client *http.Client
}

func NewClient(url string) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type feedResponse struct {
	Year    int     `json:"year"`
	Entries []Entry `json:"entries"`
}

// Fetch retrieves the schedule, retrying transient failures with exponential
// backoff. Client-side errors are permanent and fail immediately.
func (c *Client) Fetch() ([]Entry, error) {
	var body []byte
	operation := func() error {
		resp, err := c.client.Get(c.url)
		if err != nil {
			return fmt.Errorf("fetch holidays: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch holidays: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("fetch holidays: status %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}

	var feed feedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("unmarshal holiday feed: %w", err)
	}

	for _, e := range feed.Entries {
		if _, err := time.Parse("2006-01-02", e.Date); err != nil {
			return nil, fmt.Errorf("holiday feed: bad date %q", e.Date)
		}
	}
	return feed.Entries, nil
}
