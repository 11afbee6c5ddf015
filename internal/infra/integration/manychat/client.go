package manychat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry-go"
)

const SyncFunction = "manychat-sync"

type syncRequest struct {
	LeadID string `json:"leadId"`
}

// Client calls the sync edge function that upserts the ManyChat subscriber
// and applies tags for a stored lead.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	Attempts uint
	Delay    time.Duration
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 10 * time.Second},
		Attempts: 3,
		Delay:    time.Second,
	}
}

// SyncLead is safe to call repeatedly for the same lead. Client errors (4xx)
// are not retried.
func (c *Client) SyncLead(ctx context.Context, leadID string) error {
	if c.baseURL == "" {
		return fmt.Errorf("manychat sync not configured")
	}

	payload, err := json.Marshal(syncRequest{LeadID: leadID})
	if err != nil {
		return fmt.Errorf("marshal sync request: %w", err)
	}
	url := fmt.Sprintf("%s/functions/v1/%s", c.baseURL, SyncFunction)

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
			req.Header.Set("apikey", c.apiKey)
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.http.Do(req)
			if err != nil {
				return fmt.Errorf("request manychat sync: %w", err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return nil
			case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
				return retry.Unrecoverable(fmt.Errorf("manychat sync rejected lead %s: %d - %s", leadID, resp.StatusCode, body))
			default:
				return fmt.Errorf("manychat sync failed: %d - %s", resp.StatusCode, body)
			}
		},
		retry.Attempts(c.Attempts),
		retry.Delay(c.Delay),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(c.Delay/2+time.Millisecond),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("🔁 [MANYCHAT] retry %d for lead %s: %v", n+1, leadID, err)
		}),
	)
}
