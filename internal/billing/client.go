package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Subscription is the vendor's view of one subscription, fetched when an
// event does not carry the full detail itself (checkout completion).
type Subscription struct {
	ID                 string `json:"id"`
	CustomerID         string `json:"customer_id"`
	PriceID            string `json:"price_id"`
	Status             string `json:"status"`
	Interval           string `json:"interval"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
}

// Client retrieves subscription detail from the billing vendor.
type Client interface {
	RetrieveSubscription(ctx context.Context, id string) (*Subscription, error)
}

// HTTPClient talks to the vendor's REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// RetrieveSubscription fetches the current state of a subscription by id.
func (c *HTTPClient) RetrieveSubscription(ctx context.Context, id string) (*Subscription, error) {
	url := fmt.Sprintf("%s/v1/subscriptions/%s", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building subscription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching subscription %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("vendor returned %d for subscription %s: %s", resp.StatusCode, id, string(body))
	}

	var sub Subscription
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, fmt.Errorf("decoding subscription %s: %w", id, err)
	}

	return &sub, nil
}
