package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/dealgrab/dealgrab-sync/internal/config"
	"github.com/dealgrab/dealgrab-sync/internal/models"
)

// Client fetches programme and promotion records using bearer-token auth.
// Requests are retried on transport errors and paced by a shared rate limiter
// so pagination loops don't hammer the API.
type Client struct {
	http        *retryablehttp.Client
	limiter     *rate.Limiter
	baseURL     string
	token       string
	publisherID string
	pageSize    int
}

func New(cfg config.FeedConfig) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &Client{
		http:        rc,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		baseURL:     cfg.BaseURL,
		token:       cfg.AccessToken,
		publisherID: cfg.PublisherID,
		pageSize:    cfg.PageSize,
	}
}

// FetchProgrammes returns every programme the publisher has access to. The
// endpoint responds with a flat JSON array; anything else aborts the run.
func (c *Client) FetchProgrammes(ctx context.Context) ([]Programme, error) {
	endpoint := fmt.Sprintf("%s/publishers/%s/programmes", c.baseURL, c.publisherID)
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("programmes endpoint: %w: expected array body", models.ErrMalformedFeed)
	}

	var programmes []Programme
	for _, elem := range root.Array() {
		programmes = append(programmes, parseProgramme(elem))
	}
	return programmes, nil
}

// FetchPromotions pages through the promotions endpoint until a short page
// signals the end, returning the concatenated set. A malformed page aborts
// the whole fetch; the reconciler must only ever see a complete set.
func (c *Client) FetchPromotions(ctx context.Context) ([]Promotion, error) {
	endpoint := fmt.Sprintf("%s/publisher/%s/promotions", c.baseURL, c.publisherID)

	var promotions []Promotion
	for page := 1; ; page++ {
		reqBody, err := json.Marshal(map[string]any{
			"filters":    map[string]any{"membership": "joined"},
			"pagination": map[string]any{"page": page, "pageSize": c.pageSize},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal promotions request: %w", err)
		}

		body, err := c.do(ctx, http.MethodPost, endpoint, reqBody)
		if err != nil {
			return nil, fmt.Errorf("promotions page %d: %w", page, err)
		}

		data := gjson.GetBytes(body, "data")
		if !data.IsArray() {
			return nil, fmt.Errorf("promotions page %d: %w: data is not an array", page, models.ErrMalformedFeed)
		}

		elems := data.Array()
		for _, elem := range elems {
			promotions = append(promotions, parsePromotion(elem))
		}
		slog.Debug("Fetched promotions page", "page", page, "count", len(elems))

		if len(elems) < c.pageSize {
			break
		}
	}
	return promotions, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch %s: status code %d", url, res.StatusCode)
	}
	return resBody, nil
}
