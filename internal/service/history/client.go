package history

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"SessionOverlay/internal/domain/models"
	drepo "SessionOverlay/internal/domain/repository"
	apphttp "SessionOverlay/pkg/http"
)

var _ drepo.HistoryFetcher = (*Client)(nil)

// Client fetches bars from the hub history endpoint.
type Client struct {
	baseURL string
	http    *apphttp.Client
}

func New(baseURL string, opts ...apphttp.ClientOption) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    apphttp.NewClient(opts...),
	}
}

// Fetch returns the bars of [from, to). Timestamps are sent as RFC3339 with
// their offset so the hub does not reinterpret them.
func (c *Client) Fetch(ctx context.Context, symbol string, tf drepo.Timeframe, from, to time.Time) ([]models.Bar, error) {
	var bars []models.Bar
	err := c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method: apphttp.MethodGet,
		URL:    c.baseURL + "/api/history/" + url.PathEscape(symbol),
		Query: url.Values{
			"timeframe": {string(tf)},
			"start":     {from.Format(time.RFC3339)},
			"end":       {to.Format(time.RFC3339)},
		},
	}, &bars)
	if err != nil {
		return nil, fmt.Errorf("fetch history %s %s: %w", symbol, tf, err)
	}
	if bars == nil {
		bars = []models.Bar{}
	}
	return bars, nil
}
