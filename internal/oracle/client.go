// Package oracle предоставляет доступ к внешнему ценовому оракулу и пересчёт
// сумм из нативной монеты в токен.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmeshcher/marketplace/internal/model"
)

// Client инкапсулирует HTTP-взаимодействие с ценовым оракулом.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// PriceResponse описывает ответ оракула по одному ценовому фиду.
type PriceResponse struct {
	FeedID      string `json:"feed_id"`
	Price       int64  `json:"price"`
	Expo        int32  `json:"expo"`
	Conf        uint64 `json:"conf"`
	PublishTime int64  `json:"publish_time"`
}

// NewClient создаёт HTTP-клиент для обращения к оракулу по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetPrice запрашивает последнюю цену фида. Отсутствие цены и любые сбои
// обращения возвращаются как model.ErrPriceUnavailable.
func (c *Client) GetPrice(ctx context.Context, feedID string) (*model.PricePoint, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("%w: oracle client not configured", model.ErrPriceUnavailable)
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	u := fmt.Sprintf("%s/api/prices/%s", base, url.PathEscape(feedID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: do request: %v", model.ErrPriceUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusNoContent:
		return nil, fmt.Errorf("%w: feed %s", model.ErrPriceUnavailable, feedID)
	default:
		return nil, fmt.Errorf("%w: unexpected status: %d", model.ErrPriceUnavailable, resp.StatusCode)
	}

	var result PriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", model.ErrPriceUnavailable, err)
	}

	return &model.PricePoint{
		FeedID:      result.FeedID,
		Value:       result.Price,
		Expo:        result.Expo,
		Conf:        result.Conf,
		PublishTime: time.Unix(result.PublishTime, 0).UTC(),
	}, nil
}
