package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/spacesedan/tickersense/internal/models"
)

const NEWS_API_URL = "https://newsapi.org/v2"

var ErrNewsAPIKeyMissing = errors.New("[NewsAPIClient] API key is missing")

type NewsAPIClient struct {
	Client  *http.Client
	APIKey  string
	BaseURL string
	limiter *rate.Limiter
}

func NewNewsAPIClient(apiKey string) *NewsAPIClient {
	return &NewsAPIClient{
		Client:  &http.Client{Timeout: 30 * time.Second},
		APIKey:  apiKey,
		BaseURL: NEWS_API_URL,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Everything searches /v2/everything for query over [from, to], newest first.
func (n *NewsAPIClient) Everything(ctx context.Context, query string, from, to time.Time) (*models.NewsAPIEverythingResponse, error) {
	if n.APIKey == "" {
		slog.Error("[NewsAPIClient] API key is missing")
		return nil, ErrNewsAPIKeyMissing
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))
	params.Set("sortBy", "publishedAt")
	params.Set("language", "en")
	params.Set("pageSize", "100")
	target := n.BaseURL + "/everything?" + params.Encode()

	backoff := INITIAL_BACKOFF
	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		if n.limiter != nil {
			if err := n.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		slog.Debug("[NewsAPIClient] Fetching articles",
			slog.String("query", query),
			slog.Int("attempt", attempt))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Api-Key", n.APIKey)
		req.Header.Set("User-Agent", USER_AGENT)

		res, err := n.Client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("[NewsAPIClient] request failed: %w", err)
		}
		body, readErr := io.ReadAll(res.Body)
		res.Body.Close()

		switch res.StatusCode {
		case http.StatusOK:
			if readErr != nil {
				return nil, fmt.Errorf("[NewsAPIClient] Failed to read response body: %w", readErr)
			}
			var response models.NewsAPIEverythingResponse
			if err := json.Unmarshal(body, &response); err != nil {
				return nil, fmt.Errorf("[NewsAPIClient] Failed to parse JSON response: %w", err)
			}
			if response.Status == "error" {
				return nil, fmt.Errorf("[NewsAPIClient] %s: %s", response.Code, response.Message)
			}
			return &response, nil
		case http.StatusBadRequest:
			return nil, errors.New("[NewsAPIClient] Bad request: check query parameters")
		case http.StatusUnauthorized:
			return nil, errors.New("[NewsAPIClient] Invalid API Key, check credentials")
		case http.StatusForbidden:
			return nil, errors.New("[NewsAPIClient] API key lacks required permissions")
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			slog.Warn("[NewsAPIClient] Retrying request",
				slog.Int("status", res.StatusCode),
				slog.Duration("backoff", backoff),
				slog.Int("attempt", attempt))
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
			backoff = nextBackoff(backoff)
		default:
			return nil, fmt.Errorf("[NewsAPIClient] Unexpected status code %d", res.StatusCode)
		}
	}

	slog.Error("[NewsAPIClient] Failed after max retries", slog.String("query", query))
	return nil, errors.New("[NewsAPIClient] failed after max retries")
}
