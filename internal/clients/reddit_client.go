package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/spacesedan/tickersense/internal/models"
)

const (
	REDDIT_AUTH_URL = "https://www.reddit.com/api/v1/access_token"
	REDDIT_API_URL  = "https://oauth.reddit.com"
)

type RedditConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	// BaseURL overrides REDDIT_API_URL; tests point it at an httptest server.
	BaseURL string
	// HTTPClient skips OAuth entirely when set.
	HTTPClient *http.Client
}

type RedditClient struct {
	config    *clientcredentials.Config
	client    *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
	mu        sync.Mutex
}

func NewRedditClient(cfg RedditConfig) *RedditClient {
	oauthConf := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     REDDIT_AUTH_URL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	rc := &RedditClient{
		config:    oauthConf,
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		// Reddit allows 100 requests per minute for OAuth clients.
		limiter: rate.NewLimiter(rate.Every(time.Minute/100), 5),
	}
	if rc.baseURL == "" {
		rc.baseURL = REDDIT_API_URL
	}
	if rc.userAgent == "" {
		rc.userAgent = USER_AGENT
	}
	if cfg.HTTPClient != nil {
		rc.client = cfg.HTTPClient
		rc.config = nil
	} else {
		rc.client = oauthConf.Client(context.Background())
	}
	return rc
}

func (rc *RedditClient) refreshClient() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.config != nil {
		rc.client = rc.config.Client(context.Background())
	}
}

func (rc *RedditClient) httpClient() *http.Client {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.client
}

// FetchHotPosts returns the current hot posts of subreddit, stickied posts
// excluded.
func (rc *RedditClient) FetchHotPosts(ctx context.Context, subreddit string, limit int) ([]models.RedditPost, error) {
	parsedURL, err := url.Parse(fmt.Sprintf("%s/r/%s/hot", rc.baseURL, url.PathEscape(subreddit)))
	if err != nil {
		return nil, fmt.Errorf("[RedditClient] Failed to parse URL: %w", err)
	}
	queryParams := parsedURL.Query()
	queryParams.Add("limit", strconv.Itoa(limit))
	queryParams.Add("raw_json", "1")
	parsedURL.RawQuery = queryParams.Encode()

	body, err := rc.get(ctx, parsedURL.String())
	if err != nil {
		return nil, err
	}

	var listing models.RedditAPIResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("[RedditClient] Failed to parse listing for r/%s: %w", subreddit, err)
	}

	posts := make([]models.RedditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		d := child.Data
		if d.Stickied {
			continue
		}
		posts = append(posts, models.RedditPost{
			Subreddit:   d.Subreddit,
			Author:      d.Author,
			PostTitle:   d.Title,
			PostContent: d.Selftext,
			Upvotes:     d.Ups,
			CreatedAt:   time.Unix(int64(d.CreatedUTC), 0).UTC(),
			PostID:      d.ID,
			Permalink:   d.Permalink,
		})
	}
	return posts, nil
}

// get performs a rate limited GET. A 401 refreshes the token once; 429 and
// 5xx responses are retried with doubling backoff.
func (rc *RedditClient) get(ctx context.Context, target string) ([]byte, error) {
	backoff := INITIAL_BACKOFF
	refreshed := false

	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		if err := rc.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", rc.userAgent)

		resp, err := rc.httpClient().Do(req)
		if err != nil {
			return nil, fmt.Errorf("[RedditClient] request failed: %w", err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				return nil, readErr
			}
			return body, nil
		case resp.StatusCode == http.StatusUnauthorized && !refreshed:
			slog.Warn("[RedditClient] Token expired - Refreshing and Retrying...")
			rc.refreshClient()
			refreshed = true
			continue
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			slog.Warn("[RedditClient] Retrying request",
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff))
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
			backoff = nextBackoff(backoff)
		default:
			return nil, fmt.Errorf("[RedditClient] unexpected status %d", resp.StatusCode)
		}
	}
	return nil, fmt.Errorf("[RedditClient] Max retries reached request failed")
}
