package who

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/ayushsetu/platform/pkg/common/config"
	"github.com/ayushsetu/platform/pkg/common/logger"
	"github.com/ayushsetu/platform/pkg/gateway/httpclient"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// SearchResult is one ICD-11 entity from the flexisearch endpoint.
type SearchResult struct {
	Code  string  `json:"code"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

type searchResponse struct {
	DestinationEntities []struct {
		Title   string  `json:"title"`
		TheCode string  `json:"theCode"`
		Score   float64 `json:"score"`
	} `json:"destinationEntities"`
}

var htmlTagPattern = regexp.MustCompile(`<.*?>`)

// Client talks to the WHO ICD-11 API. Token acquisition and refresh go
// through the oauth2 client-credentials flow.
type Client struct {
	baseURL     string
	releaseID   string
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	resultLimit int
}

func NewClient(cfg *config.Config) *Client {
	base := httpclient.New(cfg.WHORequestTimeout)

	credentials := &clientcredentials.Config{
		ClientID:     cfg.WHOClientID,
		ClientSecret: cfg.WHOClientSecret,
		TokenURL:     cfg.WHOTokenEndpoint,
		Scopes:       []string{"icdapi_access"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	return &Client{
		baseURL:     cfg.WHOAPIBaseURL,
		releaseID:   cfg.WHOReleaseID,
		httpClient:  base,
		tokenSource: oauth2.ReuseTokenSource(nil, credentials.TokenSource(ctx)),
		resultLimit: 20,
	}
}

// Token returns a valid access token, refreshing through the
// client-credentials flow when the cached one has expired.
func (c *Client) Token(ctx context.Context) (string, error) {
	token, err := c.tokenSource.Token()
	if err != nil {
		return "", fmt.Errorf("acquire WHO API token: %w", err)
	}
	return token.AccessToken, nil
}

// Search runs the flexisearch against the configured MMS release and returns
// code/title pairs with any HTML highlighting stripped. Rate-limit and
// transient failures are retried with backoff.
func (c *Client) Search(ctx context.Context, term string) ([]SearchResult, error) {
	if term == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/icd/release/11/%s/mms/search?q=%s",
		c.baseURL, c.releaseID, url.QueryEscape(term))

	var results []SearchResult
	err := httpclient.Retry(ctx, 3, 500*time.Millisecond, func() error {
		token, err := c.Token(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Language", "en")
		req.Header.Set("API-Version", "v2")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			logger.Log.WithField("term", term).Warn("WHO API rate limit hit, backing off")
			return fmt.Errorf("who api rate limited")
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("who api status %d: %s", resp.StatusCode, body)
		}

		var payload searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return fmt.Errorf("decode who api response: %w", err)
		}

		results = results[:0]
		for _, entity := range payload.DestinationEntities {
			if entity.TheCode == "" || entity.Title == "" {
				continue
			}
			results = append(results, SearchResult{
				Code:  entity.TheCode,
				Title: htmlTagPattern.ReplaceAllString(entity.Title, ""),
				Score: entity.Score,
			})
			if len(results) == c.resultLimit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
