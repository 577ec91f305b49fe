package awesomeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"quote_notifier/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	// DefaultBaseURL is the AwesomeAPI "last quote" endpoint
	DefaultBaseURL = "https://economia.awesomeapi.com.br/json/last/"

	// maxBodyBytes caps how much of a response is read
	maxBodyBytes = 1 << 20
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=awesomeapi_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// quoteResponse is one entry of the AwesomeAPI response object.
// Prices come as strings and are parsed into decimals.
type quoteResponse struct {
	Code       string `json:"code"`
	CodeIn     string `json:"codein"`
	Name       string `json:"name"`
	Bid        string `json:"bid"`
	Ask        string `json:"ask"`
	Timestamp  string `json:"timestamp"`
	CreateDate string `json:"create_date"`
}

// Client fetches the latest quotes for a list of currency pairs.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	userAgent  string
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent sets the User-Agent header sent with each request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new AwesomeAPI client.
func NewClient(options ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// FetchQuotes performs a single request for all pairs.
// It never retries: 429 is reported as a throttled QuoteError so the caller's
// retry policy can decide. An empty object yields a QuoteNoData error.
func (c *Client) FetchQuotes(ctx context.Context, pairs []domain.CurrencyPair) (domain.QuoteSet, error) {
	if len(pairs) == 0 {
		return nil, domain.NewQuoteError(domain.QuoteNoData, nil)
	}

	endpoint := strings.TrimSuffix(c.baseURL, "/") + "/" + domain.PairSetKey(pairs)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewQuoteError(domain.QuoteUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewQuoteError(domain.QuoteUpstream, domain.NewNetworkError("fetch", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.NewQuoteError(domain.QuoteThrottled, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewQuoteError(domain.QuoteUpstream, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewQuoteError(domain.QuoteUpstream, err)
	}

	return parseQuotes(body)
}

func parseQuotes(body []byte) (domain.QuoteSet, error) {
	var data map[string]quoteResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, domain.NewQuoteError(domain.QuoteUpstream, fmt.Errorf("malformed response: %w", err))
	}

	if len(data) == 0 {
		return nil, domain.NewQuoteError(domain.QuoteNoData, nil)
	}

	out := make(domain.QuoteSet, len(data))
	for key, q := range data {
		ask, err := decimal.NewFromString(q.Ask)
		if err != nil {
			return nil, domain.NewQuoteError(domain.QuoteUpstream, fmt.Errorf("%s ask %q: %w", key, q.Ask, err))
		}
		bid, err := decimal.NewFromString(q.Bid)
		if err != nil {
			return nil, domain.NewQuoteError(domain.QuoteUpstream, fmt.Errorf("%s bid %q: %w", key, q.Bid, err))
		}
		out[key] = domain.Quote{
			Code:   q.Code,
			CodeIn: q.CodeIn,
			Bid:    bid,
			Ask:    ask,
		}
	}
	return out, nil
}
