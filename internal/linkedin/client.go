// Package linkedin publishes organization posts through the LinkedIn REST
// Posts API.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"herald/pkg/clients"
	"herald/pkg/logging"
	"herald/pkg/version"
)

const (
	DefaultBaseURL  = "https://api.linkedin.com"
	DefaultVersion  = "202401"
	restliProtocol  = "2.0.0"
	requestTimeout  = 30 * time.Second
	maxErrorBody    = 500
	maxResponseBody = 64 << 10
)

// Config configures a Client. BaseURL and Version fall back to the
// production API and the pinned LinkedIn-Version header.
type Config struct {
	BaseURL    string
	Version    string
	HTTPClient *http.Client
	Logger     logging.Logger

	// CircuitBreaker overrides the default breaker settings.
	CircuitBreaker *clients.CircuitBreakerConfig
}

// Client posts to the LinkedIn REST posts API. It never retries a POST.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
	logger     logging.Logger
	executor   failsafe.Executor[*http.Response]
}

// PostRequest is one organization post.
type PostRequest struct {
	AccessToken string
	AuthorURN   string
	Text        string
}

// PostResult carries the post URN. PostID is empty when LinkedIn omits it.
type PostResult struct {
	PostID string
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := cfg.Version
	if version == "" {
		version = DefaultVersion
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout, Transport: clients.DefaultTransport()}
	}

	breaker := clients.DefaultCircuitBreakerConfig()
	if cfg.CircuitBreaker != nil {
		breaker = *cfg.CircuitBreaker
	}
	if breaker.Name == "" || breaker.Name == "default" {
		breaker.Name = "linkedin"
	}
	if breaker.Logger == nil {
		breaker.Logger = cfg.Logger
	}

	return &Client{
		baseURL:    baseURL,
		version:    version,
		httpClient: httpClient,
		logger:     cfg.Logger,
		// a post has external side effects, so exactly one attempt
		executor: clients.NewHTTPExecutor(clients.HTTPExecutorConfig{
			MaxRetries:     0,
			ShouldRetry:    clients.NeverRetry,
			CircuitBreaker: &breaker,
		}),
	}
}

type distribution struct {
	FeedDistribution               string   `json:"feedDistribution"`
	TargetEntities                 []string `json:"targetEntities"`
	ThirdPartyDistributionChannels []string `json:"thirdPartyDistributionChannels"`
}

type postBody struct {
	Author                    string       `json:"author"`
	Commentary                string       `json:"commentary"`
	Visibility                string       `json:"visibility"`
	Distribution              distribution `json:"distribution"`
	LifecycleState            string       `json:"lifecycleState"`
	IsReshareDisabledByAuthor bool         `json:"isReshareDisabledByAuthor"`
}

func newPostBody(author, text string) postBody {
	return postBody{
		Author:     author,
		Commentary: EscapeCommentary(text),
		Visibility: "PUBLIC",
		Distribution: distribution{
			FeedDistribution:               "MAIN_FEED",
			TargetEntities:                 []string{},
			ThirdPartyDistributionChannels: []string{},
		},
		LifecycleState:            "PUBLISHED",
		IsReshareDisabledByAuthor: false,
	}
}

// CreatePost makes a single POST /rest/posts call. Non-2xx responses come
// back as *APIError; transport failures and an open circuit are returned
// as-is and classify as KindNetwork.
func (c *Client) CreatePost(ctx context.Context, req PostRequest) (*PostResult, error) {
	payload, err := json.Marshal(newPostBody(req.AuthorURN, req.Text))
	if err != nil {
		return nil, fmt.Errorf("encode post: %w", err)
	}

	resp, err := clients.ExecuteHTTP(ctx, c.executor, func() (*http.Response, error) {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/posts", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, reqErr
		}
		httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("LinkedIn-Version", c.version)
		httpReq.Header.Set("X-Restli-Protocol-Version", restliProtocol)
		httpReq.Header.Set("User-Agent", version.UserAgent())
		return c.httpClient.Do(httpReq)
	})
	if err != nil {
		return nil, fmt.Errorf("linkedin create post: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}

	postID := strings.TrimSpace(resp.Header.Get("x-restli-id"))
	if postID == "" && len(body) > 0 {
		var decoded struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(body, &decoded) == nil {
			postID = decoded.ID
		}
	}
	if postID == "" && c.logger != nil {
		c.logger.WithField("status", resp.StatusCode).Warn("LinkedIn accepted post without returning an id")
	}
	return &PostResult{PostID: postID}, nil
}

// reserved characters of LinkedIn's little text format; '#' stays so
// hashtags are linked
var commentaryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`|`, `\|`,
	`{`, `\{`,
	`}`, `\}`,
	`@`, `\@`,
	`[`, `\[`,
	`]`, `\]`,
	`(`, `\(`,
	`)`, `\)`,
	`<`, `\<`,
	`>`, `\>`,
	`*`, `\*`,
	`_`, `\_`,
	`~`, `\~`,
)

// EscapeCommentary escapes text so LinkedIn renders it literally.
func EscapeCommentary(text string) string {
	return commentaryEscaper.Replace(text)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// Kind groups publish failures by how the caller must react.
type Kind int

const (
	KindNone Kind = iota
	KindAuth
	KindRateLimited
	KindRejected
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindRejected:
		return "rejected"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// APIError is a non-2xx response from the Posts API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("linkedin api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("linkedin api returned status %d: %s", e.StatusCode, e.Body)
}

// Classify maps a CreatePost error to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindAuth
		case http.StatusTooManyRequests:
			return KindRateLimited
		default:
			return KindRejected
		}
	}
	return KindNetwork
}
